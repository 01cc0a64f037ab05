// Package store persists polled UPS variable snapshots in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/gonut/nut/internal/config"
)

// ErrNotFound is returned when no snapshot matches a query.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the set of variables read from one UPS in one poll.
type Snapshot struct {
	ID       int64             `json:"id,omitempty"`
	Target   string            `json:"target"`
	UPS      string            `json:"ups"`
	PolledAt time.Time         `json:"polled_at"`
	Values   map[string]string `json:"values"`
}

// Reading is a single variable value at a point in time.
type Reading struct {
	Variable string    `json:"variable"`
	Value    string    `json:"value"`
	PolledAt time.Time `json:"polled_at"`
}

// Store wraps the database connection.
type Store struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens the database selected by cfg and runs migrations.
func Open(cfg config.StoreConfig) (*Store, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var db *sql.DB
	var err error
	switch dialect.(type) {
	case *PostgresDialect:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store requires a dsn")
		}
		db, err = sql.Open(dialect.DriverName(), cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	default:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err = sql.Open(dialect.DriverName(), cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// PRAGMAs are per connection; one connection keeps them in force.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	s := &Store{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id ` + s.dialect.SerialPrimaryKey() + `,
			target TEXT NOT NULL,
			ups TEXT NOT NULL,
			polled_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS readings (
			snapshot_id BIGINT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			variable TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (snapshot_id, variable)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_target_ups ON snapshots(target, ups, polled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_variable ON readings(variable)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores the snapshot and its readings in one transaction
// and returns the new snapshot ID.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) (int64, error) {
	if snap.Target == "" || snap.UPS == "" {
		return 0, fmt.Errorf("snapshot requires target and ups")
	}
	if snap.PolledAt.IsZero() {
		snap.PolledAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := s.qb.BuildWithReturning(
		"INSERT INTO snapshots (target, ups, polled_at) VALUES (?, ?, ?)", "id")
	args := []any{snap.Target, snap.UPS, snap.PolledAt.UnixNano()}

	var id int64
	if s.dialect.SupportsLastInsertID() {
		result, err := tx.ExecContext(ctx, insert, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("failed to get snapshot id: %w", err)
		}
	} else if err := tx.QueryRowContext(ctx, insert, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.qb.Build(
		"INSERT INTO readings (snapshot_id, variable, value) VALUES (?, ?, ?)"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare reading insert: %w", err)
	}
	defer stmt.Close()

	for _, name := range slices.Sorted(maps.Keys(snap.Values)) {
		if _, err := stmt.ExecContext(ctx, id, name, snap.Values[name]); err != nil {
			return 0, fmt.Errorf("failed to insert reading %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// Latest returns the most recent snapshot for a UPS on a target.
func (s *Store) Latest(ctx context.Context, target, ups string) (Snapshot, error) {
	snap := Snapshot{Target: target, UPS: ups, Values: make(map[string]string)}

	var polledAt int64
	err := s.db.QueryRowContext(ctx, s.qb.Build(
		`SELECT id, polled_at FROM snapshots
		WHERE target = ? AND ups = ?
		ORDER BY polled_at DESC, id DESC LIMIT 1`), target, ups).Scan(&snap.ID, &polledAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	snap.PolledAt = time.Unix(0, polledAt)

	rows, err := s.db.QueryContext(ctx, s.qb.Build(
		"SELECT variable, value FROM readings WHERE snapshot_id = ?"), snap.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Snapshot{}, fmt.Errorf("failed to scan reading: %w", err)
		}
		snap.Values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read readings: %w", err)
	}
	return snap, nil
}

// History returns up to limit readings of one variable, newest first.
// A limit of zero or less returns every reading.
func (s *Store) History(ctx context.Context, target, ups, variable string, limit int) ([]Reading, error) {
	query := `SELECT r.value, s.polled_at FROM readings r
		JOIN snapshots s ON s.id = r.snapshot_id
		WHERE s.target = ? AND s.ups = ? AND r.variable = ?
		ORDER BY s.polled_at DESC, s.id DESC`
	args := []any{target, ups, variable}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		r := Reading{Variable: variable}
		var polledAt int64
		if err := rows.Scan(&r.Value, &polledAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.PolledAt = time.Unix(0, polledAt)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// Prune deletes snapshots polled before the cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	// Readings go first so the delete does not depend on foreign key enforcement.
	if _, err := s.db.ExecContext(ctx, s.qb.Build(
		`DELETE FROM readings WHERE snapshot_id IN
		(SELECT id FROM snapshots WHERE polled_at < ?)`), before.UnixNano()); err != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", err)
	}
	result, err := s.db.ExecContext(ctx, s.qb.Build(
		"DELETE FROM snapshots WHERE polled_at < ?"), before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}

// Publish saves the snapshot. It lets the store act as a poller sink.
func (s *Store) Publish(ctx context.Context, snap Snapshot) error {
	_, err := s.SaveSnapshot(ctx, snap)
	return err
}
