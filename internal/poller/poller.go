// Package poller reads UPS variables from every configured upsd target on a
// fixed interval and hands the snapshots to sinks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/gonut/nut/internal/config"
	"github.com/gonut/nut/internal/store"
	"github.com/gonut/nut/nutprotocol"
)

// Sink receives every snapshot the poller produces.
type Sink interface {
	Publish(ctx context.Context, snap store.Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, snap store.Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap store.Snapshot) error {
	return f(ctx, snap)
}

// DialFunc opens a client session to a target.
type DialFunc func(ctx context.Context, target config.Target) (*nutprotocol.Client, error)

// Poller polls a set of targets concurrently, one session per target.
type Poller struct {
	targets    []config.Target
	interval   time.Duration
	maxBackoff time.Duration
	variables  map[string]bool
	sinks      []Sink
	dial       DialFunc
	logger     *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger used by the poller and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithDialer replaces the function used to open sessions.
func WithDialer(dial DialFunc) Option {
	return func(p *Poller) { p.dial = dial }
}

// New creates a poller for every target in cfg.
func New(cfg *config.Config, sinks []Sink, opts ...Option) *Poller {
	p := &Poller{
		targets:    cfg.Targets,
		interval:   cfg.Poll.Interval,
		maxBackoff: cfg.Poll.MaxBackoff,
		sinks:      sinks,
		logger:     slog.New(slog.DiscardHandler),
	}
	if len(cfg.Poll.Variables) > 0 {
		p.variables = make(map[string]bool, len(cfg.Poll.Variables))
		for _, v := range cfg.Poll.Variables {
			p.variables[v] = true
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dial == nil {
		p.dial = p.dialTarget
	}
	if p.interval <= 0 {
		p.interval = 30 * time.Second
	}
	return p
}

func (p *Poller) dialTarget(ctx context.Context, t config.Target) (*nutprotocol.Client, error) {
	opts, err := t.Options()
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("target %s: %w", t.Name, err))
	}
	opts.Logger = p.logger.With("target", t.Name)
	return nutprotocol.Dial(ctx, t.Host, opts)
}

// Run polls every target until ctx is cancelled. It returns nil on
// cancellation and the first permanent error otherwise.
func (p *Poller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range p.targets {
		g.Go(func() error {
			return p.runTarget(ctx, t)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Poller) runTarget(ctx context.Context, t config.Target) error {
	log := p.logger.With("target", t.Name, "address", fmt.Sprintf("%s:%d", t.Host, t.Port))

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	if p.maxBackoff > 0 {
		b.MaxInterval = p.maxBackoff
	}

	operation := func() error {
		client, err := p.dial(ctx, t)
		if err != nil {
			return err
		}
		defer client.Close()

		log.Info("connected",
			"protocol", client.Conn().ProtocolVersion(),
			"server", client.Conn().ServerVersion(),
			"encrypted", client.Conn().Encrypted())
		b.Reset()

		err = p.session(ctx, client, t)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		log.Warn("session failed, reconnecting", "error", err, "retry_in", next)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// session polls on the interval until a transport error or cancellation.
func (p *Poller) session(ctx context.Context, client *nutprotocol.Client, t config.Target) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx, client, t); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce reads every UPS of the target once and publishes the snapshots.
// Protocol errors for a single UPS are logged and that UPS is skipped; any
// other error ends the poll.
func (p *Poller) PollOnce(ctx context.Context, client *nutprotocol.Client, t config.Target) ([]store.Snapshot, error) {
	log := p.logger.With("target", t.Name)

	names := t.UPS
	if len(names) == 0 {
		upses, err := client.ListUPS()
		if err != nil {
			return nil, fmt.Errorf("list ups: %w", err)
		}
		for _, e := range upses.Entries {
			names = append(names, e.Key)
		}
	}

	var snaps []store.Snapshot
	for _, ups := range names {
		if err := ctx.Err(); err != nil {
			return snaps, err
		}

		vars, err := client.ListVars(ups)
		if err != nil {
			if isSessionFatal(err) {
				return snaps, fmt.Errorf("list var %s: %w", ups, err)
			}
			log.Warn("skipping ups", "ups", ups, "error", err)
			continue
		}

		snap := store.Snapshot{
			Target:   t.Name,
			UPS:      ups,
			PolledAt: time.Now(),
			Values:   p.filter(vars),
		}
		p.publish(ctx, log, snap)
		snaps = append(snaps, snap)
	}
	log.Debug("poll complete", "ups", len(snaps))
	return snaps, nil
}

func (p *Poller) filter(vars nutprotocol.ListResponse) map[string]string {
	values := make(map[string]string, len(vars.Entries))
	for _, e := range vars.Entries {
		if p.variables == nil || p.variables[e.Key] {
			values[e.Key] = e.Value
		}
	}
	return values
}

func (p *Poller) publish(ctx context.Context, log *slog.Logger, snap store.Snapshot) {
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			log.Error("sink failed", "ups", snap.UPS, "error", err)
		}
	}
}

// isSessionFatal reports whether err means the session can no longer be used.
func isSessionFatal(err error) bool {
	var ce *nutprotocol.ConnectionError
	var he *nutprotocol.HandshakeError
	return errors.As(err, &ce) ||
		errors.As(err, &he) ||
		errors.Is(err, nutprotocol.ErrSessionClosed) ||
		errors.Is(err, nutprotocol.ErrNotConnected) ||
		errors.Is(err, nutprotocol.ErrLineTooLong)
}
