package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gonut/nut/internal/config"
	"github.com/gonut/nut/internal/feed"
	"github.com/gonut/nut/internal/logger"
	"github.com/gonut/nut/internal/poller"
	"github.com/gonut/nut/internal/store"
	"github.com/gonut/nut/nutprotocol"
)

func newPollCmd(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll every configured target, storing and streaming snapshots",
		Long: `Poll connects to every target in the configuration and reads all
variables of its UPS devices on the poll interval. Snapshots are written
to the store and streamed to WebSocket clients when those are enabled.

Connection flags (--host, --port, ...) replace the configured targets
with a single target.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := a.pollConfig()
			if once {
				return a.pollOnce(ctx, cfg)
			}
			return a.pollForever(ctx, cfg)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "poll each target once, print the snapshots and exit")
	return cmd
}

// pollConfig returns the configuration with command line overrides applied.
func (a *app) pollConfig() *config.Config {
	cfg := *a.cfg
	if a.hostSet || a.portSet || a.timeoutSet || a.encryptionSet || a.targetName != "" {
		cfg.Targets = []config.Target{a.target}
		if a.ups != "" {
			cfg.Targets[0].UPS = []string{a.ups}
		}
	}
	return &cfg
}

func (a *app) pollOnce(ctx context.Context, cfg *config.Config) error {
	printer := poller.SinkFunc(func(ctx context.Context, snap store.Snapshot) error {
		fmt.Fprintf(a.out, "%s/%s\n", snap.Target, snap.UPS)
		for _, name := range slices.Sorted(maps.Keys(snap.Values)) {
			fmt.Fprintf(a.out, "  %s: %s\n", name, snap.Values[name])
		}
		return nil
	})
	sinks := []poller.Sink{printer}

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		sinks = append(sinks, st)
	}

	p := poller.New(cfg, sinks, poller.WithLogger(logger.Logger()))
	for _, t := range cfg.Targets {
		opts, err := t.Options()
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
		opts.Logger = logger.Logger()
		client, err := nutprotocol.Dial(ctx, t.Host, opts)
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
		_, err = p.PollOnce(ctx, client, t)
		client.Logout()
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
	}
	return nil
}

func (a *app) pollForever(ctx context.Context, cfg *config.Config) error {
	var sinks []poller.Sink
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		sinks = append(sinks, st)
		logger.Info("storing snapshots", "driver", cfg.Store.Driver, "retention", cfg.Store.Retention)

		if cfg.Store.Retention > 0 {
			g.Go(func() error {
				return pruneLoop(ctx, st, cfg.Store.Retention, time.Hour)
			})
		}
	}

	if cfg.Feed.Enabled {
		hub := feed.NewHub()
		sinks = append(sinks, hub)
		g.Go(func() error {
			return feed.Serve(ctx, cfg.Feed, hub)
		})
	}

	p := poller.New(cfg, sinks, poller.WithLogger(logger.Logger()))
	g.Go(func() error {
		return p.Run(ctx)
	})

	logger.Info("polling", "targets", len(cfg.Targets), "interval", cfg.Poll.Interval)
	return g.Wait()
}

// pruneLoop deletes snapshots older than retention every interval until
// ctx is done. Failed prunes are logged and retried on the next tick.
func pruneLoop(ctx context.Context, st *store.Store, retention, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := st.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Error("prune failed", "error", err)
		case n > 0:
			logger.Info("pruned snapshots", "count", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
