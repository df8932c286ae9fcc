package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predifi/intent-gateway/internal/admission"
	"github.com/predifi/intent-gateway/internal/server"
	"github.com/predifi/intent-gateway/internal/server/handler"
	"github.com/predifi/intent-gateway/internal/server/ws"
)

// shutdownGrace is how long in-flight HTTP requests get to finish after the
// context is cancelled.
const shutdownGrace = 10 * time.Second

// ServeMode runs the admission API: HTTP endpoints for order and commitment
// submission, stateless verification, and the WebSocket event feed. It blocks
// until the context is cancelled or a component fails.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "serve mode starting")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs periodic archival sweeps that copy aged intent records to
// object storage. It blocks until the context is cancelled.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "archive mode starting",
		slog.Duration("interval", a.cfg.Archive.Interval.Duration),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runArchiveLoop(ctx, deps)
	})
	return g.Wait()
}

// FullMode runs the admission API and the archival sweeps together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "full mode starting")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	if a.cfg.Archive.Enabled {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}
	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	opts := admission.Options{
		Nonces: deps.NonceCache,
		Audit:  deps.AuditStore,
		Bus:    deps.SignalBus,
		Alerts: deps.Notifier,
		Logger: a.logger,
	}
	orders := admission.NewOrders(deps.Schema.Order, deps.OrderStore, opts)
	commitments := admission.NewCommitments(deps.Schema.Commitment, deps.CommitmentStore, opts)

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Orders:      handler.NewOrderHandler(orders, deps.OrderStore, a.logger),
		Commitments: handler.NewCommitmentHandler(commitments, deps.CommitmentStore, a.logger),
		Verify:      handler.NewVerifyHandler(deps.Schema, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, []string{
		admission.ChannelOrders,
		admission.ChannelCommitments,
	}, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runArchiveLoop sweeps aged records to object storage on a fixed interval.
// A sweep failure is logged and reported but does not stop the loop; the next
// tick retries.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive loop requires object storage")
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runArchiveSweep(ctx, deps)
		}
	}
}

// runArchiveSweep performs one archival pass over orders and commitments.
func (a *App) runArchiveSweep(ctx context.Context, deps *Dependencies) {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

	orderCount, err := deps.Archiver.ArchiveOrders(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive sweep: orders failed",
			slog.String("error", err.Error()),
		)
		_ = deps.Notifier.Notify(ctx, "error", "Archive sweep failed",
			fmt.Sprintf("orders: %v", err))
	}

	commitmentCount, err := deps.Archiver.ArchiveCommitments(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive sweep: commitments failed",
			slog.String("error", err.Error()),
		)
		_ = deps.Notifier.Notify(ctx, "error", "Archive sweep failed",
			fmt.Sprintf("commitments: %v", err))
	}

	a.logger.InfoContext(ctx, "archive sweep complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("orders", orderCount),
		slog.Int64("commitments", commitmentCount),
	)
}
