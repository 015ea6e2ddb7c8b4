package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadfunnel_backend/internal/automation"
	"leadfunnel_backend/internal/dispatch"
	"leadfunnel_backend/internal/dispatch/broker"
	"leadfunnel_backend/internal/leads"
	"leadfunnel_backend/internal/whatsapp"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/db"
	"leadfunnel_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting dispatcher", "env", cfg.Env, "interval", cfg.DispatchInterval.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	dispatchRepo := dispatch.NewRepository(pool)
	leadsRepo := leads.NewRepository(pool)
	automationRepo := automation.NewRepository(pool)
	gateway := whatsapp.NewClient(cfg, log)

	// Long-lived connection for the promotion publisher. The interval worker
	// dials its own connection per invocation.
	conn, err := broker.Dial(ctx, cfg, log)
	if err != nil {
		log.Error("broker unreachable", "error", err)
		panic("broker unreachable: " + err.Error())
	}
	channel, err := conn.Channel(cfg)
	if err != nil {
		panic("broker channel: " + err.Error())
	}
	if err := channel.Declare(ctx); err != nil {
		panic("broker declare: " + err.Error())
	}
	defer func() {
		_ = channel.Close()
		_ = conn.Close()
	}()

	promotion, err := dispatch.NewPromotionWorker(cfg, dispatchRepo, channel, log)
	if err != nil {
		log.Error("failed to initialize promotion worker", "error", err)
		panic("failed to initialize promotion worker: " + err.Error())
	}

	worker := dispatch.NewWorker(cfg, dispatchRepo, leadsRepo, automationRepo, gateway, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		promotion.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return runInterval(gctx, cfg.DispatchInterval, worker, log)
	})

	if err := g.Wait(); err != nil {
		log.Error("dispatcher error", "error", err)
		panic("dispatcher error: " + err.Error())
	}
	log.Info("dispatcher stopped")
}

// runInterval invokes the dispatch worker on a fixed ticker. A broker outage
// fails that invocation only; the next tick tries again.
func runInterval(ctx context.Context, interval time.Duration, worker *dispatch.Worker, log *logger.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := worker.Run(ctx)
			if errors.Is(err, broker.ErrBrokerUnavailable) {
				log.Error("dispatch invocation skipped", "error", err.Error())
				continue
			}
			if err != nil {
				log.Error("dispatch invocation failed", "error", err.Error())
				continue
			}
			if stats.Attempted > 0 {
				log.Info("dispatch invocation complete",
					"attempted", stats.Attempted,
					"succeeded", stats.Succeeded,
					"failed", stats.Failed,
				)
			}
		}
	}
}
