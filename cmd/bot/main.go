package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weekly-basket-bot/internal/engine"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/scheduler"
	"weekly-basket-bot/internal/status"
	"weekly-basket-bot/internal/store"
	"weekly-basket-bot/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	must(err)
	initializeTracing(ctx, cfg)

	db, err := store.Open(cfg.Store.DBPath)
	must(err)
	defer db.Close()

	states := store.NewStateStore(db)
	accounts := store.NewAccounts(db)
	provider := store.NewConfigProvider(cfg, accounts)
	if _, err := provider.Refresh(ctx); err != nil {
		logger.Warn(ctx, "Account settings unavailable, using file config", "error", err)
	}

	journal := initializeJournal(ctx)
	defer journal.Sync()

	brk, err := initializeBroker(ctx, cfg)
	must(err)
	client := initializeAppClient(cfg, provider)
	fd, err := initializeFeed(cfg, client)
	must(err)

	eng := initializeEngine(cfg, engine.Deps{
		Broker:    brk,
		Feed:      fd,
		Sizer:     initializeSizer(ctx, cfg, brk, client),
		States:    states,
		Telemetry: accounts,
		Journal:   journal,
	})

	srv := status.New(states, cfg.BotID)
	go func() {
		if err := srv.Start(cfg.Status.Addr); err != nil {
			logger.ErrorWithErr(ctx, "Status server stopped", err)
		}
	}()

	sched := scheduler.New(provider.Current().TickInterval, func(ctx context.Context) error {
		res, err := eng.Tick(ctx, provider.Current())
		srv.Record(res, err)
		return err
	})

	eodSched := scheduler.New(time.Minute, summarizeJournal(initializeEOD(journal))).Named("journal_summary")
	eodDone := make(chan struct{})
	go func() {
		defer close(eodDone)
		eodSched.Run(ctx)
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigc {
			if sig == syscall.SIGHUP {
				if rc, err := provider.Refresh(ctx); err != nil {
					logger.Warn(ctx, "Config refresh failed", "error", err)
				} else {
					logger.Info(ctx, "Config refreshed", "trading_enabled", rc.TradingEnabled,
						"trail_start_pct", rc.TrailStartPct, "trail_offset_pct", rc.TrailOffsetPct,
						"app_base_url", rc.AppBaseURL)
				}
				continue
			}
			logger.Info(ctx, "Shutting down...", "signal", sig.String())
			cancel()
			return
		}
	}()

	logger.Info(ctx, "Bot started",
		"bot_id", cfg.BotID,
		"mode", cfg.Mode,
		"tick_interval", provider.Current().TickInterval.String(),
		"app_base_url", provider.Current().AppBaseURL,
		"signals", cfg.Signals.Source,
	)
	sched.Run(ctx)
	<-eodDone

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "Status server shutdown failed", "error", err)
	}
	if err := trace.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "Tracer shutdown failed", "error", err)
	}
	logger.Info(shutdownCtx, "Bot stopped", "ticks", sched.Runs(), "dropped", sched.Dropped())
}
