package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"weekly-basket-bot/internal/api"
	"weekly-basket-bot/internal/broker/brokerobs"
	"weekly-basket-bot/internal/broker/oanda"
	"weekly-basket-bot/internal/broker/paper"
	"weekly-basket-bot/internal/engine"
	"weekly-basket-bot/internal/engine/engineobs"
	"weekly-basket-bot/internal/eod"
	"weekly-basket-bot/internal/eod/eodobs"
	"weekly-basket-bot/internal/feed"
	"weekly-basket-bot/internal/interfaces"
	"weekly-basket-bot/internal/logger"
	"weekly-basket-bot/internal/retry"
	"weekly-basket-bot/internal/scheduler"
	"weekly-basket-bot/internal/sizing"
	"weekly-basket-bot/internal/store"
	"weekly-basket-bot/internal/trace"
	"weekly-basket-bot/internal/tradelog"
)

// initializeSystem loads .env and sets up logging
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initializeTracing starts the tracer once the bot identity is known
func initializeTracing(ctx context.Context, cfg *store.Config) {
	if err := trace.Init(trace.Options{BotID: cfg.BotID, Mode: cfg.Mode}); err != nil {
		logger.Warn(ctx, "Failed to initialize tracer", "error", err)
	}
}

func configPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig(configPath())
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", configPath())
		return nil, err
	}
	return cfg, nil
}

// initializeJournal opens the trade journal and compresses old files
func initializeJournal(ctx context.Context) *tradelog.Journal {
	j := tradelog.Default()
	if err := j.CompressOlder(tradelog.RetentionDays()); err != nil {
		logger.Warn(ctx, "Failed to compress old journal files", "dir", j.Dir(), "error", err)
	}
	return j
}

// initializeEOD returns the journal summarizer wrapped with observability
func initializeEOD(j *tradelog.Journal) interfaces.EodSummarizer {
	return eodobs.Wrap(eod.NewSummarizer(j.Dir()))
}

// summarizeJournal writes the summary for the last finished day, if due
func summarizeJournal(summ interfaces.EodSummarizer) scheduler.Job {
	return func(context.Context) error {
		day, ok := summ.Due()
		if !ok {
			return nil
		}
		_, err := summ.SummarizeDay(day)
		return err
	}
}

// initializeBroker returns the OANDA client in LIVE mode and the paper broker
// otherwise, wrapped with observability middleware
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Broker, error) {
	var brk interfaces.Broker
	switch cfg.Mode {
	case "LIVE":
		c, err := oanda.New(oanda.Params{
			Env:               cfg.Broker.Env,
			AccountID:         cfg.Broker.AccountID,
			APIKey:            os.Getenv("OANDA_API_KEY"),
			Timeout:           time.Duration(cfg.Broker.TimeoutSeconds) * time.Second,
			RequestsPerSecond: cfg.Broker.RequestsPerSecond,
			Retry:             retry.Default(),
		})
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "Using OANDA broker", "env", cfg.Broker.Env, "account_id", cfg.Broker.AccountID)
		brk = c
	default:
		logger.Warn(ctx, "Running in PAPER mode - orders are simulated in memory")
		brk = paper.New(cfg.Paper)
	}
	return brokerobs.Wrap(brk), nil
}

// initializeAppClient returns the backend client, or nil when no base URL is
// set. The linked account's base URL, once refreshed, wins over the file value.
func initializeAppClient(cfg *store.Config, provider *store.ConfigProvider) *api.Client {
	if cfg.AppBaseURL == "" {
		return nil
	}
	opts := []api.ClientOption{
		api.WithBaseURL(cfg.AppBaseURL),
		api.WithBaseURLFunc(func() string { return provider.Current().AppBaseURL }),
		api.WithTimeout(time.Duration(cfg.Broker.TimeoutSeconds) * time.Second),
		api.WithLogging(true),
	}
	if tok := os.Getenv("APP_API_TOKEN"); tok != "" {
		opts = append(opts, api.WithBearerToken(tok))
	}
	return api.NewClient(opts...)
}

func initializeFeed(cfg *store.Config, client *api.Client) (interfaces.SignalFeed, error) {
	if cfg.Signals.Source == "SNAPSHOT" {
		f, err := feed.NewSnapshotFeed(cfg.Signals.SnapshotPath, cfg.Signals.Asset)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return feed.NewHTTPFeed(client, cfg.Signals.Asset, retry.Default()), nil
}

func initializeSizer(ctx context.Context, cfg *store.Config, brk interfaces.Broker, client *api.Client) interfaces.PositionSizer {
	if cfg.Sizing.Delegated && client != nil {
		logger.Info(ctx, "Sizing delegated to backend", "account_key", cfg.AccountKey)
		return sizing.New(brk, sizing.NewRemoteSizer(client, cfg.AccountKey, retry.Default()))
	}
	return sizing.New(brk, nil)
}

// initializeEngine builds the engine and wraps it with observability middleware
func initializeEngine(cfg *store.Config, deps engine.Deps) interfaces.Engine {
	spacing := time.Duration(cfg.Execution.CallSpacingMS) * time.Millisecond
	var pace func(ctx context.Context) error
	if spacing > 0 {
		pace = rate.NewLimiter(rate.Every(spacing), 1).Wait
	}

	wipe := retry.Default()
	wipe.MaxAttempts = cfg.Execution.WipeSweeps

	eng := engine.New(deps, engine.WithPacer(pace), engine.WithWipePolicy(wipe))
	return engineobs.Wrap(eng)
}
