// Package main runs the mempool sentinel: the pending-transaction feed, the
// alert pipeline, the live subscriber hub, and the HTTP API as one process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mempool-sentinel/internal/config"
	"mempool-sentinel/internal/ethereum"
	"mempool-sentinel/internal/exposure"
	"mempool-sentinel/internal/feed"
	"mempool-sentinel/internal/httpapi"
	"mempool-sentinel/internal/hub"
	"mempool-sentinel/internal/logging"
	"mempool-sentinel/internal/notify"
	"mempool-sentinel/internal/pipeline"
	"mempool-sentinel/internal/pricing"
	"mempool-sentinel/internal/sink"
	"mempool-sentinel/internal/storage"
	chstore "mempool-sentinel/internal/storage/clickhouse"
	"mempool-sentinel/internal/storage/memory"
	"mempool-sentinel/internal/storage/migrations"
	pgstore "mempool-sentinel/internal/storage/postgres"
	"mempool-sentinel/internal/watch"
)

const shutdownTimeout = 30 * time.Second

// stores holds the persistence backends for the selected driver.
type stores struct {
	alerts     storage.AlertStore
	watchlists storage.WatchlistStore
	archive    storage.AlertArchiveStore // nil without clickhouse
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	useMemory := flag.Bool("memory", false, "Use in-memory storage regardless of config")
	httpAddr := flag.String("http", "", "HTTP listen address override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *useMemory {
		cfg.Storage.Driver = "memory"
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("sentinel failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutdown signal received", zap.Stringer("signal", sig))
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			logger.Warn("second signal received, forcing exit", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	notifiers, closeNotifiers := buildNotifiers(cfg.Notify, logger)
	defer closeNotifiers()

	liveHub := hub.New(logger.Named("hub"))

	resolver := pricing.NewResolver(pricing.Options{
		NativeSource: nativeSource(cfg.Pricing),
		TokenSource:  tokenSource(cfg.Pricing),
		NativeTTL:    cfg.Pricing.NativeTTL(),
		TokenTTL:     cfg.Pricing.TokenTTL(),
		Logger:       logger.Named("pricing"),
	})

	alertSink := sink.New(sink.Options{
		Chain:        cfg.Ethereum.Chain,
		AlertStore:   st.alerts,
		ArchiveStore: st.archive,
		Hub:          liveHub,
		Notifiers:    notifiers,
		Logger:       logger.Named("sink"),
	})

	pl := pipeline.New(pipeline.Options{
		Fetcher:      ethereum.NewHTTPClient(cfg.Ethereum.RPCURL),
		Evaluator:    exposure.NewEvaluator(resolver),
		Watch:        watch.NewRegistry(st.watchlists),
		Sink:         alertSink,
		USDThreshold: cfg.Alerts.USDThreshold,
		Logger:       logger.Named("pipeline"),
	})

	manager := feed.NewManager(feed.Options{
		Dial: feedDial(cfg.Ethereum.WSURL),
		Handler: func(ctx context.Context, hash string) {
			pl.Process(ctx, hash)
		},
		MaxAttempts: cfg.Feed.MaxReconnectAttempts,
		BaseDelay:   cfg.Feed.ReconnectBaseDelay,
		Logger:      logger.Named("feed"),
	})

	api := httpapi.NewServer(httpapi.Options{
		AlertStore:     st.alerts,
		WatchlistStore: st.watchlists,
		Hub:            liveHub,
		Sink:           alertSink,
		FeedState:      func() string { return manager.State().String() },
		Backlog:        cfg.Alerts.Backlog,
		Logger:         logger.Named("httpapi"),
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: api.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		liveHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return manager.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("sentinel started",
		zap.String("chain", cfg.Ethereum.Chain),
		zap.String("storage", cfg.Storage.Driver),
		zap.Float64("usd_threshold", cfg.Alerts.USDThreshold),
		zap.Int("notifiers", len(notifiers)))

	return g.Wait()
}

// createStores builds the configured persistence backends and applies
// migrations for the database-backed driver.
func createStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, func(), error) {
	if cfg.Storage.Driver == "memory" {
		logger.Info("using in-memory storage")
		return &stores{
			alerts:     memory.NewAlertStore(),
			watchlists: memory.NewWatchlistStore(),
			archive:    memory.NewAlertArchiveStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	st := &stores{
		alerts:     pgstore.NewAlertStore(pool),
		watchlists: pgstore.NewWatchlistStore(pool),
	}
	cleanup := func() { pool.Close() }

	// The archive is optional: alerting works without clickhouse, only digest
	// reporting needs it.
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
		}
		st.archive = chstore.NewAlertArchiveStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	} else {
		logger.Info("no clickhouse dsn configured, alert archive disabled")
	}

	return st, cleanup, nil
}

// buildNotifiers constructs every configured channel; absent configuration
// leaves a channel disabled.
func buildNotifiers(cfg config.NotifyConfig, logger *zap.Logger) ([]notify.Notifier, func()) {
	var notifiers []notify.Notifier
	closeFn := func() {}

	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURL))
	} else {
		logger.Info("webhook channel disabled")
	}

	if cfg.Telegram.Enabled() {
		notifiers = append(notifiers, notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	} else {
		logger.Info("telegram channel disabled")
	}

	if cfg.Email.Enabled() {
		notifiers = append(notifiers, notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
		}))
	} else {
		logger.Info("email channel disabled")
	}

	if cfg.NATS.Enabled() {
		publisher, err := notify.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger.Named("nats"))
		if err != nil {
			logger.Error("nats channel unavailable", zap.Error(err))
		} else {
			notifiers = append(notifiers, publisher)
			closeFn = publisher.Close
		}
	} else {
		logger.Info("nats channel disabled")
	}

	return notifiers, closeFn
}

// nativeSource returns the configured native price source, or nil for the
// resolver's fallback constant.
func nativeSource(cfg config.PricingConfig) pricing.NativePriceSource {
	if cfg.NativeURL == "" {
		return nil
	}
	return pricing.NewHTTPNativeSource(cfg.NativeURL, "ethereum")
}

// tokenSource returns the configured token price source, or nil to disable
// token valuation.
func tokenSource(cfg config.PricingConfig) pricing.TokenPriceSource {
	if cfg.TokenURL == "" {
		return nil
	}
	return pricing.NewHTTPTokenSource(cfg.TokenURL)
}

// feedDial returns the feed dialer, or nil when no WS endpoint is configured.
func feedDial(wsURL string) feed.DialFunc {
	if wsURL == "" {
		return nil
	}
	return func(ctx context.Context) (feed.Conn, error) {
		ws, err := ethereum.DialWS(ctx, wsURL, nil)
		if err != nil {
			return nil, err
		}
		if _, err := ws.SubscribePendingTransactions(ctx); err != nil {
			ws.Close()
			return nil, err
		}
		return ws, nil
	}
}
