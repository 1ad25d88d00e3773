package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/cache"
	"github.com/quantfold/odte-engine/internal/adapters/clickhouse"
	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/adapters/database"
	"github.com/quantfold/odte-engine/internal/adapters/feed"
	"github.com/quantfold/odte-engine/internal/adapters/telegram"
	"github.com/quantfold/odte-engine/internal/correlation"
	"github.com/quantfold/odte-engine/internal/engine"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/internal/regime"
	"github.com/quantfold/odte-engine/internal/risk"
	"github.com/quantfold/odte-engine/internal/signals"
	"github.com/quantfold/odte-engine/internal/takeprofit"
	"github.com/quantfold/odte-engine/internal/workers"
	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/worker"
	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	// Run application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("0DTE signal engine starting...",
		zap.Strings("universe", cfg.Universe.Symbols),
		zap.String("vix_symbol", cfg.Universe.VIXSymbol),
	)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize shared-state store
	store, err := cache.NewRedisStore(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer store.Close()

	// Initialize analytics sink
	sink, err := initAnalyticsSink(cfg)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
	}

	// Initialize operator alert channel
	var alerter risk.Alerter
	if cfg.Telegram.BotToken != "" {
		notifier, err := telegram.NewNotifier(&cfg.Telegram)
		if err != nil {
			logger.Error("failed to create telegram notifier", zap.Error(err))
		} else {
			alerter = notifier
		}
	}

	// Market data pipeline
	histories := marketdata.NewHistorySet(cfg.Regime.HistoryCapacity)
	marketFeed := feed.NewWebSocketFeed(&cfg.Feed, &cfg.Universe)

	go func() {
		if err := marketFeed.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("market data feed error", zap.Error(err))
		}
	}()
	go marketdata.Collect(ctx, marketFeed.Ticks(), histories)

	// Analytics components
	correlationEngine := correlation.NewEngine(&cfg.Correlation, histories, cfg.Universe.Symbols)
	detector := regime.NewDetector(&cfg.Regime)
	generator := signals.NewGenerator(&cfg.Signals, histories, cfg.Universe.Symbols, nil)

	// Risk components
	sizer := risk.NewSizer(risk.LimitsFromConfig(&cfg.Risk))
	riskRepo := risk.NewRepository(db.DB())
	monitor := risk.NewMonitor(sizer, cfg.Feed.StalenessTimeout, cfg.Risk.DailyLossWarningPercent, alerter, riskRepo)
	portfolio := risk.NewPortfolio()

	eng := engine.New(cfg, store, histories, sizer, monitor, portfolio, takeprofit.NewStrategy())

	// Periodic workers
	group := worker.NewWorkerGroup(ctx)
	group.Add(workers.NewCorrelationWorker(correlationEngine, store, &cfg.Correlation, sink), cfg.Correlation.RefreshInterval)
	group.Add(workers.NewRegimeWorker(detector, histories, store, &cfg.Regime, cfg.Universe.VIXSymbol, sink), cfg.Regime.RefreshInterval)
	group.Add(workers.NewSignalWorker(generator, store, &cfg.Signals), cfg.Signals.RefreshInterval)
	group.Add(workers.NewRiskWorker(monitor, portfolio, histories, store, &cfg.Risk, cfg.Universe.VIXSymbol), cfg.Risk.MonitorInterval)
	group.Add(workers.NewExecutionWorker(eng, histories, &cfg.Risk), cfg.Signals.RefreshInterval)
	group.Start()

	logger.Info("signal engine running",
		zap.Duration("correlation_interval", cfg.Correlation.RefreshInterval),
		zap.Duration("regime_interval", cfg.Regime.RefreshInterval),
		zap.Duration("signal_interval", cfg.Signals.RefreshInterval),
		zap.Duration("risk_interval", cfg.Risk.MonitorInterval),
	)

	// Keep service running
	<-ctx.Done()
	logger.Info("shutting down gracefully...")
	group.Stop(shutdownTimeout)

	return nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	migrationsPath := "./migrations"
	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initAnalyticsSink initializes the ClickHouse history sink when enabled
func initAnalyticsSink(cfg *config.Config) (*clickhouse.BatchWriter, error) {
	if !cfg.ClickHouse.Enabled {
		logger.Info("analytics sink disabled")
		return nil, nil
	}

	repo, err := clickhouse.NewRepository(&cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	return clickhouse.NewBatchWriter(repo, 500, 10*time.Second), nil
}
