package clickhouse

import (
	"context"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

// Repository writes analytics history to ClickHouse for offline baseline
// analysis. Write failures never propagate into the computation cycle.
type Repository struct {
	db *sqlx.DB
}

// NewRepository opens a ClickHouse connection
func NewRepository(cfg *config.ClickHouseConfig) (*Repository, error) {
	db, err := sqlx.Connect("clickhouse", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	logger.Info("clickhouse analytics sink initialized",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &Repository{db: db}, nil
}

// SaveCorrelationSamples batch-inserts computed correlation samples
func (r *Repository) SaveCorrelationSamples(ctx context.Context, samples []models.CorrelationSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO correlation_samples
		(calculated_at, base_symbol, quote_symbol, short_term, medium_term, long_term, rolling_mean, rolling_std, sample_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		_, err = stmt.ExecContext(ctx,
			s.CalculatedAt,
			s.Pair.Base,
			s.Pair.Quote,
			s.ShortTerm,
			s.MediumTerm,
			s.LongTerm,
			s.RollingMean,
			s.RollingStd,
			s.SampleSize,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert correlation sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved correlation samples to clickhouse",
		zap.Int("count", len(samples)),
	)

	return nil
}

// SaveRegimeStates batch-inserts regime detection results
func (r *Repository) SaveRegimeStates(ctx context.Context, states []models.RegimeState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO regime_states
		(detected_at, regime, vix_level, confidence, adaptation_factor, regime_change, vix_trend, volatility_percentile)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range states {
		_, err = stmt.ExecContext(ctx,
			s.DetectedAt,
			string(s.Regime),
			s.VIXLevel,
			s.Confidence,
			s.AdaptationFactor,
			s.RegimeChange,
			string(s.Trend),
			s.Percentile,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert regime state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved regime states to clickhouse",
		zap.Int("count", len(states)),
	)

	return nil
}

// Close closes the connection
func (r *Repository) Close() error {
	return r.db.Close()
}
