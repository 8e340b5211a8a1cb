// Package archive provides a best-effort, fire-and-forget audit sink for
// alerts, anomalies and shift events. It is adapted from the teacher's
// pkg/database client, narrowed to an append-only write path: nothing here
// is ever read back, so it never becomes a second source of truth for the
// state the core analyzers hold in memory (no persistence-across-restarts
// non-goal preserved).
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Config holds the archiver's Postgres connection parameters.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	PoolSize int
}

// AlertRecord is one latency-threshold alert row.
type AlertRecord struct {
	Time      time.Time
	Key       string
	P95MS     float64
	Threshold float64
	Samples   int
}

// AnomalyRecord is one baseline-anomaly event row.
type AnomalyRecord struct {
	Time   time.Time
	Key    string
	Metric string
	Value  float64
	Mean   float64
	Std    float64
	Z      float64
}

// ShiftRecord is one distribution-shift event row.
type ShiftRecord struct {
	Time       time.Time
	Dimension  string
	L1Distance float64
}

// Archiver writes events to Postgres via the pgx connection pool. Writes run
// in background goroutines and never block a caller: they are best-effort
// and log-and-continue on error. Its methods dereference the pool, so they
// must be called on an Archiver returned by New, not on a nil one.
type Archiver struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to Postgres per cfg. The caller owns the returned Archiver's
// lifetime and must call Close when done.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Archiver, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.PoolSize,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse archive config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.PoolSize)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create archive pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}

	return &Archiver{pool: pool, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (a *Archiver) Close() {
	a.pool.Close()
}

// WriteAlerts archives alert rows asynchronously; failures are logged, not
// returned, since an alert already reached its caller before archival.
func (a *Archiver) WriteAlerts(ctx context.Context, records []AlertRecord) {
	if len(records) == 0 {
		return
	}
	go func() {
		_, err := a.pool.CopyFrom(ctx,
			pgx.Identifier{"alerts"},
			[]string{"time", "flow_key", "p95_ms", "threshold_ms", "samples"},
			pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
				r := records[i]
				return []interface{}{r.Time, r.Key, r.P95MS, r.Threshold, r.Samples}, nil
			}),
		)
		if err != nil {
			a.logger.Warn("archive alerts failed", zap.Error(err), zap.Int("count", len(records)))
		}
	}()
}

// WriteAnomalies archives anomaly event rows asynchronously.
func (a *Archiver) WriteAnomalies(ctx context.Context, records []AnomalyRecord) {
	if len(records) == 0 {
		return
	}
	go func() {
		_, err := a.pool.CopyFrom(ctx,
			pgx.Identifier{"anomalies"},
			[]string{"time", "group_key", "metric", "value", "mean", "std", "z"},
			pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
				r := records[i]
				return []interface{}{r.Time, r.Key, r.Metric, r.Value, r.Mean, r.Std, r.Z}, nil
			}),
		)
		if err != nil {
			a.logger.Warn("archive anomalies failed", zap.Error(err), zap.Int("count", len(records)))
		}
	}()
}

// WriteShift archives one shift event row asynchronously.
func (a *Archiver) WriteShift(ctx context.Context, record ShiftRecord) {
	go func() {
		_, err := a.pool.Exec(ctx,
			`INSERT INTO shifts (time, dimension, l1_distance) VALUES ($1, $2, $3)`,
			record.Time, record.Dimension, record.L1Distance,
		)
		if err != nil {
			a.logger.Warn("archive shift failed", zap.Error(err))
		}
	}()
}
