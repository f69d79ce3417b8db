// Package postgres stores board documents in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/config"
)

// connectTimeout bounds each new physical connection.
const connectTimeout = 10 * time.Second

// Pool is the board catalogue's connection pool.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// PoolConfig translates cfg into a pgxpool configuration. New connections
// are logged at debug level.
//
// Postcondition: returns an error only when cfg does not form a valid DSN.
func PoolConfig(cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.ConnConfig.ConnectTimeout = connectTimeout
	pc.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		logger.Debug("database connection opened", zap.Uint32("pid", conn.PgConn().PID()))
		return nil
	}
	return pc, nil
}

// NewPool opens the pool described by cfg and verifies it answers.
//
// Precondition: logger is non-nil.
// Postcondition: Returns a connected Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	pc, err := PoolConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	raw, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	p := &Pool{pool: raw, logger: logger}
	if err := p.ping(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("database %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	logger.Info("database pool ready",
		zap.String("database", cfg.Name),
		zap.Int32("max_conns", pc.MaxConns),
		zap.Duration("elapsed", time.Since(started)),
	)
	return p, nil
}

func (p *Pool) ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Health reports whether the database answers within timeout.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("database health: %w", err)
	}
	return nil
}

// Close drains the pool. It logs the connection totals it held.
func (p *Pool) Close() {
	st := p.pool.Stat()
	p.pool.Close()
	p.logger.Debug("database pool closed",
		zap.Int32("total_conns", st.TotalConns()),
		zap.Int64("acquired", st.AcquireCount()),
	)
}

// DB exposes the pgx pool to repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
