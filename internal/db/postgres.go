package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CrmAPI/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Postgres owns the pgx pool and the database/sql handle opened on top of it.
type Postgres struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

// InitPostgres connects, pings and returns the pool plus a *sql.DB bound to it.
func InitPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect pgx: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgx: %w", err)
	}
	logger.Info("postgres_connected", map[string]any{"max_conns": cfg.MaxConns})

	return &Postgres{Pool: pool, DB: stdlib.OpenDBFromPool(pool)}, nil
}

func (p *Postgres) Close() {
	if p == nil {
		return
	}
	if p.DB != nil {
		_ = p.DB.Close()
	}
	if p.Pool != nil {
		p.Pool.Close()
	}
}
