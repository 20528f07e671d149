// Package clickhouse persists resolved transaction reports in ClickHouse.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type Repository struct {
	conn    Conn
	db      clickhouse.Conn
	metrics Metrics
	now     func() time.Time
}

func NewRepository(dsn string, metrics Metrics) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}
	if metrics == nil {
		return nil, errors.New("repository metrics is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	db, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Repository{
		conn:    nativeConn{db: db},
		db:      db,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Ping checks that the server is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// nativeConn narrows clickhouse.Conn to Conn.
type nativeConn struct {
	db clickhouse.Conn
}

func (c nativeConn) PrepareBatch(ctx context.Context, query string) (Batch, error) {
	batch, err := c.db.PrepareBatch(ctx, query)
	if err != nil {
		return nil, err
	}
	return batch, nil
}
