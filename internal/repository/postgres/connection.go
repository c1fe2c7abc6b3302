package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostelfood-creator/hostel-review-sub001/database"
)

type Connection struct {
	*pgxpool.Pool
}

// NewConnection opens a pool on the ordinary read credential.
func NewConnection(ctx context.Context, dsn string) (*Connection, error) {
	return newPool(ctx, dsn)
}

// NewAdminConnection opens a pool on the privileged credential and
// brings the schema up to date before returning.
func NewAdminConnection(ctx context.Context, dsn string) (*Connection, error) {
	conn, err := newPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx, dsn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return conn, nil
}

func newPool(ctx context.Context, dsn string) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	return &Connection{Pool: pool}, nil
}

func (s *Connection) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return s.Pool.Ping(ctx)
}
