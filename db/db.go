package db

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type DB struct {
	conn *pgxpool.Pool
}

type Options struct {
	MaxConns int32

	LogQueries   bool
	CountQueries bool
	Trace        bool
}

func NewPSQL(ctx context.Context, dsn string, opts Options) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse DSN: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	tracer := &queryTracer{logQueries: opts.LogQueries, countQueries: opts.CountQueries}
	if opts.Trace {
		tracer.inner = otelpgx.NewTracer()
	}
	config.ConnConfig.Tracer = tracer

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("couldn't ping DB: %w", err)
	}

	return &DB{pool}, nil
}

func (d *DB) GetPool() *pgxpool.Pool {
	return d.conn
}

func (d *DB) Close() error {
	d.conn.Close()
	return nil
}

func mapper[T1 any, T2 any](lst []*T1, f func(*T1) *T2) []*T2 {
	if len(lst) == 0 {
		return []*T2{}
	}
	rez := make([]*T2, len(lst))
	for i := range rez {
		rez[i] = f(lst[i])
	}
	return rez
}
