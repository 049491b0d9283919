package db

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
)

type queryCounterKey struct{}

// InitContextCounter attaches a query counter to ctx. Queries run with the
// returned context are counted when behavior.db.count_queries is on.
func InitContextCounter(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryCounterKey{}, new(atomic.Int64))
}

func GetContextQueryCount(ctx context.Context) int64 {
	cnt, ok := ctx.Value(queryCounterKey{}).(*atomic.Int64)
	if !ok {
		return -1
	}
	return cnt.Load()
}

var _ pgx.QueryTracer = &queryTracer{}

type queryTracer struct {
	logQueries   bool
	countQueries bool

	inner pgx.QueryTracer
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if t.countQueries {
		if cnt, ok := ctx.Value(queryCounterKey{}).(*atomic.Int64); ok {
			cnt.Add(1)
		}
	}
	if t.logQueries {
		slog.DebugContext(ctx, "SQL query", slog.String("sql", data.SQL), slog.Int("args", len(data.Args)))
	}
	if t.inner != nil {
		return t.inner.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if t.logQueries && data.Err != nil {
		slog.DebugContext(ctx, "SQL query failed", slog.Any("err", data.Err))
	}
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}
}
