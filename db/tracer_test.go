package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/matryer/is"
)

func TestQueryTracerCounts(t *testing.T) {
	is := is.New(t)
	is.Equal(GetContextQueryCount(context.Background()), int64(-1)) // no counter attached

	ctx := InitContextCounter(context.Background())
	tracer := &queryTracer{countQueries: true}
	for range 3 {
		tracer.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	}
	is.Equal(GetContextQueryCount(ctx), int64(3))

	off := &queryTracer{}
	off.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	is.Equal(GetContextQueryCount(ctx), int64(3)) // counting disabled
}
