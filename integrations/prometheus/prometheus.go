package prometheus

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/givemart/givemart/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsEnabled = config.GenFlag("integrations.prometheus.enabled", false, "Serve Prometheus metrics on a separate listener")
	metricsHost    = config.GenFlag("integrations.prometheus.host", "", "Interface the metrics listener binds to. Empty means all")
	metricsPort    = config.GenFlag("integrations.prometheus.port", 8071, "Port of the metrics listener")
)

// InitMetrics serves /metrics in the background until ctx is done.
// It does nothing when integrations.prometheus.enabled is off.
func InitMetrics(ctx context.Context) {
	if !metricsEnabled.Value() {
		return
	}
	handler := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		}),
	)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)

	srv := &http.Server{
		Addr:              net.JoinHostPort(metricsHost.Value(), strconv.Itoa(metricsPort.Value())),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	go func() {
		slog.InfoContext(ctx, "Serving Prometheus metrics", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "Metrics listener stopped", slog.Any("err", err))
		}
	}()
}
