package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/api"
	"github.com/givemart/givemart/apiv2"
	"github.com/givemart/givemart/integrations/prometheus"
	"github.com/givemart/givemart/integrations/telemetry"
	"github.com/givemart/givemart/internal/auth"
	"github.com/givemart/givemart/internal/config"
	"github.com/givemart/givemart/sudoapi"
	"github.com/givemart/givemart/sudoapi/flags"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/riandyrn/otelchi"
	"golang.org/x/sync/errgroup"
)

func newAuthorizer() (*auth.Authorizer, error) {
	secret := strings.TrimSpace(os.Getenv("GIVEMART_AUTH_SECRET"))
	if secret == "" {
		secret = flags.AuthSigningSecret.Value()
	}
	return auth.NewAuthorizer(secret, flags.AuthIssuer.Value())
}

func runServe(ctx context.Context, _ []string) error {
	slog.InfoContext(ctx, "Starting givemart", slog.String("version", givemart.Version))
	if config.Common.Debug {
		slog.WarnContext(ctx, "Debug mode activated, expect worse performance")
	}

	authorizer, err := newAuthorizer()
	if err != nil {
		return err
	}

	base, err := sudoapi.InitializeBaseAPI(ctx, *memoryStore)
	if err != nil {
		return err
	}
	defer func() {
		if err := base.Close(); err != nil {
			slog.WarnContext(ctx, "Couldn't close ledger", slog.Any("err", err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	base.Start(ctx)
	prometheus.InitMetrics(ctx)

	r := chi.NewRouter()

	corsConfig := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsConfig.Handler)
	if flags.OtelEnabled.Value() {
		r.Use(otelchi.Middleware("givemart", otelchi.WithChiRoutes(r)))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Mount("/api", api.New(base, authorizer).Handler())
	r.Mount("/v2", apiv2.New(base, authorizer).Handler())

	var handler http.Handler = r
	if flags.OtelEnabled.Value() {
		handler = telemetry.HTTPHandler(r, "givemart")
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(ctx, "Successfully started", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("couldn't serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 20*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("couldn't shut down server: %w", err)
		}
		base.FlushAuditLogs(shutdownCtx)
		return nil
	})
	return g.Wait()
}
