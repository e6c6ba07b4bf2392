package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"vericore/internal/app"
	jwttoken "vericore/internal/jwt_token"
	kychandler "vericore/internal/kyc/handler"
	"vericore/internal/platform/config"
	"vericore/internal/platform/httpserver"
	"vericore/internal/platform/logger"
	"vericore/internal/platform/metrics"
	reviewhandler "vericore/internal/review/handler"
	settingshandler "vericore/internal/settings/handler"
	httptransport "vericore/internal/transport/http"
	"vericore/pkg/platform/middleware/admin"
	authmw "vericore/pkg/platform/middleware/auth"
)

const shutdownTimeout = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() && cfg.JWT.SigningKey == "dev-secret-key-change-in-production" {
		return errors.New("JWT_SIGNING_KEY must be set in production")
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close resources", "error", err)
		}
	}()

	m := metrics.New()
	m.SetBuildInfo(cfg.Environment)

	reviewerGuard := authmw.RequireReviewer(jwttoken.NewJWTServiceAdapter(a.JWT), log)
	adminGuard := admin.RequireAdminToken([]byte(cfg.AdminTokenHash), log)

	opts := []httptransport.Option{
		httptransport.WithMetrics(m),
		httptransport.WithHandlers(
			kychandler.New(a.KYC, log),
			reviewhandler.New(a.Review, log, reviewerGuard),
			settingshandler.New(a.Settings, log, adminGuard),
		),
	}
	for name, check := range a.HealthChecks() {
		opts = append(opts, httptransport.WithHealthCheck(name, check))
	}
	api := httpserver.New(cfg.Addr, httptransport.NewRouter(log, opts...))

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", metrics.Handler())
	metricsSrv := httpserver.New(cfg.MetricsAddr, metricsRouter)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting vericore api", "addr", cfg.Addr, "environment", cfg.Environment)
		return serve(api)
	})
	g.Go(func() error {
		log.Info("starting metrics listener", "addr", cfg.MetricsAddr)
		return serve(metricsSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(api.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
