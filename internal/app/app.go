// Package app builds the process object graph shared by the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	capturemetrics "vericore/internal/kyc/capture/metrics"
	decisionmetrics "vericore/internal/kyc/decision/metrics"
	"vericore/internal/kyc/recognition"
	"vericore/internal/kyc/recognition/gemini"
	recmetrics "vericore/internal/kyc/recognition/metrics"
	"vericore/internal/kyc/recognition/quota"
	kycservice "vericore/internal/kyc/service"
	jwttoken "vericore/internal/jwt_token"
	"vericore/internal/platform/config"
	"vericore/internal/platform/postgres"
	"vericore/internal/platform/redis"
	"vericore/internal/review/export"
	reviewmetrics "vericore/internal/review/metrics"
	reviewservice "vericore/internal/review/service"
	reviewmemory "vericore/internal/review/store/memory"
	reviewpostgres "vericore/internal/review/store/postgres"
	"vericore/internal/settings"
	"vericore/pkg/platform/audit"
	"vericore/pkg/platform/audit/publisher"
	auditkafka "vericore/pkg/platform/audit/store/kafka"
	auditmemory "vericore/pkg/platform/audit/store/memory"
	auditpostgres "vericore/pkg/platform/audit/store/postgres"
	"vericore/pkg/platform/circuit"
)

// App holds the long-lived components. Optional infrastructure is nil when
// not configured.
type App struct {
	Config config.Server
	Logger *slog.Logger

	Redis *redis.Client
	DB    *sql.DB
	Kafka *auditkafka.Sink

	Audit      *publisher.Publisher
	Settings   *settings.Service
	Recognizer recognition.Recognizer
	Review     *reviewservice.Service
	KYC        *kycservice.Service
	JWT        *jwttoken.JWTService
}

// Build connects the configured infrastructure and wires the services. On
// error everything already opened is closed.
func Build(ctx context.Context, cfg config.Server, logger *slog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if a.DB, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if a.DB != nil {
		if err = postgres.Migrate(ctx, a.DB); err != nil {
			return nil, err
		}
	}

	if err = a.buildAudit(ctx); err != nil {
		return nil, err
	}

	snap, err := settings.LoadFile(cfg.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if a.Settings, err = settings.New(snap,
		settings.WithAuditor(a.Audit),
		settings.WithLogger(logger),
	); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	a.Recognizer = a.buildRecognizer()
	a.Review = a.buildReview()
	a.KYC = a.buildKYC()
	a.JWT = jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)

	logger.InfoContext(ctx, "application wired",
		"redis", a.Redis != nil,
		"postgres", a.DB != nil,
		"kafka", a.Kafka != nil,
		"settings_version", snap.Version,
		"model", cfg.Recognition.Model,
	)
	return a, nil
}

func (a *App) buildAudit(ctx context.Context) error {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if a.DB != nil {
		store = auditpostgres.New(a.DB)
	}
	opts := []publisher.Option{publisher.WithLogger(a.Logger)}

	if len(a.Config.Kafka.Brokers) > 0 {
		sink, err := auditkafka.New(a.Config.Kafka.Brokers, a.Config.Kafka.AuditTopic)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		a.Kafka = sink
		if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
			// the broker may auto-create it on first produce
			a.Logger.WarnContext(ctx, "could not ensure audit topic", "topic", a.Config.Kafka.AuditTopic, "error", err)
		}
		opts = append(opts, publisher.WithSink(sink))
	}
	a.Audit = publisher.NewPublisher(store, opts...)
	return nil
}

func (a *App) buildRecognizer() recognition.Recognizer {
	rc := a.Config.Recognition
	client := gemini.NewClient(gemini.Config{
		APIKey:  rc.APIKey,
		BaseURL: rc.BaseURL,
		Model:   rc.Model,
		Timeout: rc.Timeout,
	}, a.Logger)

	var limiter recognition.Limiter = quota.NewInMemoryStore()
	if a.Redis != nil {
		limiter = quota.NewRedisStore(a.Redis.Client, "vericore:quota:")
	}
	breaker := circuit.New("recognition",
		circuit.WithFailureThreshold(rc.BreakerFailures),
		circuit.WithProbeInterval(rc.BreakerProbeInterval),
	)
	return recognition.NewGuard(client, recognition.GuardConfig{
		Model:       client.Model(),
		Timeout:     rc.Timeout,
		Window:      rc.QuotaWindow,
		PerKeyLimit: rc.QuotaPerSession,
		GlobalLimit: rc.QuotaGlobal,
	},
		recognition.WithLimiter(limiter),
		recognition.WithBreaker(breaker),
		recognition.WithLogger(a.Logger),
		recognition.WithMetrics(recmetrics.New()),
	)
}

func (a *App) buildReview() *reviewservice.Service {
	opts := []reviewservice.Option{
		reviewservice.WithExporter(export.NewXLSX()),
		reviewservice.WithAuditor(a.Audit),
		reviewservice.WithLogger(a.Logger),
		reviewservice.WithMetrics(reviewmetrics.New()),
	}
	if a.DB == nil {
		return reviewservice.New(reviewmemory.NewInMemoryStore(), opts...)
	}
	db := a.DB
	opts = append(opts, reviewservice.WithTx(reviewservice.TxFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return postgres.RunInTx(ctx, db, fn)
	})))
	return reviewservice.New(reviewpostgres.New(db), opts...)
}

func (a *App) buildKYC() *kycservice.Service {
	cc := a.Config.Capture
	opts := []kycservice.Option{
		kycservice.WithSessionTTL(cc.SessionTTL),
		kycservice.WithCooldown(cc.Cooldown),
		kycservice.WithRecordSink(a.Review),
		kycservice.WithAuditor(a.Audit),
		kycservice.WithLogger(a.Logger),
		kycservice.WithMetrics(capturemetrics.New()),
		kycservice.WithDecisionMetrics(decisionmetrics.New()),
	}
	if cc.AutoAdvance {
		opts = append(opts, kycservice.WithAutoAdvance(kycservice.DefaultAdvanceDelay))
	}
	return kycservice.New(a.Settings, a.Recognizer, opts...)
}

// HealthChecks lists the configured dependencies by name.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	if a.DB != nil {
		checks["postgres"] = a.DB.PingContext
	}
	if a.Kafka != nil {
		checks["kafka"] = a.Kafka.Ping
	}
	return checks
}

// Close releases everything in reverse order of Build.
func (a *App) Close() error {
	var errs []error
	if a.KYC != nil {
		a.KYC.Close()
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	if a.Kafka != nil {
		a.Kafka.Close()
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
