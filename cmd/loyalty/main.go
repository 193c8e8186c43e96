package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyplane/pkg/config"
	"loyaltyplane/pkg/db"
	"loyaltyplane/pkg/gen"
	"loyaltyplane/pkg/health"
	"loyaltyplane/pkg/logger"
	"loyaltyplane/pkg/middleware"
	"loyaltyplane/pkg/otelcol"
	"loyaltyplane/pkg/otelcol/exporters"
	"loyaltyplane/pkg/profiling"
	"loyaltyplane/pkg/redis"
	"loyaltyplane/pkg/sequence"
	"loyaltyplane/pkg/server"
	"loyaltyplane/pkg/task"
	"loyaltyplane/services/audit"
	"loyaltyplane/services/ledger"
	"loyaltyplane/services/member"
	"loyaltyplane/services/mission"
	"loyaltyplane/services/wheel"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		sequence.Module,
		gen.Module,
		health.Module,
		profiling.Module,
		fx.Provide(
			provideSpanExporter,
			provideTracerProvider,
			provideRouter,
		),
		member.Module,
		ledger.Module,
		wheel.Module,
		mission.Module,
		audit.Module,
		server.ProvideHTTPServer,
		fx.Invoke(registerTracing, migrate),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSpanExporter(cfg *config.Config) (*otlptrace.Exporter, error) {
	if cfg.Otel.Protocol == "grpc" {
		return exporters.ProvideGrpc(cfg)
	}
	return exporters.ProvideHttp(cfg)
}

func provideTracerProvider(exporter *otlptrace.Exporter) *sdktrace.TracerProvider {
	return otelcol.ProvideTrace(exporter)
}

func registerTracing(lc fx.Lifecycle, tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}

func provideRouter(h health.HealthService) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)

	return r
}

// migrate keeps the schema current. The reference index is partial so
// transactions without a reference never collide.
func migrate(conn *gorm.DB, cfg *config.Config) error {
	if err := db.Otel(conn); err != nil {
		return err
	}
	if cfg.Database.Type != "sqlite" {
		if err := db.Metric(conn, cfg); err != nil {
			return err
		}
	}

	if err := conn.AutoMigrate(
		&member.Member{},
		&ledger.Transaction{},
		&wheel.Wheel{},
		&wheel.WheelItem{},
		&wheel.Spin{},
		&mission.Mission{},
		&mission.MissionCompletion{},
		&audit.AuditRecord{},
	); err != nil {
		return err
	}

	return conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_transactions_reference
		 ON transactions (reference_type, reference_id)
		 WHERE reference_id <> ''`,
	).Error
}
