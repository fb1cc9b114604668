// Package app wires the catalog service together: config, logging, tracing,
// the catalog database, and the Kafka consumer and producer.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/product"
	"github.com/Ramsey-B/clover/internal/repositories/strain"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/lineage"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// App holds the assembled service.
type App struct {
	Config   *config.Config
	Logger   ectologger.Logger
	DB       database.DB
	Products *product.Repository
	Strains  *strain.Repository
	Matcher  *matching.Service
	Merger   *merging.Merger
	Handler  *processor.Handler

	consumer       *kafka.Consumer
	producer       *kafka.Producer
	tracerShutdown func(context.Context) error
}

// New loads config, connects to the catalog database, runs migrations, and
// builds the processing pipeline. It does not start consuming.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	if err := a.setupTracing(ctx); err != nil {
		return nil, err
	}

	db, raw, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if err := migrate(cfg, logger, raw); err != nil {
		return nil, err
	}

	a.Products = product.NewRepository(db, logger, cfg.StoreTimeout)
	a.Strains = strain.NewRepository(db, logger, cfg.StoreTimeout)
	a.Matcher = matching.NewService(logger, a.Products, matching.Config{
		Threshold:      cfg.MatchThreshold,
		CandidateLimit: cfg.CandidateLimit,
	})
	a.Merger = merging.NewMerger(logger, lineage.NewClassifier())

	coordinator := processor.NewCoordinator(logger, a.Matcher, a.Merger, a.Products, a.Strains, processor.CoordinatorConfig{
		WorkerCount: cfg.BatchWorkerCount,
	})

	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaTagTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)

	a.Handler = processor.NewHandler(logger, coordinator, a.producer)

	if cfg.KafkaConsumerEnabled {
		a.consumer = kafka.NewConsumer(*cfg, logger, a.Handler.HandleMessage)
	}

	return a, nil
}

// Start begins consuming inventory batches.
func (a *App) Start(ctx context.Context) error {
	if a.consumer == nil {
		a.Logger.WithContext(ctx).Info("Kafka consumer disabled")
		return nil
	}
	return a.consumer.Start(ctx)
}

// Stop drains the consumer, flushes the producer, and closes the database.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error
	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) setupTracing(ctx context.Context) error {
	cfg := a.Config
	if !cfg.TracingEnabled {
		tp := sdktrace.NewTracerProvider()
		tracing.SetTracer(tp.Tracer(cfg.AppName))
		return nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
	})
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	a.tracerShutdown = tp.Shutdown
	return nil
}

func connect(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (database.DB, *sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	attempts := cfg.StartupMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var db *sqlx.DB
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
		if err == nil {
			break
		}
		logger.WithContext(ctx).WithError(err).Warnf(
			"Database not ready (attempt %d/%d)", attempt, attempts)

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	return database.NewDatabaseInstance(db, logger), db, nil
}

func migrate(cfg *config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}
