package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/archive"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/config"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/email"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/metrics"
	miniostorage "github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/minio"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/postgres"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/rabbitmq"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/tracing"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/usecase"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting vipflie-curation-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		UploadBucket:   cfg.MinIOUploadBucket,
		FrameSetBucket: cfg.MinIOFrameSetBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	progressPub := rabbitmq.NewProgressPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	curator := engine.NewService(engineDefaults(cfg), log)
	zipper := archive.NewFrameSetZipper()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewCurateVideoUseCase(
		repo, storage, curator, zipper,
		statusPub, progressPub, dlqPub, notifier,
		log,
		usecase.CurateVideoConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:           cfg.RabbitMQURL,
		Queue:         cfg.RabbitMQRequestQueue,
		Exchange:      cfg.RabbitMQExchange,
		DLQ:           cfg.RabbitMQDLQ,
		StatusQueue:   cfg.RabbitMQStatusQueue,
		ProgressQueue: cfg.RabbitMQProgressQueue,
		Prefetch:      cfg.RabbitMQPrefetch,
		WorkerCount:   cfg.WorkerCount,
		BaseDelayMs:   cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("vipflie-curation-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("vipflie-curation-service stopped")
}

func engineDefaults(cfg *config.Config) engine.Config {
	def := engine.DefaultConfig()
	def.SamplingMode = cfg.SamplingMode
	def.SampleEveryN = cfg.SampleEveryN
	def.SampleInterval = time.Duration(cfg.SampleIntervalSecs * float64(time.Second))
	def.TargetFrameCount = cfg.TargetFrameCount
	def.MinSharpness = cfg.QualityThreshold
	def.BlurCeiling = cfg.BlurCeiling
	def.MinDistance = cfg.DiversityThreshold
	def.DistanceDecay = cfg.DiversityDecay
	def.MaxRelaxations = cfg.MaxRelaxations
	def.ScoreWorkers = cfg.ScoreWorkers
	return def
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
