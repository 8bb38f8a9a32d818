package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/transfer-notifier/internal/application/dispatch"
	"github.com/transfer-notifier/internal/application/notification"
	"github.com/transfer-notifier/internal/application/retention"
	"github.com/transfer-notifier/internal/config"
	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/infrastructure/dynamo"
	"github.com/transfer-notifier/internal/infrastructure/fcm"
	jwtinfra "github.com/transfer-notifier/internal/infrastructure/jwt"
	s3infra "github.com/transfer-notifier/internal/infrastructure/s3"
	"github.com/transfer-notifier/internal/infrastructure/sns"
	"github.com/transfer-notifier/internal/infrastructure/stream"
	"github.com/transfer-notifier/internal/observability"
	"github.com/transfer-notifier/internal/scheduler"
	transporthttp "github.com/transfer-notifier/internal/transport/http"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("notifier stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()

	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.DynamoBootstrap {
		if err := dynamo.Bootstrap(ctx, dynamoClient, cfg.NotificationsTable, logger); err != nil {
			return err
		}
	}
	repo := dynamo.NewNotificationRepo(dynamoClient, cfg.NotificationsTable)

	sender, err := newSender(ctx, cfg)
	if err != nil {
		return err
	}

	dispatcher := dispatch.NewService(dispatch.ServiceDeps{
		Store:     repo,
		Sender:    sender,
		ChannelID: cfg.AndroidChannelID,
		Logger:    logger,
		Metrics:   metrics,
	})

	sweepDeps := retention.ServiceDeps{
		Store:     repo,
		Retention: cfg.Retention(),
		Logger:    logger,
		Metrics:   metrics,
	}
	if cfg.ArchiveBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		sweepDeps.Archiver = s3infra.NewStore(s3Client, cfg.ArchiveBucket)
	}
	sweeper := retention.NewService(sweepDeps)

	sweepJob, err := scheduler.New("retention-sweep", cfg.SweepInterval(), func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	}, cfg.SweepOnStart, logger)
	if err != nil {
		return err
	}

	ready := func(ctx context.Context) error {
		return dynamo.Ping(ctx, dynamoClient, cfg.NotificationsTable)
	}
	deps := &transporthttp.Deps{
		Dispatcher:    dispatcher,
		Notifications: notification.NewService(repo, dispatcher),
		Sweeper:       sweeper,
		Ready:         ready,
		Logger:        logger,
		Metrics:       metrics,
	}
	// JWT provider is optional; without it the protected routes stay unmounted.
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		deps.Verifier = p
	} else {
		logger.Warn("JWT provider not available", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sweepJob.Start(gctx) })

	if cfg.StreamEnabled {
		consumer, err := newConsumer(ctx, cfg, dynamoClient, dispatcher, logger, metrics)
		if err != nil {
			return err
		}
		g.Go(func() error { return consumer.Run(gctx) })
	}

	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newSender(ctx context.Context, cfg *config.Config) (dispatch.Sender, error) {
	if cfg.PushProvider == config.PushProviderSNS {
		s, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := fcm.NewSender(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newConsumer(
	ctx context.Context,
	cfg *config.Config,
	tables dynamo.TableAPI,
	dispatcher dispatch.Service,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*stream.Consumer, error) {
	arn, err := dynamo.StreamARN(ctx, tables, cfg.NotificationsTable)
	if err != nil {
		return nil, err
	}
	client, err := stream.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, rec domain.NotificationRecord) error {
		_, err := dispatcher.Dispatch(ctx, rec)
		return err
	}

	return stream.NewConsumer(client, handler, stream.Options{
		StreamARN:    arn,
		IteratorType: cfg.StreamIteratorType,
		PollInterval: cfg.StreamPollInterval(),
		ShardRefresh: cfg.StreamShardRefresh(),
		Attempts:     cfg.StreamHandlerAttempts,
		Logger:       logger,
		Metrics:      metrics,
	}), nil
}
