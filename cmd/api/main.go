package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/go-classroom-api/internal/config"
	"github.com/go-classroom-api/internal/infrastructure/blob"
	"github.com/go-classroom-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-classroom-api/internal/infrastructure/jwt"
	"github.com/go-classroom-api/internal/infrastructure/sns"
	"github.com/go-classroom-api/internal/pkg/logger"
	"github.com/go-classroom-api/internal/realtime"
	transporthttp "github.com/go-classroom-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables, zlog)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		zlog.Warn("jwt provider not available", zap.Error(err))
	}

	attachments, err := newAttachmentStore(cfg, zlog)
	if err != nil {
		zlog.Fatal("attachment store init", zap.Error(err))
	}

	// Ops alerting is optional; without a topic the risk-flag flow still
	// persists notifications and broadcasts, it just does not page anyone.
	var alerts sns.AlertPublisher
	if cfg.SNSAlertTopicARN != "" {
		if p, err := sns.NewPublisher(cfg); err == nil {
			alerts = p
		} else {
			zlog.Warn("sns publisher not available", zap.Error(err))
		}
	}

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:      dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		GroupRepo:        dynamo.NewGroupRepo(dynamoClient, cfg.DynamoTables.Groups),
		MessageRepo:      dynamo.NewMessageRepo(dynamoClient, cfg.DynamoTables.Messages),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		Attachments:      attachments,
		Registry:         realtime.NewRegistry(zlog),
		Alerts:           alerts,
		JWTProvider:      jwtProvider,
		Logger:           zlog,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatal("forced shutdown", zap.Error(err))
	}
	zlog.Info("server stopped")
}

func newAttachmentStore(cfg *config.Config, zlog *zap.Logger) (blob.Store, error) {
	switch cfg.AttachmentDriver {
	case "s3":
		return blob.NewS3Store(blob.NewS3Client(cfg), cfg.S3BucketName, cfg.MaxAttachmentBytes, zlog), nil
	default:
		return blob.NewLocalStore(cfg.UploadDir, cfg.MaxAttachmentBytes, zlog)
	}
}
