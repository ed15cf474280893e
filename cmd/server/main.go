package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sdko-org/filebed-relay/internal/admin"
	"github.com/sdko-org/filebed-relay/internal/config"
	"github.com/sdko-org/filebed-relay/internal/database"
	"github.com/sdko-org/filebed-relay/internal/handlers"
	"github.com/sdko-org/filebed-relay/internal/kv"
	"github.com/sdko-org/filebed-relay/internal/ledger"
	"github.com/sdko-org/filebed-relay/internal/relay"
	"github.com/sdko-org/filebed-relay/internal/sink"
	"github.com/sdko-org/filebed-relay/internal/telegram"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	logger := logrus.New()
	if os.Getenv("LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Configuration error")
	}

	var db *gorm.DB
	var store kv.Store
	if cfg.LedgerEnabled() {
		db, err = database.NewPostgresDB(logger, database.PostgresConfig{
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			DBName:   cfg.PostgresDatabase,
			SSLMode:  cfg.PostgresSSLMode,
		})
		if err != nil {
			logger.WithError(err).Fatal("Database setup failed")
		}
		store = kv.NewGormStore(logger, db)
	} else {
		logger.Warn("No Postgres binding configured, ledger data will not survive restarts")
		store = kv.NewMemStore()
	}

	tgClient := telegram.NewClient(logger, cfg.TelegramAPI, cfg.BotToken)

	var uploader sink.Uploader
	switch cfg.SinkDriver {
	case config.SinkDriverS3:
		uploader = sink.NewS3Sink(logger, sink.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	default:
		uploader = sink.NewHTTPSink(logger, cfg.SinkBaseURL, cfg.SinkAuthCode, cfg.UploadTimeout)
	}

	usageLedger := ledger.New(logger, store)
	console := admin.NewConsole(logger, usageLedger, tgClient, cfg.AdminIDs)

	rel := relay.New(logger, tgClient, uploader, usageLedger, tgClient, relay.Options{
		MaxFileSize:     cfg.MaxFileSize,
		DownloadTimeout: cfg.DownloadTimeout,
		UploadTimeout:   cfg.UploadTimeout,
	})

	handler := handlers.NewHandler(logger, cfg, rel, usageLedger, console, tgClient)

	r := mux.NewRouter()
	r.Use(handlers.LoggingMiddleware(logger, db))
	r.Use(handlers.RateLimitMiddleware(cfg))
	handlers.RegisterRoutes(r, handler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	logger.WithField("addr", server.Addr).Info("Starting server")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("Server failed")
	}
}
