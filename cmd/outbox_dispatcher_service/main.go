package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/relaydesk/golang_services/internal/outbox_service/adapters/gateway"
	"github.com/relaydesk/golang_services/internal/outbox_service/app"
	"github.com/relaydesk/golang_services/internal/outbox_service/repository/postgres"
	transporthttp "github.com/relaydesk/golang_services/internal/outbox_service/transport/http"
	"github.com/relaydesk/golang_services/internal/platform/config"
	"github.com/relaydesk/golang_services/internal/platform/database"
	"github.com/relaydesk/golang_services/internal/platform/logger"
	"github.com/relaydesk/golang_services/internal/platform/messagebroker"
)

func main() {
	cfg, err := config.Load("outbox-dispatcher-service")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Outbox Dispatcher Service starting...", "log_level", cfg.LogLevel)

	if cfg.CredentialAESKey == "" {
		appLogger.Error("Credential AES key is not configured (APP_CREDENTIAL_AES_KEY)")
		os.Exit(1)
	}
	aesKey, err := base64.StdEncoding.DecodeString(cfg.CredentialAESKey)
	if err != nil {
		appLogger.Error("Credential AES key is not valid base64", "error", err)
		os.Exit(1)
	}
	decryptor, err := gateway.NewAESCredentialDecryptor(aesKey)
	if err != nil {
		appLogger.Error("Failed to initialize credential decryptor", "error", err)
		os.Exit(1)
	}

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	var publisher messagebroker.Publisher
	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "outbox-dispatcher-service", appLogger)
	if err != nil {
		appLogger.Warn("NATS unavailable, realtime change feed disabled", "error", err)
	} else {
		defer natsClient.Close()
		publisher = natsClient
		appLogger.Info("Successfully connected to NATS")
	}

	outboxRepo := postgres.NewPgOutboxRepository(dbPool)
	channelRepo := postgres.NewPgChannelRepository(dbPool)
	chatReader := postgres.NewPgChatReader(dbPool)
	messageWriter := postgres.NewPgMessageWriter(dbPool)

	notifier := messagebroker.NewChangeNotifier(publisher, appLogger)
	gatewayClient := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.DispatchSendTimeout, appLogger)

	dispatcher := app.NewDispatcher(
		app.DispatcherConfig{
			PollInterval:    cfg.DispatchPollInterval,
			BatchSize:       cfg.DispatchBatchSize,
			SendTimeout:     cfg.DispatchSendTimeout,
			StaleSendingAge: cfg.DispatchStaleSendingAge,
		},
		outboxRepo, channelRepo, messageWriter, gatewayClient, decryptor, notifier, appLogger,
	)

	enqueueService := app.NewEnqueueService(outboxRepo, channelRepo, chatReader, messageWriter, notifier, appLogger)
	sendHandler := transporthttp.NewSendHandler(enqueueService, validator.New(), appLogger)
	router := transporthttp.NewRouter(sendHandler, cfg.APIJWTSecret, appLogger)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	go func() {
		if err := dispatcher.Run(appCtx); err != nil && err != context.Canceled {
			appLogger.Error("Dispatcher loop exited", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.DispatcherPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Dispatcher API listening", "port", cfg.DispatcherPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Graceful shutdown failed", "error", err)
	}
	appLogger.Info("Outbox Dispatcher Service shut down successfully.")
}
