package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaydesk/golang_services/internal/platform/config"
	"github.com/relaydesk/golang_services/internal/platform/database"
	"github.com/relaydesk/golang_services/internal/platform/logger"
	"github.com/relaydesk/golang_services/internal/platform/messagebroker"
	"github.com/relaydesk/golang_services/internal/webhook_service/app"
	"github.com/relaydesk/golang_services/internal/webhook_service/repository/postgres"
	transporthttp "github.com/relaydesk/golang_services/internal/webhook_service/transport/http"
)

func main() {
	cfg, err := config.Load("webhook-gateway-service")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Webhook Gateway Service starting...", "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	// The change feed is best effort; the gateway keeps ingesting webhooks
	// without it.
	var publisher messagebroker.Publisher
	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "webhook-gateway-service", appLogger)
	if err != nil {
		appLogger.Warn("NATS unavailable, realtime change feed disabled", "error", err)
	} else {
		defer natsClient.Close()
		publisher = natsClient
		appLogger.Info("Successfully connected to NATS")
	}

	var redisClient *redis.Client
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		appLogger.Warn("Redis unavailable, channel auth caching disabled", "error", err)
	} else {
		redisClient = rdb
		defer redisClient.Close()
		appLogger.Info("Successfully connected to Redis")
	}
	cancelPing()

	channelRepo := postgres.NewPgChannelRepository(dbPool)
	chatRepo := postgres.NewPgChatRepository(dbPool)
	messageRepo := postgres.NewPgMessageRepository(dbPool)
	contactIndexRepo := postgres.NewPgContactIndexRepository(dbPool)

	normalizer := app.DigitsNormalizer{}
	linker := app.NewContactLinker(chatRepo, channelRepo, contactIndexRepo, normalizer, appLogger)
	resolver := app.NewChatResolver(chatRepo, linker, normalizer, appLogger)
	notifier := messagebroker.NewChangeNotifier(publisher, appLogger)
	processor := app.NewEventProcessor(channelRepo, chatRepo, messageRepo, resolver, notifier, appLogger)
	authCache := app.NewChannelAuthCache(redisClient, channelRepo, cfg.ChannelAuthCacheTTL, appLogger)

	handler := transporthttp.NewWebhookHandler(authCache, processor, appLogger)
	router := transporthttp.NewRouter(handler, appLogger)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Periodic contact backfill: hash phone numbers and link chats created
	// before their contact existed.
	go func() {
		ticker := time.NewTicker(cfg.ContactBackfillInterval)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				res, err := linker.Backfill(appCtx, cfg.ContactBackfillBatchSize)
				if err != nil {
					appLogger.Error("Contact backfill run failed", "error", err)
					continue
				}
				if res.Hashed > 0 || res.Linked > 0 {
					appLogger.Info("Contact backfill run completed", "hashed", res.Hashed, "linked", res.Linked)
				}
			}
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebhookGatewayPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Webhook gateway listening", "port", cfg.WebhookGatewayPort)
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
	appLogger.Info("Webhook Gateway Service shut down successfully.")
}
