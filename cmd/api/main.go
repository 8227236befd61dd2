package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/brickbid/brickbid/internal/adapters/api"
	"github.com/brickbid/brickbid/internal/adapters/cache"
	"github.com/brickbid/brickbid/internal/adapters/database"
	"github.com/brickbid/brickbid/internal/config"
	"github.com/brickbid/brickbid/internal/domain/accounts"
	"github.com/brickbid/brickbid/internal/domain/auction"
	"github.com/brickbid/brickbid/internal/domain/listings"
	"github.com/brickbid/brickbid/internal/domain/stats"
	"github.com/brickbid/brickbid/pkg/auth"
	pkgdb "github.com/brickbid/brickbid/pkg/database"
	pkgevents "github.com/brickbid/brickbid/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Postgres
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := pkgevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	// Redis holds the login challenge nonces
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Redis Connected")

	// Session token signer
	privPEM, pubPEM, err := cfg.ReadKeyPair()
	if err != nil {
		logger.Error("Failed to read signing keys", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSigner(privPEM, pubPEM, cfg.AuthIssuer, cfg.TokenTTL)
	if err != nil {
		logger.Error("Failed to create token signer", "error", err)
		os.Exit(1)
	}

	// Repositories
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	accountRepo := database.NewPostgresAccountRepository(pool)
	listingRepo := database.NewPostgresListingRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	statsRepo := database.NewPostgresStatsRepository(pool)
	nonceStore := cache.NewRedisNonceStore(rdb)

	// Services
	accountService := accounts.NewService(accountRepo, outboxRepo, nonceStore, signer, txManager)
	listingService := listings.NewService(listingRepo)
	auctionService := auction.NewService(txManager, bidRepo, listingRepo, accountRepo, outboxRepo)
	statsService := stats.NewService(statsRepo, txManager)

	// Outbox relay publishes committed events to the broker
	outboxRelay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		cfg.RelayBatchSize,
		cfg.RelayInterval,
		pkgevents.Exchange,
		logger,
	)
	go func() {
		logger.Info("Starting Outbox Relay...")
		if err := outboxRelay.Run(ctx); err != nil {
			logger.Error("Outbox Relay stopped", "error", err)
		}
	}()

	handler := api.NewHandler(accountService, listingService, auctionService, statsService, logger)
	router := api.NewRouter(handler, signer, logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("Starting API server", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
