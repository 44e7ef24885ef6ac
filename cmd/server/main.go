/**
 * @description
 * This is the main entry point for the ledger-service API server. It is
 * responsible for initializing all components of the service, including
 * configuration, the database connection pool, the Redis client used for
 * presence tracking, the RabbitMQ producer and consumer, the repository, the
 * core application service, and the HTTP server. It wires everything together
 * and starts the service with graceful shutdown.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 * - github.com/redis/go-redis/v9: Redis client for presence tracking.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/vendora/ledger-service/internal/api"
	"github.com/vendora/ledger-service/internal/app"
	"github.com/vendora/ledger-service/internal/config"
	"github.com/vendora/ledger-service/internal/store"
	"github.com/vendora/ledger-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found, using environment variables\"")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting ledger-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	// Disable prepared statement caching to prevent conflicts.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Ensure required tables exist (idempotent).
	if err := store.EnsureSchema(context.Background(), dbpool); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"failed ensuring tables (may already exist)\" err=%v", err)
	}

	// Initialize the RabbitMQ producer to publish ledger events. A broker
	// outage must not block money movement, so on failure we fall back to a
	// no-op producer instead of exiting.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the Redis client used for presence tracking. Presence is a
	// best-effort feature; a missing or unreachable Redis degrades the
	// presence endpoints without affecting the ledger.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; presence tracking disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; presence tracking disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; presence tracking disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	presenceTTL := time.Duration(cfg.PresenceTTLSeconds) * time.Second
	var presence *app.PresenceTracker
	if redisClient != nil {
		presence = app.NewPresenceTracker(redisClient, cfg.PresenceKeyPrefix, presenceTTL)
	} else {
		presence = app.NewPresenceTracker(nil, cfg.PresenceKeyPrefix, presenceTTL)
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	ledgerService := app.NewService(
		repository,
		producer,
		cfg.EventsExchange,
		cfg.SubscriptionFeeMinor,
		cfg.StartingBalanceMinor,
	)

	// Initialize the API handlers and router.
	handlers := api.NewLedgerHandlers(ledgerService, presence)
	router := api.NewRouter(handlers, &cfg)

	// Wire up the account lifecycle consumer. The internal provisioning
	// endpoint covers account creation while the broker is down, so a
	// consumer failure degrades rather than aborts the boot.
	accountEventHandler := app.NewAccountEventHandler(ledgerService)
	rabbitConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; account events disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()

		accountBindings := map[string]func([]byte) bool{
			"user.registered": accountEventHandler.HandleUserRegistered,
			"user.deleted":    accountEventHandler.HandleUserDeleted,
		}
		if err := rabbitConsumer.ConsumeWithBindings(cfg.EventsExchange, cfg.AccountEventsQueue, accountBindings); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"account consumer start failed; account events disabled\" err=%v", err)
		} else {
			log.Printf("level=info component=bootstrap msg=\"account consumer started\" queue=%s", cfg.AccountEventsQueue)
		}
	}

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
