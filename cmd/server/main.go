// Package main - Chatwoot bridge entry point
// Wires the connector, gateway publisher and optional infrastructure legs
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"woot-bridge/internal/adapters/gateway"
	"woot-bridge/internal/adapters/handler"
	"woot-bridge/internal/adapters/pubsub"
	"woot-bridge/internal/adapters/repository"
	wsocket "woot-bridge/internal/adapters/websocket"
	"woot-bridge/internal/config"
	"woot-bridge/internal/core/ports"
	"woot-bridge/internal/core/services"
)

func main() {
	fmt.Println("=== Chatwoot Bridge - Initialization ===")

	// 1. Load Configuration from Environment
	fmt.Println("[1/6] Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	fmt.Printf("✓ Config loaded (Chatwoot: %s, account: %s, inbox: %s)\n",
		cfg.Chatwoot.BaseURL, cfg.Chatwoot.AccountID, cfg.Chatwoot.InboxID)

	// 2. Log hub + structured logging
	fmt.Println("[2/6] Initializing logging...")
	logHub := wsocket.NewLogHub(cfg.App.MeshSecret)
	go logHub.Run()

	logWriter := io.MultiWriter(os.Stdout, logHub)
	logger := slog.New(slog.NewTextHandler(logWriter, nil))
	slog.SetDefault(logger)
	fmt.Println("✓ Logging initialized")

	// 3. Optional infrastructure: audit DB and dedup cache
	fmt.Println("[3/6] Connecting infrastructure...")
	var webhookRepo ports.WebhookRepository
	var db *sql.DB
	if cfg.DB != nil {
		db = connectMySQL(cfg.DB, 5, 2*time.Second)
		defer db.Close()
		webhookRepo = repository.NewMySQLRepository(db)
		fmt.Println("✓ Audit log database connected")
	} else {
		fmt.Println("- Audit log disabled (no DB_HOST)")
	}

	var dedupRepo ports.DedupRepository
	if cfg.Redis.Addr != "" {
		rdb := connectRedis(cfg.Redis.Addr, 5, 2*time.Second)
		defer rdb.Close()
		dedupRepo = repository.NewRedisRepository(rdb)
		fmt.Println("✓ Dedup cache connected")
	} else {
		fmt.Println("- Dedup disabled (no REDIS_ADDR)")
	}

	// 4. Gateway: AMQP publisher when a broker is configured
	fmt.Println("[4/6] Initializing gateway...")
	var msgGateway ports.MessageGateway
	if cfg.AMQP.URL != "" {
		amqpGW, err := pubsub.NewAMQPGateway(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			log.Fatalf("Failed to connect AMQP gateway: %v", err)
		}
		defer amqpGW.Close()
		msgGateway = amqpGW
		fmt.Printf("✓ AMQP gateway connected (exchange: %s)\n", cfg.AMQP.Exchange)
	} else {
		msgGateway = pubsub.NewFallbackGateway(logger)
		fmt.Println("- AMQP not configured, using fallback gateway")
	}

	// 5. Connector + platform client
	fmt.Println("[5/6] Initializing connector...")
	client := gateway.NewChatwootClient(cfg.Chatwoot.BaseURL, cfg.Chatwoot.AccountID, cfg.Chatwoot.AccessKey)

	connector := services.NewConnector(services.ConnectorOptions{
		Client:                 client,
		Gateway:                msgGateway,
		WebhookRepo:            webhookRepo,
		DedupRepo:              dedupRepo,
		BotName:                cfg.Chatwoot.BotName,
		BotDescription:         cfg.Chatwoot.BotDescription,
		InboxID:                cfg.Chatwoot.InboxID,
		KeepUnknownAttachments: cfg.App.KeepUnknownAttachments,
	})
	fmt.Println("✓ Connector initialized")

	// 6. HTTP routes
	fmt.Println("[6/6] Initializing HTTP handlers...")
	router := mux.NewRouter()
	webhookHandler := handler.NewWebhookHandler(connector)
	webhookHandler.Register(router)
	router.HandleFunc("/ws/logs", logHub.ServeWS).Methods(http.MethodGet)
	fmt.Println("✓ Handlers initialized")

	ctx := context.Background()

	// Watchdog needs the audit DB
	if webhookRepo != nil {
		services.RunWatchdog(ctx, webhookRepo)
	}

	// Register the agent bot against the public webhook URL.
	// Fatal precondition: the bridge is useless without a reachable
	// HTTPS endpoint for Chatwoot to call.
	if err := connector.Startup(ctx, cfg.Webhook.PublicBaseURL); err != nil {
		log.Fatalf("Connector startup failed: %v", err)
	}
	defer connector.Shutdown(ctx)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("\n✅ Bridge ready\n")
	fmt.Printf("[HTTP] Server listening on %s\n", addr)
	fmt.Printf("[HTTP] Webhook route: %s\n", connector.WebhookPath())

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

// connectMySQL attempts to connect to MySQL with retry logic.
// Retries are necessary because containers may still be initializing.
func connectMySQL(cfg *config.DBConfig, maxRetries int, retryDelay time.Duration) *sql.DB {
	dsn := cfg.GetDSN()

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			log.Printf("  Attempt %d/%d: Failed to configure DB driver: %v", i, maxRetries, err)
			time.Sleep(retryDelay)
			continue
		}

		err = db.Ping()
		if err == nil {
			return db
		}

		log.Printf("  Attempt %d/%d: Cannot ping MySQL: %v", i, maxRetries, err)
		db.Close()

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("Cannot connect to MySQL after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}

// connectRedis attempts to connect to Redis with retry logic
func connectRedis(addr string, maxRetries int, retryDelay time.Duration) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx := context.Background()
	var err error

	for i := 1; i <= maxRetries; i++ {
		err = rdb.Ping(ctx).Err()
		if err == nil {
			return rdb
		}

		log.Printf("  Attempt %d/%d: Cannot ping Redis: %v", i, maxRetries, err)

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("Cannot connect to Redis after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}
