package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Randon971205/pokemon-inventory-bot/internal/adapter/handler"
	"github.com/Randon971205/pokemon-inventory-bot/internal/adapter/messaging"
	"github.com/Randon971205/pokemon-inventory-bot/internal/adapter/storage"
	"github.com/Randon971205/pokemon-inventory-bot/internal/config"
	"github.com/Randon971205/pokemon-inventory-bot/internal/core/service"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

// inventoryStore is what each STORE_BACKEND provides.
type inventoryStore interface {
	port.InventoryRepository
	port.ActivityRepository
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var closers []func() error

	// Initialize inventory store
	var store inventoryStore
	switch cfg.StoreBackend {
	case config.BackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to create schema: %v", err)
		}
		store = mysqlAdapter
		closers = append(closers, db.Close)
		log.Println("connected to mysql")
	default:
		xlsxAdapter, err := storage.OpenXLSXAdapter(cfg.XLSXPath, cfg.Location)
		if err != nil {
			log.Fatalf("failed to open workbook: %v", err)
		}
		store = xlsxAdapter
		closers = append(closers, xlsxAdapter.Close)
		log.Printf("using workbook %s", cfg.XLSXPath)
	}

	// Initialize session store
	var sessions port.SessionRepository = storage.NewMemorySessionStore()
	var redisSessions *storage.RedisAdapter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 20,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		// Grants must not outlive the process
		redisSessions = storage.NewRedisAdapter(rdb, uuid.NewString())
		sessions = redisSessions
		closers = append(closers, rdb.Close)
		log.Println("connected to redis")
	}

	// Initialize activity publisher
	var publisher port.ActivityPublisher
	if cfg.AMQPURL != "" {
		conn, ch, err := messaging.Connect(ctx, cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect rabbitmq: %v", err)
		}
		publisher = messaging.NewPublisher(ch)
		closers = append(closers, conn.Close, ch.Close)
		log.Printf("publishing activity to exchange %s", messaging.ExchangeName)
	}

	// Initialize services
	var secret service.Secret = service.PlainSecret(cfg.Passcode)
	if cfg.PasscodeBcrypt != "" {
		secret = service.BcryptSecret(cfg.PasscodeBcrypt)
	}

	inventoryService := service.NewInventoryService(store, store, publisher, cfg.Location)
	bot := service.NewBot(
		sessions,
		service.NewGate(sessions, secret),
		service.NewFlow(inventoryService, cfg.FlowIdleTimeout),
		service.NewCommands(inventoryService, cfg.DefaultOpenNote),
	)

	// Initialize gRPC server
	grpcServer, healthServer := handler.NewGRPCServer()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(bot, cfg.WebhookSecret)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	healthServer.Shutdown()

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Stop gRPC server
	grpcServer.GracefulStop()
	log.Println("gRPC server stopped")

	if redisSessions != nil {
		if err := redisSessions.Purge(shutdownCtx); err != nil {
			log.Printf("failed to purge sessions: %v", err)
		}
	}

	// Close connections
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
	log.Println("connections closed")
}
