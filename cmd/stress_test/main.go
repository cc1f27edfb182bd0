package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Randon971205/pokemon-inventory-bot/internal/adapter/storage"
	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
	"github.com/Randon971205/pokemon-inventory-bot/internal/core/service"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

const (
	passcode      = "stress"
	totalUsers    = 10
	addsPerUser   = 20
	productPrefix = "Stress-"
)

func main() {
	ctx := context.Background()

	// Workbook in a scratch directory
	dir, err := os.MkdirTemp("", "inventory-stress")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	book, err := storage.OpenXLSXAdapter(filepath.Join(dir, "inventory.xlsx"), time.Local)
	if err != nil {
		log.Fatalf("failed to open workbook: %v", err)
	}
	defer book.Close()

	// Sessions in Redis when available
	var sessions port.SessionRepository = storage.NewMemorySessionStore()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()

		redisSessions := storage.NewRedisAdapter(rdb, uuid.NewString())
		defer redisSessions.Purge(ctx)
		sessions = redisSessions
	}

	svc := service.NewInventoryService(book, book, nil, time.Local)
	bot := service.NewBot(
		sessions,
		service.NewGate(sessions, service.PlainSecret(passcode)),
		service.NewFlow(svc, 10*time.Minute),
		service.NewCommands(svc, ""),
	)

	product := productPrefix + uuid.NewString()[:8]
	for i := 0; i < totalUsers; i++ {
		bot.Handle(ctx, domain.Event{UserID: fmt.Sprintf("user-%d", i), Text: passcode})
	}

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalUsers; i++ {
		for j := 0; j < addsPerUser; j++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()

				reply := bot.Handle(ctx, domain.Event{
					UserID: fmt.Sprintf("user-%d", userID),
					Text:   "/add " + product + " 1",
				})
				if strings.HasPrefix(reply.Text, "Added") {
					successCount.Add(1)
				} else {
					failCount.Add(1)
				}
			}(i)
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	fail := failCount.Load()
	total := totalUsers * addsPerUser

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Product:          %s\n", product)
	fmt.Printf("Total Requests:   %d\n", total)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Verify final stock against the log
	rec, err := book.GetInventory(ctx, product, domain.StockLoose)
	if err != nil || rec == nil {
		log.Fatalf("FAIL: could not read final stock: %v", err)
	}

	entries, err := book.ListActivity(ctx)
	if err != nil {
		log.Fatalf("FAIL: could not read log: %v", err)
	}

	fmt.Printf("Final Stock:      %d\n", rec.Quantity)
	fmt.Printf("Log Entries:      %d\n", len(entries))

	if rec.Quantity == int(success) && len(entries) == int(success) {
		fmt.Println("PASS: every committed add is stored and logged")
	} else {
		fmt.Printf("FAIL: Expected stock and log %d, got %d/%d\n", success, rec.Quantity, len(entries))
	}
}
