package tests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Randon971205/pokemon-inventory-bot/internal/adapter/storage"
	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
	"github.com/Randon971205/pokemon-inventory-bot/internal/core/service"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

const passcode = "pikapika"

var loc = time.FixedZone("SGT", 8*60*60)

type testEnv struct {
	redis    *redis.Client
	mysql    *sql.DB
	sessions *storage.RedisAdapter
	db       *storage.MySQLAdapter
	cleanup  func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	sessions := storage.NewRedisAdapter(rdb, uuid.NewString())

	return &testEnv{
		redis:    rdb,
		mysql:    db,
		sessions: sessions,
		db:       mysqlAdapter,
		cleanup: func() {
			sessions.Purge(context.Background())
			rdb.Close()
			db.Close()
		},
	}
}

func newBot(sessions port.SessionRepository, inv port.InventoryRepository, act port.ActivityRepository) (*service.Bot, *service.InventoryService) {
	svc := service.NewInventoryService(inv, act, nil, loc)
	bot := service.NewBot(
		sessions,
		service.NewGate(sessions, service.PlainSecret(passcode)),
		service.NewFlow(svc, 10*time.Minute),
		service.NewCommands(svc, ""),
	)
	return bot, svc
}

func say(bot *service.Bot, userID, text string) domain.Reply {
	return bot.Handle(context.Background(), domain.Event{UserID: userID, Handle: "ash", Text: text})
}

func press(bot *service.Bot, userID, option string) domain.Reply {
	return bot.Handle(context.Background(), domain.Event{UserID: userID, Handle: "ash", Option: option})
}

// runScenario drives one user through the passcode gate, the guided flow
// and every direct command against whatever backends bot was built on.
func runScenario(t *testing.T, bot *service.Bot, svc *service.InventoryService) {
	ctx := context.Background()
	user := "user-" + uuid.NewString()[:8]
	product := "Charizard-" + uuid.NewString()[:8]

	if reply := say(bot, user, "/add "+product+" 5"); !strings.Contains(reply.Text, "passcode") {
		t.Fatalf("expected passcode prompt, got %q", reply.Text)
	}
	if reply := say(bot, user, "wrongcode"); strings.HasPrefix(reply.Text, "Access granted") {
		t.Fatalf("expected denial, got %q", reply.Text)
	}
	if reply := say(bot, user, passcode); !strings.HasPrefix(reply.Text, "Access granted") || len(reply.Options) != 5 {
		t.Fatalf("expected grant with menu, got %+v", reply)
	}

	// Direct commands
	steps := []struct {
		text string
		want string
	}{
		{"/add " + product + " 5", "Now 5."},
		{"/minus " + product + " 2", "Now 3."},
		{"/open " + product + " 1 Loose for display", "Now 2."},
		{"/minus " + product + " 9", "Not enough stock"},
	}
	for _, s := range steps {
		if reply := say(bot, user, s.text); !strings.Contains(reply.Text, s.want) {
			t.Errorf("%s: expected %q in %q", s.text, s.want, reply.Text)
		}
	}

	// Guided flow
	press(bot, user, "menu:add")
	press(bot, user, "product:"+product)
	press(bot, user, "stock:BagOf50")
	if reply := say(bot, user, "4"); !strings.HasSuffix(reply.Text, "Now 4.") {
		t.Errorf("unexpected guided add reply: %q", reply.Text)
	}

	press(bot, user, "menu:minus")
	say(bot, user, product)
	say(bot, user, "Bag of 50")
	if reply := say(bot, user, "many"); !strings.HasPrefix(reply.Text, "Invalid quantity") {
		t.Errorf("expected invalid quantity, got %q", reply.Text)
	}

	records, err := svc.Stock(ctx, product)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	got := map[domain.StockType]int{}
	for _, r := range records {
		got[r.StockType] = r.Quantity
	}
	if got[domain.StockLoose] != 2 || got[domain.StockBagOf50] != 4 {
		t.Errorf("unexpected stock: %v", got)
	}

	reply := say(bot, user, "/stock "+strings.ToLower(product))
	if !strings.Contains(reply.Text, "- Loose: 2") || !strings.Contains(reply.Text, "- Bag of 50: 4") {
		t.Errorf("unexpected stock reply: %q", reply.Text)
	}

	reply = say(bot, user, "/report")
	if !strings.Contains(reply.Text, "Open 1x "+product+" (Loose) by @ash (for display)") {
		t.Errorf("report is missing the open line: %q", reply.Text)
	}
	if strings.Count(reply.Text, product) != 4 {
		t.Errorf("expected 4 report lines for %s, got %q", product, reply.Text)
	}
}

func TestIntegration_FullFlowMySQLRedis(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	bot, svc := newBot(env.sessions, env.db, env.db)
	runScenario(t, bot, svc)
}

func TestIntegration_FullFlowWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	book, err := storage.OpenXLSXAdapter(path, loc)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer book.Close()

	bot, svc := newBot(storage.NewMemorySessionStore(), book, book)
	runScenario(t, bot, svc)
}

func TestIntegration_WorkbookSaveFailureLeavesStoreAndLogInStep(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "book")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	book, err := storage.OpenXLSXAdapter(filepath.Join(dir, "inventory.xlsx"), loc)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer book.Close()

	svc := service.NewInventoryService(book, book, nil, loc)
	if _, err := svc.Apply(ctx, service.Change{Action: domain.ActionAdd, Product: "Eevee", StockType: domain.StockLoose, Delta: 2, Actor: "@ash"}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// The workbook can no longer be written
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	changes := []service.Change{
		{Action: domain.ActionAdd, Product: "Mew", StockType: domain.StockLoose, Delta: 5, Actor: "@ash"},
		{Action: domain.ActionMinus, Product: "Eevee", StockType: domain.StockLoose, Delta: -1, Actor: "@ash"},
	}
	for _, c := range changes {
		if _, err := svc.Apply(ctx, c); err == nil {
			t.Errorf("%s %s: expected Apply to fail", c.Action, c.Product)
		}
	}

	if _, err := svc.Stock(ctx, "Mew"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected Mew to be absent, got %v", err)
	}
	records, err := svc.Stock(ctx, "Eevee")
	if err != nil || len(records) != 1 || records[0].Quantity != 2 {
		t.Errorf("expected Eevee to stay at 2, got %+v (%v)", records, err)
	}

	entries, err := book.ListActivity(ctx)
	if err != nil {
		t.Fatalf("list activity failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the first add to be logged, got %d entries", len(entries))
	}
}

func TestIntegration_ConcurrentAddsNoLostUpdates(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	bot, _ := newBot(env.sessions, env.db, env.db)
	product := "Pikachu-" + uuid.NewString()[:8]

	const users = 10
	const addsPerUser = 5
	for i := 0; i < users; i++ {
		say(bot, fmt.Sprintf("user-%d", i), passcode)
	}

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		for j := 0; j < addsPerUser; j++ {
			wg.Add(1)
			go func(userID string) {
				defer wg.Done()
				say(bot, userID, "/add "+product+" 1")
			}(fmt.Sprintf("user-%d", i))
		}
	}
	wg.Wait()

	rec, err := env.db.GetInventory(context.Background(), product, domain.StockLoose)
	if err != nil || rec == nil {
		t.Fatalf("expected record, got %v (%v)", rec, err)
	}

	entries, err := env.db.ListActivity(context.Background())
	if err != nil {
		t.Fatalf("list activity failed: %v", err)
	}
	logged := 0
	for _, e := range entries {
		if e.Product == product {
			logged++
		}
	}

	// Every committed add is both stored and logged
	if rec.Quantity != logged {
		t.Errorf("expected quantity %d to match %d log entries", rec.Quantity, logged)
	}
	if rec.Quantity == 0 {
		t.Error("expected at least one add to commit")
	}
}

// failingLog rejects every append, forcing the service to compensate.
type failingLog struct {
	port.ActivityRepository
}

func (failingLog) AppendActivity(ctx context.Context, entry domain.LogEntry) error {
	return errors.New("log unavailable")
}

func TestIntegration_RollbackOnLogFailure(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	product := "Snorlax-" + uuid.NewString()[:8]

	goodBot, _ := newBot(env.sessions, env.db, env.db)
	say(goodBot, "user-1", passcode)
	say(goodBot, "user-1", "/add "+product+" 3")

	badBot, _ := newBot(env.sessions, env.db, failingLog{env.db})
	reply := say(badBot, "user-1", "/add "+product+" 2")
	if !strings.HasPrefix(reply.Text, "Something went wrong") {
		t.Errorf("expected generic failure, got %q", reply.Text)
	}

	rec, err := env.db.GetInventory(ctx, product, domain.StockLoose)
	if err != nil || rec == nil {
		t.Fatalf("expected record, got %v (%v)", rec, err)
	}
	if rec.Quantity != 3 {
		t.Errorf("expected quantity rolled back to 3, got %d", rec.Quantity)
	}
}

func TestIntegration_SessionsScopedPerBoot(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	bot, _ := newBot(env.sessions, env.db, env.db)
	say(bot, "user-1", passcode)

	// A restart gets a new scope and forgets every grant
	restarted := storage.NewRedisAdapter(env.redis, uuid.NewString())
	defer restarted.Purge(context.Background())

	bot2, _ := newBot(restarted, env.db, env.db)
	if reply := say(bot2, "user-1", "/stock all"); !strings.Contains(reply.Text, "passcode") {
		t.Errorf("expected passcode prompt after restart, got %q", reply.Text)
	}
}
