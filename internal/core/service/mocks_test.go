package service

import (
	"context"
	"sync"
	"time"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
	"github.com/Randon971205/pokemon-inventory-bot/internal/port"
)

var testLoc = time.FixedZone("SGT", 8*60*60)

// Mock InventoryRepository
type mockInventoryRepo struct {
	records     map[string]domain.InventoryRecord
	staleWrites int // UpdateInventory calls to fail with ErrOptimisticLock
	writes      int
	listCalls   int
	err         error
	mu          sync.Mutex
}

func newMockInventoryRepo() *mockInventoryRepo {
	return &mockInventoryRepo{records: make(map[string]domain.InventoryRecord)}
}

func inventoryKey(product string, stockType domain.StockType) string {
	return product + "|" + string(stockType)
}

func (m *mockInventoryRepo) GetInventory(ctx context.Context, product string, stockType domain.StockType) (*domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.records[inventoryKey(product, stockType)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *mockInventoryRepo) CreateInventory(ctx context.Context, record domain.InventoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inventoryKey(record.Product, record.StockType)
	if _, ok := m.records[key]; ok {
		return port.ErrRecordExists
	}
	m.records[key] = record
	m.writes++
	return nil
}

func (m *mockInventoryRepo) UpdateInventory(ctx context.Context, record domain.InventoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.staleWrites > 0 {
		m.staleWrites--
		return port.ErrOptimisticLock
	}
	key := inventoryKey(record.Product, record.StockType)
	current, ok := m.records[key]
	if !ok || current.Version != record.Version {
		return port.ErrOptimisticLock
	}
	record.Version++
	m.records[key] = record
	m.writes++
	return nil
}

func (m *mockInventoryRepo) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.InventoryRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockInventoryRepo) quantity(product string, stockType domain.StockType) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[inventoryKey(product, stockType)]
	return r.Quantity, ok
}

func (m *mockInventoryRepo) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Mock ActivityRepository
type mockActivityRepo struct {
	entries   []domain.LogEntry
	appendErr error
	mu        sync.Mutex
}

func (m *mockActivityRepo) AppendActivity(ctx context.Context, entry domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockActivityRepo) ListActivity(ctx context.Context) ([]domain.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.LogEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *mockActivityRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Mock ActivityPublisher
type mockPublisher struct {
	published []domain.LogEntry
	err       error
	mu        sync.Mutex
}

func (m *mockPublisher) Publish(ctx context.Context, entry domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, entry)
	return nil
}

// Mock SessionRepository
type mockSessionRepo struct {
	sessions map[string]domain.Session
	saves    int
	mu       sync.Mutex
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]domain.Session)}
}

func (m *mockSessionRepo) GetSession(ctx context.Context, userID string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return domain.Session{UserID: userID}, nil
	}
	if sess.Draft != nil {
		draft := *sess.Draft
		sess.Draft = &draft
	}
	return sess, nil
}

func (m *mockSessionRepo) SaveSession(ctx context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.Draft != nil {
		draft := *session.Draft
		session.Draft = &draft
	}
	m.sessions[session.UserID] = session
	m.saves++
	return nil
}

func (m *mockSessionRepo) get(userID string) domain.Session {
	sess, _ := m.GetSession(context.Background(), userID)
	return sess
}

// testClock is a settable time source shared by every component under test.
type testClock struct {
	t  time.Time
	mu sync.Mutex
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 10, 17, 10, 0, 0, 0, testLoc)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	bot       *Bot
	service   *InventoryService
	inventory *mockInventoryRepo
	activity  *mockActivityRepo
	publisher *mockPublisher
	sessions  *mockSessionRepo
	clock     *testClock
}

const testPasscode = "pikapika"

func newTestEnv() *testEnv {
	env := &testEnv{
		inventory: newMockInventoryRepo(),
		activity:  &mockActivityRepo{},
		publisher: &mockPublisher{},
		sessions:  newMockSessionRepo(),
		clock:     newTestClock(),
	}

	env.service = NewInventoryService(env.inventory, env.activity, env.publisher, testLoc)
	env.service.now = env.clock.Now

	flow := NewFlow(env.service, 10*time.Minute)
	flow.now = env.clock.Now

	gate := NewGate(env.sessions, PlainSecret(testPasscode))
	env.bot = NewBot(env.sessions, gate, flow, NewCommands(env.service, ""))
	env.bot.now = env.clock.Now
	return env
}

func (e *testEnv) send(userID, text string) domain.Reply {
	return e.bot.Handle(context.Background(), domain.Event{UserID: userID, Handle: "ash", Text: text})
}

func (e *testEnv) press(userID, option string) domain.Reply {
	return e.bot.Handle(context.Background(), domain.Event{UserID: userID, Handle: "ash", Option: option})
}

func (e *testEnv) authorize(userID string) {
	e.sessions.SaveSession(context.Background(), domain.Session{UserID: userID, Authorized: true})
}
