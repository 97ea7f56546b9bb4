package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ptdat4/stocktalk/internal/core/domain"
)

// Mock LedgerStore
type mockStore struct {
	mu        sync.Mutex
	items     []domain.Item
	nextID    int64
	listErr   error
	updateErr error
	insertErr error
	updates   []int64
	movements []domain.Movement
}

func (m *mockStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Item(nil), m.items...), nil
}

func (m *mockStore) UpdateQuantity(ctx context.Context, id int64, quantity int, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, id)
	return nil
}

func (m *mockStore) InsertItem(ctx context.Context, item domain.Item) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.nextID++
	return m.nextID, nil
}

func (m *mockStore) InsertMovement(ctx context.Context, mv domain.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements = append(m.movements, mv)
	return nil
}

// Mock QuantityCache
type mockCache struct {
	mu         sync.Mutex
	quantities map[int64]int
	dedup      map[string]bool
	dedupErr   error
}

func newMockCache() *mockCache {
	return &mockCache{
		quantities: make(map[int64]int),
		dedup:      make(map[string]bool),
	}
}

func (m *mockCache) SetQuantity(ctx context.Context, itemID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quantities[itemID] = quantity
	return nil
}

func (m *mockCache) AdjustQuantity(ctx context.Context, itemID int64, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.quantities[itemID] + delta
	if next < 0 {
		next = 0
	}
	m.quantities[itemID] = next
	return next, nil
}

func (m *mockCache) GetQuantity(ctx context.Context, itemID int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quantity, ok := m.quantities[itemID]
	return quantity, ok, nil
}

func (m *mockCache) SetDedup(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dedupErr != nil {
		return false, m.dedupErr
	}
	if m.dedup[key] {
		return false, nil
	}
	m.dedup[key] = true
	return true, nil
}

func (m *mockCache) ClearDedup(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dedup, key)
	return nil
}

func seededTracker(items ...domain.Item) *Tracker {
	tracker := NewTracker(NewInterpreter(false), nil, nil, 0, 100)
	tracker.Seed(items)
	return tracker
}

func TestApply_Consume(t *testing.T) {
	tracker := seededTracker(domain.Item{ID: 1, Name: "Syringes", Quantity: 25, LowStockThreshold: 10})

	result := tracker.Apply(context.Background(), "I used 5 syringes")

	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Status)
	}
	if result.Before != 25 || result.After != 20 {
		t.Errorf("expected 25 -> 20, got %d -> %d", result.Before, result.After)
	}
	if !strings.Contains(result.Status, "Used 5 Syringes") {
		t.Errorf("status missing action: %q", result.Status)
	}
	if !strings.Contains(result.Status, "25 → 20") {
		t.Errorf("status missing transition: %q", result.Status)
	}
	if result.ItemID != 1 {
		t.Errorf("expected item 1, got %d", result.ItemID)
	}
	if result.LowStock {
		t.Error("20 > 10 should not be low stock")
	}
	if got := tracker.Items()[0].Quantity; got != 20 {
		t.Errorf("expected ledger quantity 20, got %d", got)
	}
}

func TestApply_AddStripsInventorySuffix(t *testing.T) {
	tracker := seededTracker(domain.Item{ID: 1, Name: "Gloves", Quantity: 50})

	result := tracker.Apply(context.Background(), "Add 10 gloves to inventory")

	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Status)
	}
	if result.After != 60 {
		t.Errorf("expected quantity 60, got %d", result.After)
	}
	if !strings.Contains(result.Status, "Added 10 Gloves") {
		t.Errorf("status missing action: %q", result.Status)
	}
}

func TestApply_BidirectionalFragmentMatch(t *testing.T) {
	tracker := seededTracker(domain.Item{ID: 1, Name: "Lidocaine", Quantity: 8, LowStockThreshold: 3})

	// Fragment "vials of lidocaine" contains the item name.
	result := tracker.Apply(context.Background(), "Used 2 vials of lidocaine")
	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Status)
	}
	if result.After != 6 {
		t.Errorf("expected quantity 6, got %d", result.After)
	}
	if result.LowStock {
		t.Error("6 > 3 should not be low stock")
	}

	// Item name contains the fragment.
	result = tracker.Apply(context.Background(), "remove 4 lidocaine")
	if result.After != 2 {
		t.Errorf("expected quantity 2, got %d", result.After)
	}
	if !result.LowStock {
		t.Error("2 <= 3 must be flagged low stock")
	}
}

func TestApply_ShortFragmentMatchesLongerItemName(t *testing.T) {
	tracker := seededTracker(domain.Item{ID: 1, Name: "Lidocaine", Quantity: 8, LowStockThreshold: 3})

	// Containment runs both ways, so a clipped fragment still resolves
	// as long as the item name contains it.
	result := tracker.Apply(context.Background(), "used 2 lido")

	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Status)
	}
	if result.ItemID != 1 {
		t.Errorf("expected Lidocaine, got item %d", result.ItemID)
	}
	if result.After != 6 {
		t.Errorf("expected quantity 6, got %d", result.After)
	}
}

func TestApply_ConsumeClampsAtZero(t *testing.T) {
	tracker := seededTracker(domain.Item{ID: 1, Name: "Lidocaine", Quantity: 8})

	result := tracker.Apply(context.Background(), "used 20 lidocaine")

	if result.After != 0 {
		t.Errorf("expected clamp at 0, got %d", result.After)
	}
	if got := tracker.Items()[0].Quantity; got != 0 {
		t.Errorf("expected ledger quantity 0, got %d", got)
	}
}

func TestApply_FirstLedgerMatchWins(t *testing.T) {
	tracker := seededTracker(
		domain.Item{ID: 1, Name: "Small Gloves", Quantity: 10},
		domain.Item{ID: 2, Name: "Large Gloves", Quantity: 10},
	)

	result := tracker.Apply(context.Background(), "I used 1 gloves")

	if result.ItemID != 1 {
		t.Errorf("expected first item to win, got item %d", result.ItemID)
	}
}

func TestApply_ItemNotFound(t *testing.T) {
	tracker := seededTracker(
		domain.Item{ID: 1, Name: "Bandages", Quantity: 40},
		domain.Item{ID: 2, Name: "Gloves", Quantity: 50},
	)

	result := tracker.Apply(context.Background(), "remove 3 bandaids")

	if result.Outcome != OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", result.Outcome)
	}
	if !strings.Contains(result.Status, "bandaids") {
		t.Errorf("status missing fragment: %q", result.Status)
	}
	if !strings.Contains(result.Status, "Bandages") || !strings.Contains(result.Status, "Gloves") {
		t.Errorf("status missing known item names: %q", result.Status)
	}
	if got := tracker.Items()[0].Quantity; got != 40 {
		t.Errorf("ledger mutated on not_found: %d", got)
	}
}

func TestApply_UnrecognizedDoesNotMutate(t *testing.T) {
	tracker := seededTracker(domain.Item{ID: 1, Name: "Syringes", Quantity: 25})

	result := tracker.Apply(context.Background(), "xyz please help")

	if result.Outcome != OutcomeUnrecognized {
		t.Fatalf("expected unrecognized, got %s", result.Outcome)
	}
	if !strings.Contains(result.Status, "I used 5 syringes") {
		t.Errorf("status missing example phrasing: %q", result.Status)
	}
	if got := tracker.Items()[0].Quantity; got != 25 {
		t.Errorf("ledger mutated on unrecognized input: %d", got)
	}
}

func TestApply_StoreFailureLeavesLedgerUnchanged(t *testing.T) {
	store := &mockStore{updateErr: errors.New("connection reset")}
	tracker := NewTracker(NewInterpreter(false), store, nil, 0, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25, LastUpdated: time.Unix(0, 0)}})

	result := tracker.Apply(context.Background(), "I used 5 syringes")

	if result.Outcome != OutcomeStoreFailed {
		t.Fatalf("expected store_failed, got %s", result.Outcome)
	}
	if result.Err == nil {
		t.Error("expected wrapped store error")
	}
	if !strings.Contains(result.Status, "Syringes") {
		t.Errorf("status must name the item: %q", result.Status)
	}

	item := tracker.Items()[0]
	if item.Quantity != 25 {
		t.Errorf("ledger mutated despite store failure: %d", item.Quantity)
	}
	if !item.LastUpdated.Equal(time.Unix(0, 0)) {
		t.Error("LastUpdated refreshed despite store failure")
	}
}

func TestApply_StoreConfirmedBeforeMemory(t *testing.T) {
	store := &mockStore{}
	tracker := NewTracker(NewInterpreter(false), store, nil, 0, 100)
	tracker.Seed([]domain.Item{{ID: 7, Name: "Syringes", Quantity: 25}})

	before := time.Now()
	result := tracker.Apply(context.Background(), "I used 5 syringes")

	if result.Outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", result.Outcome)
	}
	if len(store.updates) != 1 || store.updates[0] != 7 {
		t.Errorf("expected one store update for item 7, got %v", store.updates)
	}
	if item := tracker.Items()[0]; item.LastUpdated.Before(before) {
		t.Error("LastUpdated not refreshed on successful mutation")
	}
}

func TestApply_DuplicateTranscriptSuppressed(t *testing.T) {
	cache := newMockCache()
	tracker := NewTracker(NewInterpreter(false), nil, cache, time.Second, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25}})

	first := tracker.Apply(context.Background(), "I used 5 syringes")
	if first.Outcome != OutcomeApplied {
		t.Fatalf("first apply failed: %s", first.Status)
	}

	second := tracker.Apply(context.Background(), "I used 5 syringes")
	if second.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", second.Outcome)
	}
	if got := tracker.Items()[0].Quantity; got != 20 {
		t.Errorf("expected single decrement to 20, got %d", got)
	}
}

func TestApply_DedupErrorDoesNotBlockCommand(t *testing.T) {
	cache := newMockCache()
	cache.dedupErr = errors.New("cache down")
	tracker := NewTracker(NewInterpreter(false), nil, cache, time.Second, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25}})

	result := tracker.Apply(context.Background(), "I used 5 syringes")
	if result.Outcome != OutcomeApplied {
		t.Errorf("expected applied despite cache error, got %s", result.Outcome)
	}
}

func TestApply_MovementQueued(t *testing.T) {
	tracker := seededTracker(domain.Item{ID: 1, Name: "Gloves", Quantity: 50})

	tracker.Apply(context.Background(), "add 10 gloves")

	movement := <-tracker.MovementQueue()
	if movement.ItemID != 1 {
		t.Errorf("expected item 1, got %d", movement.ItemID)
	}
	if movement.Direction != domain.DirectionAdd {
		t.Errorf("expected add, got %s", movement.Direction)
	}
	if movement.Before != 50 || movement.After != 60 {
		t.Errorf("expected 50 -> 60, got %d -> %d", movement.Before, movement.After)
	}
	if movement.Transcript != "add 10 gloves" {
		t.Errorf("expected transcript echo, got %q", movement.Transcript)
	}
	if movement.ID == "" {
		t.Error("expected non-empty movement ID")
	}

	tracker.Close()
}

func TestApply_MirrorsQuantityToCache(t *testing.T) {
	cache := newMockCache()
	cache.quantities[3] = 25
	tracker := NewTracker(NewInterpreter(false), nil, cache, 0, 100)
	tracker.Seed([]domain.Item{{ID: 3, Name: "Syringes", Quantity: 25}})

	tracker.Apply(context.Background(), "I used 5 syringes")

	if got := cache.quantities[3]; got != 20 {
		t.Errorf("expected mirrored quantity 20, got %d", got)
	}

	tracker.Apply(context.Background(), "add 7 syringes")

	if got := cache.quantities[3]; got != 27 {
		t.Errorf("expected mirrored quantity 27, got %d", got)
	}
}

func TestApply_FailedCommandDoesNotBlockRetry(t *testing.T) {
	store := &mockStore{updateErr: errors.New("connection reset")}
	cache := newMockCache()
	tracker := NewTracker(NewInterpreter(false), store, cache, time.Minute, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25}})

	first := tracker.Apply(context.Background(), "I used 5 syringes")
	if first.Outcome != OutcomeStoreFailed {
		t.Fatalf("expected store_failed, got %s", first.Outcome)
	}

	store.mu.Lock()
	store.updateErr = nil
	store.mu.Unlock()

	second := tracker.Apply(context.Background(), "I used 5 syringes")
	if second.Outcome != OutcomeApplied {
		t.Fatalf("retry after store failure must not be a duplicate, got %s", second.Outcome)
	}
	if got := tracker.Items()[0].Quantity; got != 20 {
		t.Errorf("expected single decrement to 20, got %d", got)
	}
}

func TestApply_NotFoundDoesNotBlockRetry(t *testing.T) {
	cache := newMockCache()
	tracker := NewTracker(NewInterpreter(false), nil, cache, time.Minute, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25}})

	first := tracker.Apply(context.Background(), "used 2 sirynges")
	if first.Outcome != OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", first.Outcome)
	}

	if _, err := tracker.Register(context.Background(), "Sirynges", "", 10, 2); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	second := tracker.Apply(context.Background(), "used 2 sirynges")
	if second.Outcome != OutcomeApplied {
		t.Fatalf("retry after registration must not be a duplicate, got %s", second.Outcome)
	}
}

func TestQuantity_PrefersCache(t *testing.T) {
	cache := newMockCache()
	cache.quantities[1] = 19
	tracker := NewTracker(NewInterpreter(false), nil, cache, 0, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25}})

	got, err := tracker.Quantity(context.Background(), 1)
	if err != nil {
		t.Fatalf("quantity failed: %v", err)
	}
	if got != 19 {
		t.Errorf("expected cached quantity 19, got %d", got)
	}
}

func TestQuantity_FallsBackToLedger(t *testing.T) {
	cache := newMockCache()
	tracker := NewTracker(NewInterpreter(false), nil, cache, 0, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25}})

	got, err := tracker.Quantity(context.Background(), 1)
	if err != nil {
		t.Fatalf("quantity failed: %v", err)
	}
	if got != 25 {
		t.Errorf("expected ledger quantity 25, got %d", got)
	}

	if _, err := tracker.Quantity(context.Background(), 99); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestRegister_MemoryAssignsNextID(t *testing.T) {
	tracker := seededTracker(
		domain.Item{ID: 4, Name: "Gloves", Quantity: 50},
		domain.Item{ID: 2, Name: "Syringes", Quantity: 25},
	)

	item, err := tracker.Register(context.Background(), "Gauze", "", 30, 10)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if item.ID != 5 {
		t.Errorf("expected id 5 (max+1), got %d", item.ID)
	}
	if item.Unit != "pieces" {
		t.Errorf("expected default unit, got %q", item.Unit)
	}
	if item.LastUpdated.IsZero() {
		t.Error("expected initial LastUpdated")
	}
	if len(tracker.Items()) != 3 {
		t.Errorf("expected 3 items, got %d", len(tracker.Items()))
	}
}

func TestRegister_StoreAssignsID(t *testing.T) {
	store := &mockStore{nextID: 41}
	tracker := NewTracker(NewInterpreter(false), store, nil, 0, 100)

	item, err := tracker.Register(context.Background(), "Gauze", "rolls", 30, 10)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if item.ID != 42 {
		t.Errorf("expected store-assigned id 42, got %d", item.ID)
	}
}

func TestRegister_InsertFailureAppendsNothing(t *testing.T) {
	store := &mockStore{insertErr: errors.New("duplicate key")}
	tracker := NewTracker(NewInterpreter(false), store, nil, 0, 100)

	if _, err := tracker.Register(context.Background(), "Gauze", "rolls", 30, 10); err == nil {
		t.Fatal("expected error")
	}
	if len(tracker.Items()) != 0 {
		t.Error("ledger mutated despite insert failure")
	}
}

func TestRegister_RequiresName(t *testing.T) {
	tracker := seededTracker()

	if _, err := tracker.Register(context.Background(), "  ", "rolls", 1, 0); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestLoad_ErrorKeepsLastKnownLedger(t *testing.T) {
	store := &mockStore{listErr: errors.New("timeout")}
	tracker := NewTracker(NewInterpreter(false), store, nil, 0, 100)
	tracker.Seed([]domain.Item{{ID: 1, Name: "Syringes", Quantity: 25}})

	if err := tracker.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if len(tracker.Items()) != 1 {
		t.Error("ledger discarded on failed load")
	}
}

func TestLoad_ReplacesLedger(t *testing.T) {
	store := &mockStore{items: []domain.Item{
		{ID: 1, Name: "Syringes", Quantity: 25},
		{ID: 2, Name: "Gloves", Quantity: 50},
	}}
	tracker := NewTracker(NewInterpreter(false), store, nil, 0, 100)

	if err := tracker.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(tracker.Items()) != 2 {
		t.Errorf("expected 2 items, got %d", len(tracker.Items()))
	}
}
