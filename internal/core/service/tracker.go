package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ptdat4/stocktalk/internal/core/domain"
	"github.com/ptdat4/stocktalk/internal/port"
)

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeUnrecognized Outcome = "unrecognized"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeStoreFailed  Outcome = "store_failed"
)

var ErrUnknownItem = errors.New("unknown item")

// CommandResult is the discriminated outcome of one spoken command. Status
// is always set and ready for display; the item fields are populated only
// when Outcome is OutcomeApplied. Err carries the underlying store error
// for OutcomeStoreFailed.
type CommandResult struct {
	Outcome    Outcome
	Status     string
	Transcript string
	ItemID     int64
	ItemName   string
	Direction  domain.Direction
	Delta      int
	Before     int
	After      int
	LowStock   bool
	Err        error
}

// Tracker owns the in-memory ledger and reconciles parsed commands against
// it. Mutations are store-first: the ledger changes only after the store
// confirms the write. With a nil store the tracker runs purely in memory.
type Tracker struct {
	interp   *Interpreter
	store    port.LedgerStore
	cache    port.QuantityCache
	dedupTTL time.Duration

	mu     sync.Mutex
	ledger []domain.Item

	movements chan domain.Movement
}

func NewTracker(interp *Interpreter, store port.LedgerStore, cache port.QuantityCache, dedupTTL time.Duration, queueSize int) *Tracker {
	return &Tracker{
		interp:    interp,
		store:     store,
		cache:     cache,
		dedupTTL:  dedupTTL,
		movements: make(chan domain.Movement, queueSize),
	}
}

// Load replaces the ledger with a full read from the store. On failure the
// in-memory ledger keeps its last-known state.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	items, err := t.store.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	t.mu.Lock()
	t.ledger = items
	t.mu.Unlock()
	return nil
}

// Seed installs an initial ledger, for memory-only runs and tests.
func (t *Tracker) Seed(items []domain.Item) {
	t.mu.Lock()
	t.ledger = append([]domain.Item(nil), items...)
	t.mu.Unlock()
}

// Items returns a snapshot of the ledger in creation order.
func (t *Tracker) Items() []domain.Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Item(nil), t.ledger...)
}

// Apply interprets a transcript and reconciles it against the ledger.
func (t *Tracker) Apply(ctx context.Context, transcript string) CommandResult {
	intent, err := t.interp.Parse(transcript)
	if err != nil {
		return CommandResult{
			Outcome:    OutcomeUnrecognized,
			Transcript: transcript,
			Status:     fmt.Sprintf("Could not understand %q. Try \"I used 5 syringes\" or \"add 10 gloves to inventory\".", transcript),
		}
	}

	// Speech engines re-emit final results; suppress identical transcripts
	// inside the dedup window. Best-effort: a cache error never blocks the
	// command. The claimed key is released again when the command does not
	// apply, so a failed command can be retried immediately.
	var dedupKey string
	if t.cache != nil && t.dedupTTL > 0 {
		key := "cmd:" + strings.ToLower(strings.TrimSpace(transcript))
		if ok, err := t.cache.SetDedup(ctx, key, t.dedupTTL); err == nil {
			if !ok {
				return CommandResult{
					Outcome:    OutcomeDuplicate,
					Transcript: transcript,
					Status:     fmt.Sprintf("Ignored repeated command %q.", transcript),
				}
			}
			dedupKey = key
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	item := t.matchLocked(intent.Fragment)
	if item == nil {
		t.releaseDedup(ctx, dedupKey)
		return CommandResult{
			Outcome:    OutcomeNotFound,
			Transcript: transcript,
			Status: fmt.Sprintf("No item matching %q. Known items: %s.",
				intent.Fragment, strings.Join(t.namesLocked(), ", ")),
		}
	}

	before := item.Quantity
	var after int
	var verb string
	switch intent.Direction {
	case domain.DirectionAdd:
		after = before + intent.Delta
		verb = "Added"
	default:
		after = before - intent.Delta
		if after < 0 {
			after = 0
		}
		verb = "Used"
	}

	now := time.Now()
	if t.store != nil {
		if err := t.store.UpdateQuantity(ctx, item.ID, after, now); err != nil {
			t.releaseDedup(ctx, dedupKey)
			return CommandResult{
				Outcome:    OutcomeStoreFailed,
				Transcript: transcript,
				ItemName:   item.Name,
				Status:     fmt.Sprintf("Could not save update for %s; quantity stays at %d.", item.Name, before),
				Err:        fmt.Errorf("update quantity for %s: %w", item.Name, err),
			}
		}
	}

	item.Quantity = after
	item.LastUpdated = now

	if t.cache != nil {
		// The mirror moves by the applied delta through the clamped atomic
		// script rather than an absolute SET, so concurrent writers never
		// overwrite each other with stale absolutes. Best-effort.
		signed := intent.Delta
		if intent.Direction != domain.DirectionAdd {
			signed = -signed
		}
		t.cache.AdjustQuantity(ctx, item.ID, signed)
	}

	t.movements <- domain.Movement{
		ID:         uuid.NewString(),
		ItemID:     item.ID,
		ItemName:   item.Name,
		Direction:  intent.Direction,
		Delta:      intent.Delta,
		Before:     before,
		After:      after,
		Transcript: transcript,
		CreatedAt:  now,
	}

	return CommandResult{
		Outcome:    OutcomeApplied,
		Transcript: transcript,
		ItemID:     item.ID,
		ItemName:   item.Name,
		Direction:  intent.Direction,
		Delta:      intent.Delta,
		Before:     before,
		After:      after,
		LowStock:   item.LowStock(),
		Status:     fmt.Sprintf("%s %d %s (%d → %d)", verb, intent.Delta, item.Name, before, after),
	}
}

// Register appends a new item to the ledger. The store assigns the ID; in
// memory-only runs it is max existing ID + 1. Name is the only required
// field, a missing unit defaults to "pieces".
func (t *Tracker) Register(ctx context.Context, name, unit string, quantity, threshold int) (domain.Item, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Item{}, fmt.Errorf("item name is required")
	}
	if unit == "" {
		unit = "pieces"
	}

	now := time.Now()
	item := domain.Item{
		Name:              name,
		Quantity:          quantity,
		Unit:              unit,
		LowStockThreshold: threshold,
		CreatedAt:         now,
		LastUpdated:       now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store != nil {
		id, err := t.store.InsertItem(ctx, item)
		if err != nil {
			return domain.Item{}, fmt.Errorf("insert item %s: %w", name, err)
		}
		item.ID = id
	} else {
		item.ID = t.nextIDLocked()
	}

	t.ledger = append(t.ledger, item)

	if t.cache != nil {
		t.cache.SetQuantity(ctx, item.ID, item.Quantity)
	}

	return item, nil
}

// Quantity returns the current quantity for one item, preferring the cache
// mirror over the in-memory ledger so UI polls stay off the command path.
func (t *Tracker) Quantity(ctx context.Context, itemID int64) (int, error) {
	if t.cache != nil {
		if quantity, found, err := t.cache.GetQuantity(ctx, itemID); err == nil && found {
			return quantity, nil
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range t.ledger {
		if item.ID == itemID {
			return item.Quantity, nil
		}
	}
	return 0, ErrUnknownItem
}

// releaseDedup frees a claimed dedup key for a command that did not apply.
func (t *Tracker) releaseDedup(ctx context.Context, key string) {
	if key == "" || t.cache == nil {
		return
	}
	t.cache.ClearDedup(ctx, key)
}

// MovementQueue exposes the audit trail of applied adjustments for the
// persistence workers.
func (t *Tracker) MovementQueue() <-chan domain.Movement {
	return t.movements
}

func (t *Tracker) Close() {
	close(t.movements)
}

// matchLocked resolves a fragment by bidirectional substring containment on
// lowercased names; the first ledger-order match wins.
func (t *Tracker) matchLocked(fragment string) *domain.Item {
	for i := range t.ledger {
		name := strings.ToLower(t.ledger[i].Name)
		if strings.Contains(name, fragment) || strings.Contains(fragment, name) {
			return &t.ledger[i]
		}
	}
	return nil
}

func (t *Tracker) namesLocked() []string {
	names := make([]string, len(t.ledger))
	for i, item := range t.ledger {
		names[i] = item.Name
	}
	return names
}

func (t *Tracker) nextIDLocked() int64 {
	var max int64
	for _, item := range t.ledger {
		if item.ID > max {
			max = item.ID
		}
	}
	return max + 1
}
