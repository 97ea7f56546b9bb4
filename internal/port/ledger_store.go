package port

import (
	"context"
	"time"

	"github.com/ptdat4/stocktalk/internal/core/domain"
)

type LedgerStore interface {
	// ListItems returns every item ordered by creation.
	ListItems(ctx context.Context) ([]domain.Item, error)

	// UpdateQuantity sets the stored quantity and last-updated timestamp
	// for one item.
	UpdateQuantity(ctx context.Context, id int64, quantity int, updatedAt time.Time) error

	// InsertItem persists a new item and returns its assigned ID.
	InsertItem(ctx context.Context, item domain.Item) (int64, error)

	// InsertMovement appends one adjustment to the audit trail.
	InsertMovement(ctx context.Context, m domain.Movement) error
}
