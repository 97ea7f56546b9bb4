package domain

import "time"

// Item is one ledger entry. IDs are assigned by the store (or max+1 when
// running purely in memory) and never change afterwards.
type Item struct {
	ID                int64
	Name              string
	Quantity          int
	Unit              string
	LowStockThreshold int
	CreatedAt         time.Time
	LastUpdated       time.Time
}

// LowStock reports whether the item is at or below its restock threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.LowStockThreshold
}
