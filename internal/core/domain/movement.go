package domain

import "time"

// Movement is the audit record of one applied stock adjustment. Movements
// are written asynchronously and never feed back into the ledger.
type Movement struct {
	ID         string
	ItemID     int64
	ItemName   string
	Direction  Direction
	Delta      int
	Before     int
	After      int
	Transcript string
	CreatedAt  time.Time
}
