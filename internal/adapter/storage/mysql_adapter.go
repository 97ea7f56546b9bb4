package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ptdat4/stocktalk/internal/core/domain"
)

var ErrItemMissing = errors.New("item missing from store")

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, quantity, unit, low_stock_threshold, created_at, last_updated
		FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity, &item.Unit,
			&item.LowStockThreshold, &item.CreatedAt, &item.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

// UpdateQuantity requires clientFoundRows=true in the DSN so RowsAffected
// counts matched rows; under the driver default it counts changed rows, and
// a no-op update (same quantity, same second) would look like a missing row.
func (m *MySQLAdapter) UpdateQuantity(ctx context.Context, id int64, quantity int, updatedAt time.Time) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE items SET quantity = ?, last_updated = ? WHERE id = ?`,
		quantity, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	if rows == 0 {
		return ErrItemMissing
	}

	return nil
}

func (m *MySQLAdapter) InsertItem(ctx context.Context, item domain.Item) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO items (name, quantity, unit, low_stock_threshold, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.Name, item.Quantity, item.Unit, item.LowStockThreshold,
		item.CreatedAt, item.LastUpdated,
	)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read assigned id: %w", err)
	}

	return id, nil
}

func (m *MySQLAdapter) InsertMovement(ctx context.Context, mv domain.Movement) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO movements (id, item_id, item_name, direction, delta, before_qty, after_qty, transcript, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.ID, mv.ItemID, mv.ItemName, string(mv.Direction), mv.Delta,
		mv.Before, mv.After, mv.Transcript, mv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}

	return nil
}
