package store

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

type cartItemRow struct {
	SessionID         string `db:"session_id"`
	ProductID         string `db:"product_id"`
	VariantID         string `db:"variant_id"`
	Name              string `db:"name"`
	Price             int64  `db:"price"`
	Quantity          int    `db:"quantity"`
	WarehouseID       string `db:"warehouse_id"`
	WarehouseName     string `db:"warehouse_name"`
	WarehouseIsGlobal bool   `db:"warehouse_is_global"`
}

// SaveCart replaces a session's persisted cart atomically.
func (s *Store) SaveCart(ctx context.Context, sessionID string, items []models.CartItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items
				(session_id, product_id, variant_id, name, price, quantity,
				 warehouse_id, warehouse_name, warehouse_is_global)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			sessionID, item.ProductID, item.VariantID, item.Name,
			item.Price, item.Quantity,
			item.Warehouse.ID, item.Warehouse.Name, item.Warehouse.IsGlobal)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}

	return tx.Commit()
}

// GetCart retrieves a session's persisted cart items.
func (s *Store) GetCart(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	var rows []cartItemRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM cart_items WHERE session_id = $1 ORDER BY product_id", sessionID)
	if err != nil {
		return nil, err
	}

	items := make([]models.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, models.CartItem{
			ProductID: row.ProductID,
			VariantID: row.VariantID,
			Name:      row.Name,
			Price:     row.Price,
			Quantity:  row.Quantity,
			Warehouse: models.WarehouseRef{
				ID:       row.WarehouseID,
				Name:     row.WarehouseName,
				IsGlobal: row.WarehouseIsGlobal,
			},
		})
	}
	return items, nil
}

// DeleteCart removes a session's persisted cart.
func (s *Store) DeleteCart(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE session_id = $1", sessionID)
	return err
}
