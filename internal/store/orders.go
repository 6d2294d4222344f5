package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-sync-service/internal/models"
)

// CreateOrder creates a new order together with its items
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.LineItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := now()
	order.CreatedAt = ts
	order.UpdatedAt = ts

	query := tx.Rebind(`
		INSERT INTO orders (order_number, billing_email, billing_first_name, billing_last_name, status, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err = tx.GetContext(ctx, &order.ID, query,
		order.OrderNumber, order.BillingEmail, order.BillingFirstName, order.BillingLastName,
		order.Status, false, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := tx.Rebind(`
		INSERT INTO order_items (order_id, product_id, quantity, unit_total)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.GetContext(ctx, &items[i].ID, itemQuery,
			order.ID, items[i].ProductID, items[i].Quantity, items[i].UnitTotal); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, s.db.Rebind("SELECT * FROM orders WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus updates order status and returns the previous one
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var previous string
	err = tx.GetContext(ctx, &previous, tx.Rebind("SELECT status FROM orders WHERE id = ?"), orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx,
		tx.Rebind("UPDATE orders SET status = ?, updated_at = ? WHERE id = ?"),
		status, now(), orderID)
	if err != nil {
		return "", err
	}

	return previous, tx.Commit()
}

// lineItemRow is an order item joined with its (possibly deleted) product
type lineItemRow struct {
	models.LineItem
	ProductRef   *int64  `db:"product_ref"`
	ProductSKU   *string `db:"product_sku"`
	ProductName  *string `db:"product_name"`
	ProductPrice *int64  `db:"product_price"`
}

// GetLineItems retrieves all items for an order in insertion order,
// resolving each product reference.
func (s *Store) GetLineItems(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	query := s.db.Rebind(`
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_total,
			p.id AS product_ref, p.sku AS product_sku, p.name AS product_name, p.price AS product_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id`)

	var rows []lineItemRow
	if err := s.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, err
	}

	items := make([]models.LineItem, 0, len(rows))
	for _, row := range rows {
		item := row.LineItem
		if row.ProductRef != nil {
			product := &models.Product{ID: *row.ProductRef, SKU: row.ProductSKU}
			if row.ProductName != nil {
				product.Name = *row.ProductName
			}
			if row.ProductPrice != nil {
				product.Price = *row.ProductPrice
			}
			item.Product = product
		}
		items = append(items, item)
	}
	return items, nil
}
