package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type orderRepository struct {
	store *Store
}

const orderColumns = `
	id, order_code, customer_id, lead_id, bike_id, bike_snapshot, status,
	magic_link_token, final_price_eur, total_price_rub, booking_amount_rub,
	exchange_rate, delivery_method, created_at, updated_at
`

// Upsert inserts the order row or replays it idempotently. Financial fields
// carry the originally computed numbers: a replayed upsert never re-derives
// them, and the status of an existing row is left alone so a mirror replay
// cannot roll a transition back.
func (r *orderRepository) Upsert(ctx context.Context, order domain.Order) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	snapshot, err := json.Marshal(order.BikeSnapshot)
	if err != nil {
		return fmt.Errorf("marshal order snapshot: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			bike_snapshot = EXCLUDED.bike_snapshot,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.store.pool.Exec(ctx, query,
		order.ID,
		order.OrderCode,
		order.CustomerID,
		order.LeadID,
		nullIfEmpty(order.BikeID),
		snapshot,
		string(order.Status),
		order.MagicLinkToken,
		order.FinalPriceEur,
		order.TotalPriceRub,
		order.BookingAmountRub,
		order.ExchangeRate,
		order.DeliveryMethod,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return r.store.mapError("orders", err)
	}
	return nil
}

// FindByCode returns the order row matching the caller-facing order code.
func (r *orderRepository) FindByCode(ctx context.Context, orderCode string) (domain.Order, error) {
	return r.findByColumn(ctx, "order_code", orderCode)
}

// FindByMagicToken returns the order row matching the magic link token.
func (r *orderRepository) FindByMagicToken(ctx context.Context, token string) (domain.Order, error) {
	return r.findByColumn(ctx, "magic_link_token", token)
}

func (r *orderRepository) findByColumn(ctx context.Context, column, value string) (domain.Order, error) {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1 LIMIT 1`

	var order domain.Order
	var bikeID *string
	var snapshot []byte
	var status string
	err := r.store.pool.QueryRow(ctx, query, value).Scan(
		&order.ID,
		&order.OrderCode,
		&order.CustomerID,
		&order.LeadID,
		&bikeID,
		&snapshot,
		&status,
		&order.MagicLinkToken,
		&order.FinalPriceEur,
		&order.TotalPriceRub,
		&order.BookingAmountRub,
		&order.ExchangeRate,
		&order.DeliveryMethod,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, r.store.mapError("orders", err)
	}

	order.BikeID = stringOrEmpty(bikeID)
	order.Status = domain.OrderStatus(status)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &order.BikeSnapshot); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal order snapshot: %w", err)
		}
	}
	return order, nil
}

// ListStatusesByCustomer returns the raw status strings of all orders owned
// by the customer. Classification happens in the quota guard.
func (r *orderRepository) ListStatusesByCustomer(ctx context.Context, customerID string) ([]string, error) {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	rows, err := r.store.pool.Query(ctx, `SELECT status FROM orders WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, r.store.mapError("orders", err)
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, r.store.mapError("orders", err)
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, r.store.mapError("orders", err)
	}
	return statuses, nil
}

// UpdateStatus mutates only the status column; all other fields are frozen
// once settlement begins.
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	tag, err := r.store.pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), updatedAt, orderID,
	)
	if err != nil {
		return r.store.mapError("orders", err)
	}
	if tag.RowsAffected() == 0 {
		return r.store.mapError("orders", pgx.ErrNoRows)
	}
	return nil
}
