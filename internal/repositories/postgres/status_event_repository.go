package postgres

import (
	"context"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type statusEventRepository struct {
	store *Store
}

// Append records one status transition. Events are insert-only; a replayed
// append with the same id is a no-op.
func (r *statusEventRepository) Append(ctx context.Context, event domain.OrderStatusEvent) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	query := `
		INSERT INTO order_status_events (id, order_id, old_status, new_status, note, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.store.pool.Exec(ctx, query,
		event.ID,
		event.OrderID,
		nullIfEmpty(string(event.OldStatus)),
		string(event.NewStatus),
		nullIfEmpty(event.Note),
		nullIfEmpty(event.ChangedBy),
		event.CreatedAt,
	)
	if err != nil {
		return r.store.mapError("order_status_events", err)
	}
	return nil
}
