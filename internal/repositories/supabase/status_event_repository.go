package supabase

import (
	"context"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type statusEventRepository struct {
	store *Store
}

// Append mirrors one status transition; duplicate ids merge into a no-op.
func (r *statusEventRepository) Append(ctx context.Context, event domain.OrderStatusEvent) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	row := statusEventRow{
		ID:        event.ID,
		OrderID:   event.OrderID,
		OldStatus: optional(string(event.OldStatus)),
		NewStatus: string(event.NewStatus),
		Note:      optional(event.Note),
		ChangedBy: optional(event.ChangedBy),
		CreatedAt: event.CreatedAt,
	}
	_, _, err := r.store.client.From("order_status_events").
		Insert(row, true, "id", "minimal", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return r.store.mapError("order_status_events", err)
	}
	return nil
}
