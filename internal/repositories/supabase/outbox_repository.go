package supabase

import (
	"context"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type outboxRepository struct {
	store *Store
}

// Append records a failed mirror-back write while running in fallback mode.
func (r *outboxRepository) Append(ctx context.Context, entry domain.SyncOutboxEntry) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	row := outboxRow{
		ID:         entry.ID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Operation:  entry.Operation,
		Payload:    entry.Payload,
		Status:     entry.Status,
		RetryCount: entry.RetryCount,
		LastError:  optional(entry.LastError),
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
	}
	_, _, err := r.store.client.From("sync_outbox").
		Insert(row, true, "id", "minimal", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return r.store.mapError("sync_outbox", err)
	}
	return nil
}
