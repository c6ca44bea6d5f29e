package postgres

import (
	"context"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type outboxRepository struct {
	store *Store
}

// Append durably records a failed mirror write for later replay.
func (r *outboxRepository) Append(ctx context.Context, entry domain.SyncOutboxEntry) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	query := `
		INSERT INTO sync_outbox (id, entity_type, entity_id, operation, payload, status, retry_count, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.store.pool.Exec(ctx, query,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.Operation,
		entry.Payload,
		entry.Status,
		entry.RetryCount,
		nullIfEmpty(entry.LastError),
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return r.store.mapError("sync_outbox", err)
	}
	return nil
}
