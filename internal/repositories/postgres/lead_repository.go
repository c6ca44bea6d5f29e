package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type leadRepository struct {
	store *Store
}

// Upsert inserts the lead row or replays it idempotently by id.
func (r *leadRepository) Upsert(ctx context.Context, lead domain.Lead) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	snapshot, err := json.Marshal(lead.BikeSnapshot)
	if err != nil {
		return fmt.Errorf("marshal lead snapshot: %w", err)
	}

	query := `
		INSERT INTO leads (id, customer_id, source, bike_url, bike_snapshot, status, contact_method, contact_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
	`

	_, err = r.store.pool.Exec(ctx, query,
		lead.ID,
		lead.CustomerID,
		lead.Source,
		nullIfEmpty(lead.BikeURL),
		snapshot,
		lead.Status,
		nullIfEmpty(lead.ContactMethod),
		nullIfEmpty(lead.ContactValue),
		lead.CreatedAt,
	)
	if err != nil {
		return r.store.mapError("leads", err)
	}
	return nil
}
