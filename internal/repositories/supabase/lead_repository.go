package supabase

import (
	"context"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type leadRepository struct {
	store *Store
}

// Upsert mirrors the lead row keyed by id.
func (r *leadRepository) Upsert(ctx context.Context, lead domain.Lead) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	row, err := leadToRow(lead)
	if err != nil {
		return err
	}
	_, _, err = r.store.client.From("leads").
		Insert(row, true, "id", "minimal", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return r.store.mapError("leads", err)
	}
	return nil
}
