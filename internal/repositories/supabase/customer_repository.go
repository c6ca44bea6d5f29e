package supabase

import (
	"context"
	"encoding/json"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type customerRepository struct {
	store *Store
}

// Upsert mirrors the customer row, merging on id so a replayed mirror is a
// no-op.
func (r *customerRepository) Upsert(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	row := customerToRow(customer)
	_, _, err := r.store.client.From("customers").
		Insert(row, true, "id", "minimal", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return r.store.mapError("customers", err)
	}
	return nil
}

// FindByEmail returns the oldest customer row carrying the email.
func (r *customerRepository) FindByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return r.findByColumn(ctx, "email", email)
}

// FindByPhone returns the oldest customer row carrying the phone number.
func (r *customerRepository) FindByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	return r.findByColumn(ctx, "phone", phone)
}

func (r *customerRepository) findByColumn(ctx context.Context, column, value string) (domain.Customer, error) {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	data, _, err := r.store.client.From("customers").
		Select("*", "", false).
		Eq(column, value).
		Limit(1, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return domain.Customer{}, r.store.mapError("customers", err)
	}

	var rows []customerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return domain.Customer{}, r.store.mapError("customers", err)
	}
	if len(rows) == 0 {
		return domain.Customer{}, r.store.mapError("customers", errNoRows)
	}
	return rows[0].toDomain(), nil
}
