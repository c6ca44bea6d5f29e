package postgres

import (
	"context"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

type customerRepository struct {
	store *Store
}

// Upsert inserts the customer row or refreshes an existing one keyed by id.
func (r *customerRepository) Upsert(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	query := `
		INSERT INTO customers (id, full_name, email, phone, preferred_channel, contact_value, city, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = COALESCE(EXCLUDED.email, customers.email),
			phone = COALESCE(EXCLUDED.phone, customers.phone),
			preferred_channel = EXCLUDED.preferred_channel,
			contact_value = COALESCE(EXCLUDED.contact_value, customers.contact_value),
			city = COALESCE(EXCLUDED.city, customers.city),
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.store.pool.Exec(ctx, query,
		customer.ID,
		customer.FullName,
		nullIfEmpty(customer.Email),
		nullIfEmpty(customer.Phone),
		string(customer.PreferredChannel),
		nullIfEmpty(customer.ContactValue),
		nullIfEmpty(customer.City),
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if err != nil {
		return r.store.mapError("customers", err)
	}
	return nil
}

// FindByEmail returns the customer row matching the email exactly.
func (r *customerRepository) FindByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return r.findByColumn(ctx, "email", email)
}

// FindByPhone returns the customer row matching the phone exactly.
func (r *customerRepository) FindByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	return r.findByColumn(ctx, "phone", phone)
}

func (r *customerRepository) findByColumn(ctx context.Context, column, value string) (domain.Customer, error) {
	ctx, cancel := r.store.opContext(ctx)
	defer cancel()

	query := `
		SELECT id, full_name, email, phone, preferred_channel, contact_value, city, created_at, updated_at
		FROM customers
		WHERE ` + column + ` = $1
		ORDER BY created_at
		LIMIT 1
	`

	var customer domain.Customer
	var email, phone, contactValue, city *string
	var channel string
	err := r.store.pool.QueryRow(ctx, query, value).Scan(
		&customer.ID,
		&customer.FullName,
		&email,
		&phone,
		&channel,
		&contactValue,
		&city,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		return domain.Customer{}, r.store.mapError("customers", err)
	}

	customer.Email = stringOrEmpty(email)
	customer.Phone = stringOrEmpty(phone)
	customer.ContactValue = stringOrEmpty(contactValue)
	customer.City = stringOrEmpty(city)
	customer.PreferredChannel = domain.PreferredChannel(channel)
	return customer, nil
}
