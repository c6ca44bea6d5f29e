package repositories

import (
	"context"
	"time"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

// Store bundles the per-entity repositories of one physical store. The
// booking orchestrator receives a primary Store and an optional secondary
// Store; an absent secondary is a legitimate configuration, not an error.
type Store interface {
	// Name identifies the store in logs and outbox diagnostics.
	Name() string

	Customers() CustomerRepository
	Leads() LeadRepository
	Orders() OrderRepository
	StatusEvents() OrderStatusEventRepository
	Outbox() OutboxRepository

	Close(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation
// used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CustomerRepository persists buyer identities. Upsert is keyed by id and
// must be safe to repeat.
type CustomerRepository interface {
	Upsert(ctx context.Context, customer domain.Customer) error
	FindByEmail(ctx context.Context, email string) (domain.Customer, error)
	FindByPhone(ctx context.Context, phone string) (domain.Customer, error)
}

// LeadRepository persists contact events. Leads are immutable after
// creation except for status, so Upsert by id covers both the initial
// insert and the mirror replay.
type LeadRepository interface {
	Upsert(ctx context.Context, lead domain.Lead) error
}

// OrderRepository persists booking records.
type OrderRepository interface {
	Upsert(ctx context.Context, order domain.Order) error
	FindByCode(ctx context.Context, orderCode string) (domain.Order, error)
	FindByMagicToken(ctx context.Context, token string) (domain.Order, error)
	ListStatusesByCustomer(ctx context.Context, customerID string) ([]string, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error
}

// OrderStatusEventRepository appends status-history rows.
type OrderStatusEventRepository interface {
	Append(ctx context.Context, event domain.OrderStatusEvent) error
}

// OutboxRepository appends failed-mirror records. The booking engine never
// reads or deletes outbox rows; an external drain worker owns consumption.
type OutboxRepository interface {
	Append(ctx context.Context, entry domain.SyncOutboxEntry) error
}
