package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
)

const (
	storeName = "local_primary"

	pgUniqueViolation = "23505"

	defaultOpTimeout = 5 * time.Second
)

// Store is the primary-store implementation backed by PostgreSQL. Every
// operation is bounded by the configured per-write timeout so a hanging
// store surfaces as a categorised failure instead of an open-ended wait.
type Store struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration

	customers *customerRepository
	leads     *leadRepository
	orders    *orderRepository
	events    *statusEventRepository
	outbox    *outboxRepository
}

// NewStore wires the Postgres-backed repositories around the shared pool.
func NewStore(pool *pgxpool.Pool, opTimeout time.Duration) (*Store, error) {
	if pool == nil {
		return nil, errors.New("postgres store: pool is required")
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	store := &Store{pool: pool, opTimeout: opTimeout}
	store.customers = &customerRepository{store: store}
	store.leads = &leadRepository{store: store}
	store.orders = &orderRepository{store: store}
	store.events = &statusEventRepository{store: store}
	store.outbox = &outboxRepository{store: store}
	return store, nil
}

// Name identifies the store in logs and outbox rows.
func (s *Store) Name() string { return storeName }

// Customers implements repositories.Store.
func (s *Store) Customers() repositories.CustomerRepository { return s.customers }

// Leads implements repositories.Store.
func (s *Store) Leads() repositories.LeadRepository { return s.leads }

// Orders implements repositories.Store.
func (s *Store) Orders() repositories.OrderRepository { return s.orders }

// StatusEvents implements repositories.Store.
func (s *Store) StatusEvents() repositories.OrderStatusEventRepository { return s.events }

// Outbox implements repositories.Store.
func (s *Store) Outbox() repositories.OutboxRepository { return s.outbox }

// Close releases the underlying pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// mapError categorises pgx failures for the service layer.
func (s *Store) mapError(entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.NewStoreError(storeName, entity, repositories.KindNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return repositories.NewStoreError(storeName, entity, repositories.KindConflict, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return repositories.NewStoreError(storeName, entity, repositories.KindUnavailable, err)
	}
	return repositories.NewStoreError(storeName, entity, repositories.KindUnavailable, err)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
