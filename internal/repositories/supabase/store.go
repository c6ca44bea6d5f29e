package supabase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/config"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
)

const (
	storeName = "supabase"

	defaultOpTimeout = 5 * time.Second
)

var errNoRows = errors.New("no rows returned")

// Store is the secondary CRM store backed by the Supabase REST API. It is
// write-mostly: the booking engine mirrors rows into it and only reads from
// it when the primary store is unavailable.
type Store struct {
	client    *postgrest.Client
	opTimeout time.Duration

	customers *customerRepository
	leads     *leadRepository
	orders    *orderRepository
	events    *statusEventRepository
	outbox    *outboxRepository
}

// NewStore builds a postgrest client from the Supabase project settings.
func NewStore(cfg config.SupabaseConfig) (*Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("supabase store: url and service role key are required")
	}

	restURL := strings.TrimRight(cfg.URL, "/") + "/rest/v1"
	headers := map[string]string{
		"apikey":        cfg.ServiceRoleKey,
		"Authorization": "Bearer " + cfg.ServiceRoleKey,
	}
	client := postgrest.NewClient(restURL, cfg.Schema, headers)
	if client.ClientError != nil {
		return nil, client.ClientError
	}

	opTimeout := cfg.StoreTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	store := &Store{client: client, opTimeout: opTimeout}
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

// Close implements repositories.Store. The REST client holds no pooled
// resources.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// mapError categorises postgrest failures. The REST surface does not expose
// structured error codes we can rely on, so everything except a missing row
// counts as unavailability and becomes eligible for outbox capture.
func (s *Store) mapError(entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errNoRows) {
		return repositories.NewStoreError(storeName, entity, repositories.KindNotFound, err)
	}
	return repositories.NewStoreError(storeName, entity, repositories.KindUnavailable, err)
}
