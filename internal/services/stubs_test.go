package services

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
)

// memStore is an in-memory repositories.Store with per-operation failure
// injection, used to exercise the dual-write paths without a database.
type memStore struct {
	name string

	mu           sync.Mutex
	customers    map[string]domain.Customer
	leads        map[string]domain.Lead
	orders       map[string]domain.Order
	statusEvents []domain.OrderStatusEvent
	outbox       []domain.SyncOutboxEntry

	failCustomerUpsert error
	failLeadUpsert     error
	failOrderUpsert    error
	failOrderFind      error
	failOrderList      error
	failEventAppend    error
	failOutboxAppend   error
	failUpdateStatus   error
}

func newMemStore(name string) *memStore {
	return &memStore{
		name:      name,
		customers: make(map[string]domain.Customer),
		leads:     make(map[string]domain.Lead),
		orders:    make(map[string]domain.Order),
	}
}

func (s *memStore) unavailable(entity string, err error) error {
	return repositories.NewStoreError(s.name, entity, repositories.KindUnavailable, err)
}

func (s *memStore) notFound(entity string) error {
	return repositories.NewStoreError(s.name, entity, repositories.KindNotFound, errors.New("not found"))
}

func (s *memStore) Name() string { return s.name }

func (s *memStore) Customers() repositories.CustomerRepository { return (*memCustomers)(s) }
func (s *memStore) Leads() repositories.LeadRepository { return (*memLeads)(s) }
func (s *memStore) Orders() repositories.OrderRepository { return (*memOrders)(s) }
func (s *memStore) StatusEvents() repositories.OrderStatusEventRepository { return (*memEvents)(s) }
func (s *memStore) Outbox() repositories.OutboxRepository { return (*memOutbox)(s) }

func (s *memStore) Close(context.Context) error { return nil }

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) outboxEntries() []domain.SyncOutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SyncOutboxEntry(nil), s.outbox...)
}

type memCustomers memStore

func (r *memCustomers) Upsert(_ context.Context, customer domain.Customer) error {
	s := (*memStore)(r)
	if s.failCustomerUpsert != nil {
		return s.unavailable("customers", s.failCustomerUpsert)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
	return nil
}

func (r *memCustomers) FindByEmail(_ context.Context, email string) (domain.Customer, error) {
	s := (*memStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, customer := range s.customers {
		if customer.Email != "" && customer.Email == email {
			return customer, nil
		}
	}
	return domain.Customer{}, s.notFound("customers")
}

func (r *memCustomers) FindByPhone(_ context.Context, phone string) (domain.Customer, error) {
	s := (*memStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, customer := range s.customers {
		if customer.Phone != "" && customer.Phone == phone {
			return customer, nil
		}
	}
	return domain.Customer{}, s.notFound("customers")
}

type memLeads memStore

func (r *memLeads) Upsert(_ context.Context, lead domain.Lead) error {
	s := (*memStore)(r)
	if s.failLeadUpsert != nil {
		return s.unavailable("leads", s.failLeadUpsert)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = lead
	return nil
}

type memOrders memStore

func (r *memOrders) Upsert(_ context.Context, order domain.Order) error {
	s := (*memStore)(r)
	if s.failOrderUpsert != nil {
		return s.unavailable("orders", s.failOrderUpsert)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

func (r *memOrders) FindByCode(_ context.Context, orderCode string) (domain.Order, error) {
	s := (*memStore)(r)
	if s.failOrderFind != nil {
		return domain.Order{}, s.unavailable("orders", s.failOrderFind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.OrderCode == orderCode {
			return order, nil
		}
	}
	return domain.Order{}, s.notFound("orders")
}

func (r *memOrders) FindByMagicToken(_ context.Context, token string) (domain.Order, error) {
	s := (*memStore)(r)
	if s.failOrderFind != nil {
		return domain.Order{}, s.unavailable("orders", s.failOrderFind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.MagicLinkToken == token {
			return order, nil
		}
	}
	return domain.Order{}, s.notFound("orders")
}

func (r *memOrders) ListStatusesByCustomer(_ context.Context, customerID string) ([]string, error) {
	s := (*memStore)(r)
	if s.failOrderList != nil {
		return nil, s.unavailable("orders", s.failOrderList)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var statuses []string
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			statuses = append(statuses, string(order.Status))
		}
	}
	return statuses, nil
}

func (r *memOrders) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	s := (*memStore)(r)
	if s.failUpdateStatus != nil {
		return s.unavailable("orders", s.failUpdateStatus)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return s.notFound("orders")
	}
	order.Status = status
	order.UpdatedAt = updatedAt
	s.orders[orderID] = order
	return nil
}

type memEvents memStore

func (r *memEvents) Append(_ context.Context, event domain.OrderStatusEvent) error {
	s := (*memStore)(r)
	if s.failEventAppend != nil {
		return s.unavailable("order_status_events", s.failEventAppend)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusEvents = append(s.statusEvents, event)
	return nil
}

type memOutbox memStore

func (r *memOutbox) Append(_ context.Context, entry domain.SyncOutboxEntry) error {
	s := (*memStore)(r)
	if s.failOutboxAppend != nil {
		return s.unavailable("sync_outbox", s.failOutboxAppend)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, entry)
	return nil
}

// stubListingParser returns canned hints.
type stubListingParser struct {
	hint    ListingHint
	hintErr error
	url     string
	urlErr  error
}

func (p *stubListingParser) ParseShippingHint(context.Context, map[string]any) (ListingHint, error) {
	return p.hint, p.hintErr
}

func (p *stubListingParser) FindListingURL(context.Context, map[string]any) (string, error) {
	return p.url, p.urlErr
}

// capturePublisher records published order events.
type capturePublisher struct {
	mu       sync.Mutex
	messages []OrderEventMessage
	err      error
}

func (p *capturePublisher) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return "msg-1", nil
}

func (p *capturePublisher) published() []OrderEventMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderEventMessage(nil), p.messages...)
}

// fixedRate is a static exchange-rate source.
type fixedRate float64

func (r fixedRate) CurrentRate() float64 { return float64(r) }

func discardLogger(context.Context, string, map[string]any) {}
