package supabase

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

// Row types mirror the table shapes exposed through PostgREST. Timestamps
// travel as RFC 3339 strings, which time.Time handles natively.

type customerRow struct {
	ID               string    `json:"id"`
	FullName         string    `json:"full_name"`
	Email            *string   `json:"email,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	PreferredChannel string    `json:"preferred_channel"`
	ContactValue     *string   `json:"contact_value,omitempty"`
	City             *string   `json:"city,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func customerToRow(customer domain.Customer) customerRow {
	return customerRow{
		ID:               customer.ID,
		FullName:         customer.FullName,
		Email:            optional(customer.Email),
		Phone:            optional(customer.Phone),
		PreferredChannel: string(customer.PreferredChannel),
		ContactValue:     optional(customer.ContactValue),
		City:             optional(customer.City),
		CreatedAt:        customer.CreatedAt,
		UpdatedAt:        customer.UpdatedAt,
	}
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{
		ID:               r.ID,
		FullName:         r.FullName,
		Email:            deref(r.Email),
		Phone:            deref(r.Phone),
		PreferredChannel: domain.PreferredChannel(r.PreferredChannel),
		ContactValue:     deref(r.ContactValue),
		City:             deref(r.City),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type leadRow struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	Source        string          `json:"source"`
	BikeURL       *string         `json:"bike_url,omitempty"`
	BikeSnapshot  json.RawMessage `json:"bike_snapshot,omitempty"`
	Status        string          `json:"status"`
	ContactMethod string          `json:"contact_method"`
	ContactValue  *string         `json:"contact_value,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func leadToRow(lead domain.Lead) (leadRow, error) {
	snapshot, err := json.Marshal(lead.BikeSnapshot)
	if err != nil {
		return leadRow{}, fmt.Errorf("marshal lead snapshot: %w", err)
	}
	return leadRow{
		ID:            lead.ID,
		CustomerID:    lead.CustomerID,
		Source:        lead.Source,
		BikeURL:       optional(lead.BikeURL),
		BikeSnapshot:  snapshot,
		Status:        lead.Status,
		ContactMethod: lead.ContactMethod,
		ContactValue:  optional(lead.ContactValue),
		CreatedAt:     lead.CreatedAt,
	}, nil
}

type orderRow struct {
	ID               string          `json:"id"`
	OrderCode        string          `json:"order_code"`
	CustomerID       string          `json:"customer_id"`
	LeadID           string          `json:"lead_id"`
	BikeID           *string         `json:"bike_id,omitempty"`
	BikeSnapshot     json.RawMessage `json:"bike_snapshot,omitempty"`
	Status           string          `json:"status"`
	MagicLinkToken   string          `json:"magic_link_token"`
	FinalPriceEur    float64         `json:"final_price_eur"`
	TotalPriceRub    int64           `json:"total_price_rub"`
	BookingAmountRub int64           `json:"booking_amount_rub"`
	ExchangeRate     float64         `json:"exchange_rate"`
	DeliveryMethod   string          `json:"delivery_method"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func orderToRow(order domain.Order) (orderRow, error) {
	snapshot, err := json.Marshal(order.BikeSnapshot)
	if err != nil {
		return orderRow{}, fmt.Errorf("marshal order snapshot: %w", err)
	}
	return orderRow{
		ID:               order.ID,
		OrderCode:        order.OrderCode,
		CustomerID:       order.CustomerID,
		LeadID:           order.LeadID,
		BikeID:           optional(order.BikeID),
		BikeSnapshot:     snapshot,
		Status:           string(order.Status),
		MagicLinkToken:   order.MagicLinkToken,
		FinalPriceEur:    order.FinalPriceEur,
		TotalPriceRub:    order.TotalPriceRub,
		BookingAmountRub: order.BookingAmountRub,
		ExchangeRate:     order.ExchangeRate,
		DeliveryMethod:   order.DeliveryMethod,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}, nil
}

func (r orderRow) toDomain() (domain.Order, error) {
	order := domain.Order{
		ID:               r.ID,
		OrderCode:        r.OrderCode,
		CustomerID:       r.CustomerID,
		LeadID:           r.LeadID,
		BikeID:           deref(r.BikeID),
		Status:           domain.OrderStatus(r.Status),
		MagicLinkToken:   r.MagicLinkToken,
		FinalPriceEur:    r.FinalPriceEur,
		TotalPriceRub:    r.TotalPriceRub,
		BookingAmountRub: r.BookingAmountRub,
		ExchangeRate:     r.ExchangeRate,
		DeliveryMethod:   r.DeliveryMethod,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if len(r.BikeSnapshot) > 0 {
		if err := json.Unmarshal(r.BikeSnapshot, &order.BikeSnapshot); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal order snapshot: %w", err)
		}
	}
	return order, nil
}

type statusEventRow struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	OldStatus *string   `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status"`
	Note      *string   `json:"note,omitempty"`
	ChangedBy *string   `json:"changed_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type outboxRow struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Operation  string    `json:"operation"`
	Payload    string    `json:"payload"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	LastError  *string   `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
