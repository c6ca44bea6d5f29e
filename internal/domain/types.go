package domain

import (
	"strings"
	"time"
)

// PreferredChannel enumerates the contact channels a customer can choose.
type PreferredChannel string

const (
	ChannelEmail    PreferredChannel = "email"
	ChannelTelegram PreferredChannel = "telegram"
	ChannelWhatsApp PreferredChannel = "whatsapp"
)

// NormalizePreferredChannel maps free-form channel hints onto the canonical
// set, falling back to whatsapp the way the CRM intake does.
func NormalizePreferredChannel(raw string) PreferredChannel {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case value == "email":
		return ChannelEmail
	case value == "telegram" || strings.HasPrefix(value, "telegram:"):
		return ChannelTelegram
	default:
		return ChannelWhatsApp
	}
}

// Customer is the identity of a buyer. Rows are deduplicated by email first,
// phone second, and are refreshed on subsequent bookings but never deleted
// by the booking engine.
type Customer struct {
	ID               string           `json:"id"`
	FullName         string           `json:"full_name"`
	Email            string           `json:"email,omitempty"`
	Phone            string           `json:"phone,omitempty"`
	PreferredChannel PreferredChannel `json:"preferred_channel"`
	ContactValue     string           `json:"contact_value,omitempty"`
	City             string           `json:"city,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Lead is a contact event tied to interest in a specific listing. Immutable
// after creation except for status.
type Lead struct {
	ID            string       `json:"id"`
	CustomerID    string       `json:"customer_id"`
	Source        string       `json:"source"`
	BikeURL       string       `json:"bike_url,omitempty"`
	BikeSnapshot  ItemSnapshot `json:"bike_snapshot"`
	Status        string       `json:"status"`
	ContactMethod string       `json:"contact_method,omitempty"`
	ContactValue  string       `json:"contact_value,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Order is the binding booking record. order_code is the only identifier
// shown to callers; the magic link token is the sole credential for
// unauthenticated status lookup.
type Order struct {
	ID               string         `json:"id"`
	OrderCode        string         `json:"order_code"`
	CustomerID       string         `json:"customer_id"`
	LeadID           string         `json:"lead_id"`
	BikeID           string         `json:"bike_id,omitempty"`
	BikeSnapshot     OrderSnapshot  `json:"bike_snapshot"`
	Status           OrderStatus    `json:"status"`
	MagicLinkToken   string         `json:"magic_link_token"`
	FinalPriceEur    float64        `json:"final_price_eur"`
	TotalPriceRub    int64          `json:"total_price_rub"`
	BookingAmountRub int64          `json:"booking_amount_rub"`
	ExchangeRate     float64        `json:"exchange_rate"`
	DeliveryMethod   string         `json:"delivery_method"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// OrderSnapshot embeds the normalized listing view plus the computed
// financials and booking metadata inside an order row.
type OrderSnapshot struct {
	ItemSnapshot
	Financials  PriceBreakdown `json:"financials"`
	BookingMeta map[string]any `json:"booking_meta,omitempty"`
}

// ItemSnapshot is the canonical normalized view of the item being bought.
// Images and cached images never contain duplicates; the main photo is a
// member of Images whenever Images is non-empty.
type ItemSnapshot struct {
	Title           string   `json:"title,omitempty"`
	Brand           string   `json:"brand,omitempty"`
	Model           string   `json:"model,omitempty"`
	Year            string   `json:"year,omitempty"`
	Size            string   `json:"size,omitempty"`
	Price           float64  `json:"price,omitempty"`
	ListingPriceEur float64  `json:"listing_price_eur,omitempty"`
	MainPhotoURL    string   `json:"main_photo_url,omitempty"`
	Images          []string `json:"images,omitempty"`
	CachedImages    []string `json:"cached_images,omitempty"`
	BikeID          string   `json:"bike_id,omitempty"`
	BikeURL         string   `json:"bike_url,omitempty"`
	ExternalBikeRef string   `json:"external_bike_ref,omitempty"`
}

// PriceBreakdown is the pure value object produced by the price calculator.
// final_price_eur is the exact sum of its EUR components and
// total_price_rub == ceil(final_price_eur * exchange_rate).
type PriceBreakdown struct {
	BikePriceEur         float64 `json:"bike_price_eur"`
	ShippingCostEur      float64 `json:"shipping_cost_eur"`
	InsuranceCostEur     float64 `json:"insurance_cost_eur"`
	PaymentCommissionEur float64 `json:"payment_commission_eur"`
	WarehouseFeeEur      float64 `json:"warehouse_fee_eur"`
	ServiceFeeEur        float64 `json:"service_fee_eur"`
	MarginTotalEur       float64 `json:"margin_total_eur"`
	ExchangeRate         float64 `json:"exchange_rate"`
	FinalPriceEur        float64 `json:"final_price_eur"`
	TotalPriceRub        int64   `json:"total_price_rub"`
	BookingAmountRub     int64   `json:"booking_amount_rub"`
}

// OrderStatusEvent records one status-history row for an order.
type OrderStatusEvent struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"order_id"`
	OldStatus OrderStatus `json:"old_status,omitempty"`
	NewStatus OrderStatus `json:"new_status"`
	Note      string      `json:"change_notes,omitempty"`
	ChangedBy string      `json:"changed_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// SyncOutboxEntry is an append-only record of a mirror write that failed and
// must be retried by the external drain worker.
type SyncOutboxEntry struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Operation  string    `json:"operation"`
	Payload    string    `json:"payload"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	// OutboxOperationUpsert is the only operation the booking engine records.
	OutboxOperationUpsert = "upsert"
	// OutboxStatusPending marks entries awaiting the external drain worker.
	OutboxStatusPending = "pending"
)
