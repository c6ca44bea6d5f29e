package services

import (
	"context"
	"time"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

// Type aliases expose domain models to the services package without
// reversing dependency direction.
type (
	Customer         = domain.Customer
	Lead             = domain.Lead
	Order            = domain.Order
	OrderStatus      = domain.OrderStatus
	OrderSnapshot    = domain.OrderSnapshot
	ItemSnapshot     = domain.ItemSnapshot
	PriceBreakdown   = domain.PriceBreakdown
	OrderStatusEvent = domain.OrderStatusEvent
	SyncOutboxEntry  = domain.SyncOutboxEntry
)

// BookingService turns a booking request into durable Customer/Lead/Order
// records across the primary and secondary stores.
type BookingService interface {
	CreateBooking(ctx context.Context, cmd CreateBookingCommand) (BookingResult, error)
}

// OrderService exposes the read and transition flows for existing orders.
type OrderService interface {
	TrackByToken(ctx context.Context, token string) (Order, error)
	TransitionStatus(ctx context.Context, cmd StatusTransitionCommand) (Order, error)
}

// ExchangeRateSource supplies the current EUR to RUB conversion rate. The
// value may be stale; callers never block on a refresh.
type ExchangeRateSource interface {
	CurrentRate() float64
}

// ListingParser extracts hints from a raw listing snapshot. Both calls are
// best-effort: the booking flow swallows their errors.
type ListingParser interface {
	ParseShippingHint(ctx context.Context, snapshot map[string]any) (ListingHint, error)
	FindListingURL(ctx context.Context, snapshot map[string]any) (string, error)
}

// ListingHint carries fields the parser could recover from a listing.
type ListingHint struct {
	ShippingOption  string
	Title           string
	ListingPriceEur float64
}

// ImageCache re-hosts listing images on durable storage. A failed upload
// leaves the original external URL in place.
type ImageCache interface {
	CacheImages(ctx context.Context, orderCode string, urls []string) []string
}

// OrderEventPublisher dispatches new-order notifications downstream.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// OrderEventMessage is the payload published for each accepted booking.
type OrderEventMessage struct {
	OrderCode        string    `json:"orderCode"`
	OrderID          string    `json:"orderId"`
	CustomerID       string    `json:"customerId"`
	CustomerName     string    `json:"customerName"`
	Status           string    `json:"status"`
	StorageMode      string    `json:"storageMode"`
	BikeTitle        string    `json:"bikeTitle"`
	FinalPriceEur    float64   `json:"finalPriceEur"`
	BookingAmountRub int64     `json:"bookingAmountRub"`
	DeliveryMethod   string    `json:"deliveryMethod"`
	CreatedAt        time.Time `json:"createdAt"`
}
