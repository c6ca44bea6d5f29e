package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/httpx"
	"github.com/g1nlyf/BikeWerk-sub001/internal/services"
)

const maxBookingBodySize = 256 * 1024

type bookingCustomerRequest struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	PreferredChannel string `json:"preferred_channel"`
	ContactValue     string `json:"contact_value"`
	City             string `json:"city"`
}

type createBookingRequest struct {
	BikeID            string                 `json:"bike_id"`
	BikeURL           string                 `json:"bike_url"`
	Customer          bookingCustomerRequest `json:"customer"`
	BikeDetails       map[string]any         `json:"bike_details"`
	DeliveryMethod    string                 `json:"delivery_method"`
	ShippingTier      string                 `json:"shipping_tier"`
	InsuranceIncluded bool                   `json:"insurance_included"`
	Source            string                 `json:"source"`
	BookingMeta       map[string]any         `json:"booking_meta"`
}

type createBookingResponse struct {
	Success      bool   `json:"success"`
	OrderCode    string `json:"order_code"`
	Status       string `json:"status"`
	StorageMode  string `json:"storage_mode"`
	MagicLinkURL string `json:"magic_link_url"`
}

// BookingHandlers exposes the booking intake endpoint.
type BookingHandlers struct {
	bookings services.BookingService
}

// NewBookingHandlers constructs a new BookingHandlers instance.
func NewBookingHandlers(bookings services.BookingService) *BookingHandlers {
	return &BookingHandlers{bookings: bookings}
}

// Routes registers the /booking endpoints.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createBooking)
}

func (h *BookingHandlers) createBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createBookingRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBookingBodySize))
	if err := decoder.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.bookings.CreateBooking(ctx, services.CreateBookingCommand{
		BikeID:  req.BikeID,
		BikeURL: req.BikeURL,
		Customer: services.CustomerInput{
			FullName:         req.Customer.FullName,
			Email:            req.Customer.Email,
			Phone:            req.Customer.Phone,
			PreferredChannel: req.Customer.PreferredChannel,
			ContactValue:     req.Customer.ContactValue,
			City:             req.Customer.City,
		},
		RawSnapshot:       req.BikeDetails,
		DeliveryMethod:    req.DeliveryMethod,
		ShippingTier:      req.ShippingTier,
		InsuranceIncluded: req.InsuranceIncluded,
		Source:            req.Source,
		BookingMeta:       req.BookingMeta,
	})
	if err != nil {
		writeBookingError(w, r, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, createBookingResponse{
		Success:      true,
		OrderCode:    result.OrderCode,
		Status:       result.Status,
		StorageMode:  result.StorageMode,
		MagicLinkURL: result.MagicLinkURL,
	})
}

// writeBookingError maps the service error taxonomy onto HTTP statuses:
// validation and policy failures are 400-class, dual store failure is the
// only 5xx the booking flow produces on purpose.
func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrBookingMissingContact):
		httpx.WriteError(ctx, w, httpx.NewError("missing_contact", "customer email, phone or contact value is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrBookingMissingDeliveryMethod):
		httpx.WriteError(ctx, w, httpx.NewError("missing_delivery_method", "delivery method is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrBookingInvalidPrice):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_price", "a positive bike price could not be resolved", http.StatusBadRequest))
	case errors.Is(err, services.ErrCompliancePrice):
		httpx.WriteError(ctx, w, httpx.NewError("price_out_of_bounds", "bike price is outside the bookable range", http.StatusBadRequest))
	case errors.Is(err, services.ErrQuotaExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("quota_exceeded", "free booking limit reached for this customer", http.StatusBadRequest))
	case errors.Is(err, services.ErrBookingStoresUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("stores_unavailable", "booking could not be persisted, please retry", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "booking failed", http.StatusInternalServerError))
	}
}
