package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/httpx"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
	"github.com/g1nlyf/BikeWerk-sub001/internal/services"
)

const maxStatusBodySize = 16 * 1024

type trackOrderResponse struct {
	OrderCode        string    `json:"order_code"`
	Status           string    `json:"status"`
	DeliveryMethod   string    `json:"delivery_method"`
	FinalPriceEur    float64   `json:"final_price_eur"`
	TotalPriceRub    int64     `json:"total_price_rub"`
	BookingAmountRub int64     `json:"booking_amount_rub"`
	BikeTitle        string    `json:"bike_title"`
	BikePhotoURL     string    `json:"bike_photo_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type updateStatusRequest struct {
	Status    string `json:"status"`
	Note      string `json:"note"`
	ChangedBy string `json:"changed_by"`
}

type updateStatusResponse struct {
	Success   bool   `json:"success"`
	OrderCode string `json:"order_code"`
	Status    string `json:"status"`
}

// OrderHandlers exposes the order tracking and transition endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/track/{token}", h.trackOrder)
	r.Patch("/{orderCode}/status", h.updateStatus)
}

// trackOrder serves the unauthenticated magic-link lookup. The token is the
// sole credential; the response never exposes internal row ids.
func (h *OrderHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.TrackByToken(ctx, chi.URLParam(r, "token"))
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, toTrackResponse(order))
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateStatusRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStatusBodySize))
	if err := decoder.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.StatusTransitionCommand{
		OrderCode: chi.URLParam(r, "orderCode"),
		NewStatus: req.Status,
		Note:      req.Note,
		ChangedBy: req.ChangedBy,
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, updateStatusResponse{
		Success:   true,
		OrderCode: order.OrderCode,
		Status:    string(order.Status),
	})
}

func toTrackResponse(order domain.Order) trackOrderResponse {
	return trackOrderResponse{
		OrderCode:        order.OrderCode,
		Status:           string(order.Status),
		DeliveryMethod:   order.DeliveryMethod,
		FinalPriceEur:    order.FinalPriceEur,
		TotalPriceRub:    order.TotalPriceRub,
		BookingAmountRub: order.BookingAmountRub,
		BikeTitle:        order.BikeSnapshot.Title,
		BikePhotoURL:     order.BikeSnapshot.MainPhotoURL,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrUnknownOrderStatus):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_status", "status is not part of the order lifecycle", http.StatusBadRequest))
	case errors.Is(err, services.ErrTerminalOrderStatus):
		httpx.WriteError(ctx, w, httpx.NewError("terminal_status", "order already reached a terminal status", http.StatusConflict))
	case repositories.IsNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case repositories.IsUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "order store unavailable, please retry", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "order lookup failed", http.StatusInternalServerError))
	}
}
