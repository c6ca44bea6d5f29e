package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
	"github.com/g1nlyf/BikeWerk-sub001/internal/services"
)

type stubOrderService struct {
	order     domain.Order
	trackErr  error
	transErr  error
	lastToken string
	lastCmd   services.StatusTransitionCommand
}

func (s *stubOrderService) TrackByToken(_ context.Context, token string) (domain.Order, error) {
	s.lastToken = token
	if s.trackErr != nil {
		return domain.Order{}, s.trackErr
	}
	return s.order, nil
}

func (s *stubOrderService) TransitionStatus(_ context.Context, cmd services.StatusTransitionCommand) (domain.Order, error) {
	s.lastCmd = cmd
	if s.transErr != nil {
		return domain.Order{}, s.transErr
	}
	return s.order, nil
}

func newOrderRouter(svc services.OrderService) http.Handler {
	return NewRouter(WithOrderRoutes(NewOrderHandlers(svc).Routes))
}

func trackedOrder() domain.Order {
	created := time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	order := domain.Order{
		ID:               "order-1",
		OrderCode:        "ORD-654321",
		CustomerID:       "cust-1",
		Status:           domain.StatusBooked,
		MagicLinkToken:   "tok-abc",
		FinalPriceEur:    2988.2,
		TotalPriceRub:    298820,
		BookingAmountRub: 5977,
		DeliveryMethod:   "cargo",
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	order.BikeSnapshot.Title = "Canyon Ultimate CF SL 8"
	order.BikeSnapshot.MainPhotoURL = "https://img.example.com/bike.jpg"
	return order
}

func TestTrackOrderEndpoint(t *testing.T) {
	svc := &stubOrderService{order: trackedOrder()}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track/tok-abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if svc.lastToken != "tok-abc" {
		t.Fatalf("token: got %q", svc.lastToken)
	}

	var body trackOrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.OrderCode != "ORD-654321" || body.Status != "booked" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if body.BikeTitle != "Canyon Ultimate CF SL 8" || body.BookingAmountRub != 5977 {
		t.Fatalf("unexpected response: %+v", body)
	}
	if strings.Contains(rr.Body.String(), "order-1") || strings.Contains(rr.Body.String(), "cust-1") {
		t.Fatalf("internal ids leaked: %s", rr.Body.String())
	}
}

func TestTrackOrderNotFound(t *testing.T) {
	svc := &stubOrderService{trackErr: repositories.NewStoreError("postgres", "orders", repositories.KindNotFound, errors.New("no rows"))}
	router := newOrderRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track/bogus", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rr.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.Error != "order_not_found" {
		t.Fatalf("error code: got %q", body.Error)
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	order := trackedOrder()
	order.Status = domain.StatusUnderInspection
	svc := &stubOrderService{order: order}
	router := newOrderRouter(svc)

	payload := `{"status": "under_inspection", "note": "frame checked", "changed_by": "manager:lena"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ORD-654321/status", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if svc.lastCmd.OrderCode != "ORD-654321" || svc.lastCmd.NewStatus != "under_inspection" {
		t.Fatalf("command: %+v", svc.lastCmd)
	}
	if svc.lastCmd.Note != "frame checked" || svc.lastCmd.ChangedBy != "manager:lena" {
		t.Fatalf("command: %+v", svc.lastCmd)
	}

	var body updateStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !body.Success || body.Status != "under_inspection" {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestUpdateStatusRejectsBadJSON(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ORD-654321/status", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
}

func TestUpdateStatusErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "unknown status",
			err:    services.ErrUnknownOrderStatus,
			status: http.StatusBadRequest,
			code:   "unknown_status",
		},
		{
			name:   "terminal status",
			err:    services.ErrTerminalOrderStatus,
			status: http.StatusConflict,
			code:   "terminal_status",
		},
		{
			name:   "missing order",
			err:    repositories.NewStoreError("postgres", "orders", repositories.KindNotFound, errors.New("no rows")),
			status: http.StatusNotFound,
			code:   "order_not_found",
		},
		{
			name:   "store down",
			err:    repositories.NewStoreError("postgres", "orders", repositories.KindUnavailable, errors.New("dial timeout")),
			status: http.StatusServiceUnavailable,
			code:   "store_unavailable",
		},
		{
			name:   "unexpected failure",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newOrderRouter(&stubOrderService{transErr: tc.err})

			payload := `{"status": "under_inspection"}`
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ORD-654321/status", strings.NewReader(payload))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("status: got %d, want %d", rr.Code, tc.status)
			}
			var body struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if body.Success || body.Error != tc.code {
				t.Fatalf("error envelope: %s", rr.Body.String())
			}
		})
	}
}

func TestOrderRoutesWithoutService(t *testing.T) {
	router := newOrderRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/track/tok-abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d", rr.Code)
	}
}
