package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

func seedOrders(store *memStore, customerID string, statuses ...domain.OrderStatus) {
	for i, status := range statuses {
		id := string(rune('a'+i)) + "-order"
		store.orders[id] = domain.Order{
			ID:         id,
			CustomerID: customerID,
			Status:     status,
			CreatedAt:  time.Now(),
		}
	}
}

func TestQuotaGuardComplianceBoundaries(t *testing.T) {
	guard, err := NewQuotaGuard(QuotaGuardDeps{Primary: newMemStore("local_primary")})
	if err != nil {
		t.Fatalf("NewQuotaGuard: %v", err)
	}

	cases := []struct {
		price float64
		ok    bool
	}{
		{499.99, false},
		{500, true},
		{5000, true},
		{5000.01, false},
		// Non-positive prices pass here; they are rejected as invalid
		// input, not as a policy violation.
		{0, true},
		{-100, true},
	}
	for _, tc := range cases {
		err := guard.AssertPriceWithinCompliance(tc.price)
		if tc.ok && err != nil {
			t.Fatalf("price %.2f: unexpected error %v", tc.price, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrCompliancePrice) {
				t.Fatalf("price %.2f: expected ErrCompliancePrice, got %v", tc.price, err)
			}
		}
	}
}

func TestQuotaGuardRejectsAtThreeActiveBookings(t *testing.T) {
	primary := newMemStore("local_primary")
	seedOrders(primary, "cust-1",
		domain.StatusBooked,
		domain.StatusSellerCheckInProgress,
		domain.StatusFullPaymentPending,
	)

	guard, err := NewQuotaGuard(QuotaGuardDeps{Primary: primary})
	if err != nil {
		t.Fatalf("NewQuotaGuard: %v", err)
	}

	if err := guard.AssertFreeBookingQuota(context.Background(), "cust-1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestQuotaGuardIgnoresTerminalAndNonCountingOrders(t *testing.T) {
	primary := newMemStore("local_primary")
	seedOrders(primary, "cust-1",
		domain.StatusBooked,
		domain.StatusCheckReady,
		domain.StatusDelivered,
		domain.StatusCancelled,
		domain.StatusUnderInspection, // active but not quota-counting
	)

	guard, err := NewQuotaGuard(QuotaGuardDeps{Primary: primary})
	if err != nil {
		t.Fatalf("NewQuotaGuard: %v", err)
	}

	if err := guard.AssertFreeBookingQuota(context.Background(), "cust-1"); err != nil {
		t.Fatalf("expected quota pass with 2 counting orders, got %v", err)
	}
}

func TestQuotaGuardNormalizesLegacyStatuses(t *testing.T) {
	primary := newMemStore("local_primary")
	seedOrders(primary, "cust-1",
		domain.OrderStatus("deposit_paid"),
		domain.OrderStatus("hunting"),
		domain.OrderStatus("awaiting_payment"),
	)

	guard, err := NewQuotaGuard(QuotaGuardDeps{Primary: primary})
	if err != nil {
		t.Fatalf("NewQuotaGuard: %v", err)
	}

	if err := guard.AssertFreeBookingQuota(context.Background(), "cust-1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("legacy statuses should count toward quota, got %v", err)
	}
}

func TestQuotaGuardFallsBackToSecondaryRead(t *testing.T) {
	primary := newMemStore("local_primary")
	primary.failOrderList = errors.New("connection refused")

	secondary := newMemStore("supabase")
	seedOrders(secondary, "cust-1",
		domain.StatusBooked,
		domain.StatusBooked,
		domain.StatusBooked,
	)

	guard, err := NewQuotaGuard(QuotaGuardDeps{
		Primary:   primary,
		Secondary: secondary,
		Logger:    discardLogger,
	})
	if err != nil {
		t.Fatalf("NewQuotaGuard: %v", err)
	}

	if err := guard.AssertFreeBookingQuota(context.Background(), "cust-1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota decision from secondary store, got %v", err)
	}
}

func TestQuotaGuardSurfacesErrorWithoutSecondary(t *testing.T) {
	primary := newMemStore("local_primary")
	primary.failOrderList = errors.New("connection refused")

	guard, err := NewQuotaGuard(QuotaGuardDeps{Primary: primary})
	if err != nil {
		t.Fatalf("NewQuotaGuard: %v", err)
	}

	if err := guard.AssertFreeBookingQuota(context.Background(), "cust-1"); err == nil {
		t.Fatal("expected primary read error to surface")
	}
}
