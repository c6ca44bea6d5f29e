package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
)

var (
	// ErrCompliancePrice is returned when a bike price falls outside the
	// allowed booking band.
	ErrCompliancePrice = errors.New("quota guard: bike price outside compliance bounds")
	// ErrQuotaExceeded is returned when a customer already holds the maximum
	// number of active free bookings.
	ErrQuotaExceeded = errors.New("quota guard: free booking quota exceeded")
)

const (
	compliancePriceMinEur = 500.0
	compliancePriceMaxEur = 5000.0

	maxActiveFreeBookings = 3
)

// QuotaGuard enforces the two hard business policies of the intake flow:
// the bookable price band and the per-customer cap on concurrent free
// bookings. The quota count reads the primary store and falls back to the
// secondary only when the primary read fails.
type QuotaGuard struct {
	primary   repositories.Store
	secondary repositories.Store
	logger    func(context.Context, string, map[string]any)
}

// QuotaGuardDeps bundles the guard's dependencies.
type QuotaGuardDeps struct {
	Primary   repositories.Store
	Secondary repositories.Store
	Logger    func(context.Context, string, map[string]any)
}

// NewQuotaGuard validates dependencies and builds the guard. Secondary is
// optional.
func NewQuotaGuard(deps QuotaGuardDeps) (*QuotaGuard, error) {
	if deps.Primary == nil {
		return nil, errors.New("quota guard: primary store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &QuotaGuard{
		primary:   deps.Primary,
		secondary: deps.Secondary,
		logger:    logger,
	}, nil
}

// AssertPriceWithinCompliance rejects prices outside [500, 5000] EUR. A
// non-positive price passes here; rejecting an unpriced or nonsense
// booking is a validation concern, not a policy one.
func (g *QuotaGuard) AssertPriceWithinCompliance(priceEur float64) error {
	if priceEur <= 0 {
		return nil
	}
	if priceEur < compliancePriceMinEur || priceEur > compliancePriceMaxEur {
		return fmt.Errorf("%w: %.2f EUR not in [%.0f, %.0f]", ErrCompliancePrice, priceEur, compliancePriceMinEur, compliancePriceMaxEur)
	}
	return nil
}

// AssertFreeBookingQuota counts the customer's existing orders whose
// normalized status is quota-counting and non-terminal. The count is
// best-effort under concurrency: two simultaneous bookings may both pass.
func (g *QuotaGuard) AssertFreeBookingQuota(ctx context.Context, customerID string) error {
	statuses, err := g.primary.Orders().ListStatusesByCustomer(ctx, customerID)
	if err != nil {
		if g.secondary == nil {
			return err
		}
		g.logger(ctx, "quota_guard.primary_read_failed", map[string]any{
			"customer_id": customerID,
			"error":       err.Error(),
		})
		statuses, err = g.secondary.Orders().ListStatusesByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
	}

	active := 0
	for _, raw := range statuses {
		status := domain.NormalizeStatus(raw)
		if domain.IsTerminalStatus(status) {
			continue
		}
		if domain.CountsTowardFreeBookingQuota(status) {
			active++
		}
	}
	if active >= maxActiveFreeBookings {
		return fmt.Errorf("%w: %d active bookings", ErrQuotaExceeded, active)
	}
	return nil
}
