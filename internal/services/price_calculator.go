package services

import (
	"math"
	"strings"
)

// Shipping tiers accepted by the price calculator.
const (
	ShippingTierCargo   = "cargo"
	ShippingTierEMS     = "ems"
	ShippingTierPremium = "premium"
)

const (
	shippingCostCargo   = 170.0
	shippingCostEMS     = 220.0
	shippingCostPremium = 650.0

	transferFeeRate  = 0.07
	warehouseFeeEur  = 80.0
	insuranceRate    = 0.04
	bookingShareRate = 0.02
)

// PriceCalculator derives a binding price breakdown from a raw item price
// and a shipping/insurance configuration. It is pure: no state, no I/O, and
// it never fails; invalid input degrades to documented defaults.
type PriceCalculator struct{}

// NewPriceCalculator returns the stateless calculator.
func NewPriceCalculator() *PriceCalculator {
	return &PriceCalculator{}
}

// Calculate computes the full breakdown. A non-positive price yields a
// zero-valued breakdown; rejecting it is the caller's job. An unknown
// shipping tier falls back to Cargo rates.
func (c *PriceCalculator) Calculate(itemPriceEur float64, shippingTier string, insuranceIncluded bool, exchangeRate float64) PriceBreakdown {
	if itemPriceEur <= 0 {
		return PriceBreakdown{ExchangeRate: exchangeRate}
	}

	shipping := shippingCost(shippingTier)
	margin := agentMargin(itemPriceEur)
	transfer := (itemPriceEur + shipping) * transferFeeRate
	service := math.Max(0, margin-warehouseFeeEur)

	insurance := 0.0
	if insuranceIncluded {
		insurance = itemPriceEur * insuranceRate
	}

	// Sum first, then round every EUR field to two decimals for reporting.
	// The sum invariant therefore holds only within rounding tolerance.
	final := round2(itemPriceEur + shipping + insurance + transfer + warehouseFeeEur + service)
	totalRub := int64(math.Ceil(final * exchangeRate))
	bookingRub := int64(math.Ceil(float64(totalRub) * bookingShareRate))

	service = round2(service)
	return PriceBreakdown{
		BikePriceEur:         round2(itemPriceEur),
		ShippingCostEur:      shipping,
		InsuranceCostEur:     round2(insurance),
		PaymentCommissionEur: round2(transfer),
		WarehouseFeeEur:      warehouseFeeEur,
		ServiceFeeEur:        service,
		MarginTotalEur:       warehouseFeeEur + service,
		ExchangeRate:         exchangeRate,
		FinalPriceEur:        final,
		TotalPriceRub:        totalRub,
		BookingAmountRub:     bookingRub,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func shippingCost(tier string) float64 {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case ShippingTierEMS:
		return shippingCostEMS
	case ShippingTierPremium:
		return shippingCostPremium
	default:
		return shippingCostCargo
	}
}

func agentMargin(priceEur float64) float64 {
	switch {
	case priceEur < 1500:
		return 250
	case priceEur < 3500:
		return 400
	case priceEur < 6000:
		return 600
	default:
		return priceEur * 0.10
	}
}
