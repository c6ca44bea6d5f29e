package domain

import "strings"

// OrderStatus is a canonical order lifecycle status.
type OrderStatus string

const (
	StatusBooked                 OrderStatus = "booked"
	StatusSellerCheckInProgress  OrderStatus = "seller_check_in_progress"
	StatusCheckReady             OrderStatus = "check_ready"
	StatusAwaitingClientDecision OrderStatus = "awaiting_client_decision"
	StatusFullPaymentPending     OrderStatus = "full_payment_pending"
	StatusUnderInspection        OrderStatus = "under_inspection"
	StatusNegotiationFinished    OrderStatus = "negotiation_finished"
	StatusDelivered              OrderStatus = "delivered"
	StatusCancelled              OrderStatus = "cancelled"

	// StatusUnknown is the sentinel returned for inputs that map to no
	// canonical status. It is itself a fixed point of NormalizeStatus.
	StatusUnknown OrderStatus = "unknown"
)

// AllOrderStatuses lists the canonical status set in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	StatusBooked,
	StatusSellerCheckInProgress,
	StatusCheckReady,
	StatusAwaitingClientDecision,
	StatusFullPaymentPending,
	StatusUnderInspection,
	StatusNegotiationFinished,
	StatusDelivered,
	StatusCancelled,
}

// statusAliases maps legacy spellings from older order rows onto the
// canonical set.
var statusAliases = map[string]OrderStatus{
	"new":                     StatusBooked,
	"pending_manager":         StatusBooked,
	"deposit_paid":            StatusBooked,
	"reserve_paid":            StatusBooked,
	"awaiting_deposit":        StatusBooked,
	"reserve_payment_pending": StatusBooked,
	"hunting":                 StatusSellerCheckInProgress,
	"chat_negotiation":        StatusSellerCheckInProgress,
	"quality_confirmed":       StatusCheckReady,
	"quality_degraded":        StatusCheckReady,
	"awaiting_payment":        StatusFullPaymentPending,
	"confirmed":               StatusFullPaymentPending,
	"inspection":              StatusUnderInspection,
	"closed":                  StatusDelivered,
	"refunded":                StatusCancelled,
}

var terminalStatuses = map[OrderStatus]bool{
	StatusDelivered: true,
	StatusCancelled: true,
}

// quotaCountingStatuses marks the statuses that consume a slot of the
// customer's free-booking quota.
var quotaCountingStatuses = map[OrderStatus]bool{
	StatusBooked:                 true,
	StatusSellerCheckInProgress:  true,
	StatusCheckReady:             true,
	StatusAwaitingClientDecision: true,
	StatusFullPaymentPending:     true,
}

var canonicalStatuses = func() map[OrderStatus]bool {
	set := make(map[OrderStatus]bool, len(AllOrderStatuses))
	for _, status := range AllOrderStatuses {
		set[status] = true
	}
	return set
}()

// NormalizeStatus maps any raw status string onto the canonical set or
// StatusUnknown. It is total and idempotent: normalizing an already
// canonical value (or the unknown sentinel) returns it unchanged.
func NormalizeStatus(raw string) OrderStatus {
	value := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == StatusUnknown {
		return StatusUnknown
	}
	if canonicalStatuses[value] {
		return value
	}
	if alias, ok := statusAliases[string(value)]; ok {
		return alias
	}
	return StatusUnknown
}

// IsTerminalStatus reports whether the status permits no further transition.
func IsTerminalStatus(status OrderStatus) bool {
	return terminalStatuses[NormalizeStatus(string(status))]
}

// CountsTowardFreeBookingQuota reports whether an order in the given status
// consumes one of the customer's free-booking slots.
func CountsTowardFreeBookingQuota(status OrderStatus) bool {
	normalized := NormalizeStatus(string(status))
	return quotaCountingStatuses[normalized] && !terminalStatuses[normalized]
}

// IsCanonicalStatus reports whether the value is a member of the canonical
// status set (the unknown sentinel is not).
func IsCanonicalStatus(status OrderStatus) bool {
	return canonicalStatuses[status]
}
