package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending                OrderStatus = "pending"
	OrderStatusProcessing             OrderStatus = "processing"
	OrderStatusShipped                OrderStatus = "shipped"
	OrderStatusDelivered              OrderStatus = "delivered"
	OrderStatusCancelled              OrderStatus = "cancelled"
	OrderStatusFailed                 OrderStatus = "failed"
	OrderStatusPendingStockRolledback OrderStatus = "pending_stock_rolledback"
	OrderStatusFailedStockRolledback  OrderStatus = "failed_stock_rolledback"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusFailed,
	OrderStatusPendingStockRolledback,
	OrderStatusFailedStockRolledback,
}

// orderTransitions is the closed transition table. Every transition passes
// through pending; the *_stock_rolledback states are terminal bookkeeping
// written once compensation completes.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusFailed, OrderStatusCancelled, OrderStatusPendingStockRolledback},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusFailed},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusFailed:     {OrderStatusFailedStockRolledback},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0 && s.IsValid()
}

// CanTransition reports whether the move from s to target is legal.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
