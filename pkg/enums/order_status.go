package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order.
//
// Allowed transitions: pending -> {confirmed, paid, failed};
// paid -> {delivered, failed}. Refunds do not introduce a status of their
// own: a refunded order stays `paid` and the refund is visible through the
// order's RefundStatus annotation and its transaction rows.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusFailed    OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPaid,
	OrderStatusDelivered,
	OrderStatusFailed,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from the status.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusConfirmed, OrderStatusDelivered, OrderStatusFailed:
		return true
	default:
		return false
	}
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
