package enums

// WebhookEventType names the gateway settlement events the reconciler understands.
// Unknown types are acknowledged and ignored.
type WebhookEventType string

const (
	WebhookEventOrderPaid     WebhookEventType = "ORDER_PAID"
	WebhookEventPaymentFailed WebhookEventType = "PAYMENT_FAILED"
	WebhookEventUserDropped   WebhookEventType = "PAYMENT_USER_DROPPED"
)

// String implements fmt.Stringer.
func (w WebhookEventType) String() string {
	return string(w)
}

// IsKnown reports whether the reconciler has a handler for the event type.
func (w WebhookEventType) IsKnown() bool {
	switch w {
	case WebhookEventOrderPaid, WebhookEventPaymentFailed, WebhookEventUserDropped:
		return true
	default:
		return false
	}
}
