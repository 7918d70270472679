package cashfreewebhook

import (
	"encoding/json"

	"github.com/brandkart/brandkart-backend/pkg/enums"
)

// Event is the decoded gateway notification. Only the fields the reconciler
// acts on are lifted out; the rest of the payload travels as raw JSON for
// logging and forward compatibility.
type Event struct {
	EventID string                 `json:"event_id"`
	Type    enums.WebhookEventType `json:"type"`
	Data    EventData              `json:"data"`
}

// EventData nests the order and payment snapshots Cashfree sends.
type EventData struct {
	Order   EventOrder      `json:"order"`
	Payment EventPayment    `json:"payment"`
	Raw     json.RawMessage `json:"-"`
}

// EventOrder carries the gateway's view of the order.
type EventOrder struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"cf_order_id"`
}

// EventPayment carries the settlement attempt details.
type EventPayment struct {
	GatewayPaymentID string `json:"cf_payment_id"`
	Status           string `json:"payment_status"`
	Message          string `json:"payment_message"`
}
