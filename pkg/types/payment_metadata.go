package types

import "encoding/json"

// PaymentMetadataVersion is stamped on every metadata blob this build writes.
const PaymentMetadataVersion = 1

// PaymentMetadata is the typed view of the gateway-specific identifiers stored
// on orders and transactions. Gateways add fields over time, so any key this
// build does not understand round-trips untouched through Extra instead of
// being dropped.
type PaymentMetadata struct {
	Version        int    `json:"-"`
	Gateway        string `json:"-"`
	SessionID      string `json:"-"`
	GatewayOrderID string `json:"-"`
	OrderToken     string `json:"-"`
	CheckoutURL    string `json:"-"`
	RefundID       string `json:"-"`
	RefundState    string `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

const (
	metaKeyVersion        = "version"
	metaKeyGateway        = "gateway"
	metaKeySessionID      = "session_id"
	metaKeyGatewayOrderID = "gateway_order_id"
	metaKeyOrderToken     = "order_token"
	metaKeyCheckoutURL    = "checkout_url"
	metaKeyRefundID       = "refund_id"
	metaKeyRefundState    = "refund_state"
)

// MarshalJSON emits the known fields and re-attaches any preserved extras.
func (m PaymentMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}

	version := m.Version
	if version == 0 {
		version = PaymentMetadataVersion
	}
	setJSON(out, metaKeyVersion, version)
	setStringJSON(out, metaKeyGateway, m.Gateway)
	setStringJSON(out, metaKeySessionID, m.SessionID)
	setStringJSON(out, metaKeyGatewayOrderID, m.GatewayOrderID)
	setStringJSON(out, metaKeyOrderToken, m.OrderToken)
	setStringJSON(out, metaKeyCheckoutURL, m.CheckoutURL)
	setStringJSON(out, metaKeyRefundID, m.RefundID)
	setStringJSON(out, metaKeyRefundState, m.RefundState)

	return json.Marshal(out)
}

// UnmarshalJSON lifts the known keys into typed fields and keeps the remainder.
func (m *PaymentMetadata) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw[metaKeyVersion]; ok {
		_ = json.Unmarshal(v, &m.Version)
		delete(raw, metaKeyVersion)
	}
	m.Gateway = takeString(raw, metaKeyGateway)
	m.SessionID = takeString(raw, metaKeySessionID)
	m.GatewayOrderID = takeString(raw, metaKeyGatewayOrderID)
	m.OrderToken = takeString(raw, metaKeyOrderToken)
	m.CheckoutURL = takeString(raw, metaKeyCheckoutURL)
	m.RefundID = takeString(raw, metaKeyRefundID)
	m.RefundState = takeString(raw, metaKeyRefundState)

	if len(raw) > 0 {
		m.Extra = raw
	} else {
		m.Extra = nil
	}
	return nil
}

func takeString(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		// Non-string payload under a known key stays in Extra untouched.
		return ""
	}
	delete(raw, key)
	return s
}

func setJSON(out map[string]json.RawMessage, key string, value any) {
	if encoded, err := json.Marshal(value); err == nil {
		out[key] = encoded
	}
}

func setStringJSON(out map[string]json.RawMessage, key, value string) {
	if value == "" {
		return
	}
	setJSON(out, key, value)
}
