package types

import "strings"

// CampaignPaymentConfig holds the per-campaign gateway account. Each brand may
// settle through its own Cashfree account, so credentials live on the campaign
// row rather than in process-wide configuration.
type CampaignPaymentConfig struct {
	Gateway       string `json:"gateway"`
	AppID         string `json:"app_id"`
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Complete reports whether the config can authenticate against the gateway.
func (c CampaignPaymentConfig) Complete() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.SecretKey) != ""
}
