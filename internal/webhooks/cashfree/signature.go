package cashfreewebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
)

// VerifySignature checks the Cashfree webhook signature: base64 of an
// HMAC-SHA256 over timestamp concatenated with the raw request body.
func VerifySignature(secret, timestamp string, body []byte, signature string) error {
	if strings.TrimSpace(secret) == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}
	if strings.TrimSpace(timestamp) == "" || strings.TrimSpace(signature) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook signature headers")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}

// Sign computes the signature Cashfree would send for the given payload.
// Used by tests and local tooling.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
