package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/brandkart/brandkart-backend/api/responses"
	cashfreewebhook "github.com/brandkart/brandkart-backend/internal/webhooks/cashfree"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
)

const (
	timestampHeader = "x-webhook-timestamp"
	signatureHeader = "x-webhook-signature"
)

type CashfreeWebhookService interface {
	Process(ctx context.Context, event cashfreewebhook.Event) error
}

// CashfreeWebhook verifies the gateway signature and hands the event to the
// reconciler. Only a failed signature check is rejected; processing failures
// are logged and acked with 200 so the gateway never retries a poison event
// forever. The reconciler releases its dedupe guard on failure, so a later
// redelivery can still be processed.
func CashfreeWebhook(svc CashfreeWebhookService, webhookSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		timestamp := r.Header.Get(timestampHeader)
		signature := r.Header.Get(signatureHeader)
		if err := cashfreewebhook.VerifySignature(webhookSecret, timestamp, payload, signature); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event cashfreewebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			logg.Warn(logg.WithField(ctx, "decode_error", err.Error()), "cashfree webhook: undecodable payload")
			responses.WriteSuccess(w, nil)
			return
		}
		event.Data.Raw = payload

		if err := svc.Process(ctx, event); err != nil {
			logg.Error(ctx, "cashfree webhook: event processing failed", err)
		}

		responses.WriteSuccess(w, nil)
	}
}
