package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brandkart/brandkart-backend/api/responses"
	"github.com/brandkart/brandkart-backend/api/validators"
	refundsvc "github.com/brandkart/brandkart-backend/internal/refunds"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
)

// InitiateRefund starts a refund against a paid order. Omitting the amount
// refunds whatever balance remains.
func InitiateRefund(svc *refundsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}

		var payload initiateRefundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Initiate(r.Context(), refundsvc.InitiateInput{
			OrderID:     payload.OrderID,
			AmountCents: payload.AmountCents,
			Note:        payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, newRefundResponse(txn))
	}
}

// GetRefundStatus polls the gateway for a refund's outcome and returns the
// reconciled transaction.
func GetRefundStatus(svc *refundsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refundID := chi.URLParam(r, "refundId")
		if refundID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required"))
			return
		}

		txn, err := svc.CheckStatus(r.Context(), orderID, refundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newRefundResponse(txn))
	}
}

type initiateRefundRequest struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"omitempty,gt=0"`
	Note        string    `json:"note,omitempty" validate:"max=500"`
}

type refundResponse struct {
	RefundID    string    `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Status      string    `json:"status"`
	AmountCents int64     `json:"amount_cents"`
	Note        *string   `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newRefundResponse(txn *models.Transaction) refundResponse {
	if txn == nil {
		return refundResponse{}
	}
	resp := refundResponse{
		RefundID:    txn.ID.String(),
		OrderID:     txn.OrderID,
		Status:      txn.Status.String(),
		AmountCents: -txn.AmountCents,
		Note:        txn.Note,
		CreatedAt:   txn.CreatedAt,
	}
	if txn.GatewayRefundID != nil {
		resp.RefundID = *txn.GatewayRefundID
	}
	return resp
}
