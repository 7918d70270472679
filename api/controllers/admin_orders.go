package controllers

import (
	"net/http"

	"github.com/brandkart/brandkart-backend/api/responses"
	ordersvc "github.com/brandkart/brandkart-backend/internal/orders"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
)

// MarkOrderDelivered moves a paid order to delivered. Fulfilment ops call
// this once the courier confirms the handover.
func MarkOrderDelivered(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.MarkDelivered(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
