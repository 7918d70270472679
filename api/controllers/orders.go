package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brandkart/brandkart-backend/api/middleware"
	"github.com/brandkart/brandkart-backend/api/responses"
	"github.com/brandkart/brandkart-backend/api/validators"
	ordersvc "github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/internal/pricing"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/brandkart/brandkart-backend/pkg/pagination"
	"github.com/brandkart/brandkart-backend/pkg/types"
)

// CreateOrder runs the checkout pipeline for the authenticated buyer.
func CreateOrder(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ordersvc.CreateOrderInput{
			BuyerID:         buyerID,
			CampaignID:      payload.CampaignID,
			ProductID:       payload.ProductID,
			VariantID:       payload.VariantID,
			Qty:             payload.Qty,
			CouponCode:      payload.CouponCode,
			ContactName:     payload.ContactName,
			ContactPhone:    payload.ContactPhone,
			ShippingAddress: payload.ShippingAddress,
		}
		if payload.Totals != nil {
			input.ClientTotals = &pricing.ClientTotals{
				SubtotalCents: payload.Totals.SubtotalCents,
				ShippingCents: payload.Totals.ShippingCents,
				DiscountCents: payload.Totals.DiscountCents,
				TotalCents:    payload.Totals.TotalCents,
			}
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCreateOrderResponse(result))
	}
}

// GetOrder returns one of the buyer's orders with its shipping snapshot and
// transaction ledger.
func GetOrder(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// ListOrders returns the buyer's orders newest first with a cursor for the
// next page.
func ListOrders(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, nextCursor, err := svc.List(r.Context(), buyerID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, 0, len(orders))
		for i := range orders {
			items = append(items, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, orderListResponse{Orders: items, NextCursor: nextCursor})
	}
}

func buyerIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.BuyerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer context missing")
	}
	buyerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid buyer context")
	}
	return buyerID, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	value, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid path parameter").
			WithDetails(map[string]any{"param": param})
	}
	return value, nil
}

type createOrderRequest struct {
	CampaignID      uuid.UUID              `json:"campaign_id" validate:"required"`
	ProductID       uuid.UUID              `json:"product_id"`
	VariantID       uuid.UUID              `json:"variant_id" validate:"required"`
	Qty             int                    `json:"qty" validate:"required,gt=0"`
	CouponCode      string                 `json:"coupon_code,omitempty"`
	ContactName     string                 `json:"contact_name,omitempty"`
	ContactPhone    string                 `json:"contact_phone,omitempty"`
	ShippingAddress *types.ShippingAddress `json:"shipping_address,omitempty"`
	Totals          *clientTotalsRequest   `json:"totals,omitempty"`
}

type clientTotalsRequest struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
}

type createOrderResponse struct {
	Order            orderResponse `json:"order"`
	RequiresPayment  bool          `json:"requires_payment"`
	PaymentSessionID string        `json:"payment_session_id,omitempty"`
	CheckoutURL      string        `json:"checkout_url,omitempty"`
}

type orderResponse struct {
	OrderID           uuid.UUID             `json:"order_id"`
	CampaignID        uuid.UUID             `json:"campaign_id"`
	ProductID         uuid.UUID             `json:"product_id"`
	VariantID         uuid.UUID             `json:"variant_id"`
	Qty               int                   `json:"qty"`
	SubtotalCents     int64                 `json:"subtotal_cents"`
	ShippingCents     int64                 `json:"shipping_cents"`
	DiscountCents     int64                 `json:"discount_cents"`
	TotalCents        int64                 `json:"total_cents"`
	Status            string                `json:"status"`
	RefundStatus      string                `json:"refund_status"`
	FailureReason     *string               `json:"failure_reason,omitempty"`
	ReservationExpiry *time.Time            `json:"reservation_expiry,omitempty"`
	ShippingDetail    *shippingResponse     `json:"shipping_detail,omitempty"`
	Transactions      []transactionResponse `json:"transactions,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

type shippingResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

type transactionResponse struct {
	TransactionID   uuid.UUID `json:"transaction_id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	AmountCents     int64     `json:"amount_cents"`
	GatewayRefundID *string   `json:"gateway_refund_id,omitempty"`
	Note            *string   `json:"note,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func newCreateOrderResponse(result *ordersvc.CreateOrderResult) createOrderResponse {
	if result == nil {
		return createOrderResponse{}
	}
	return createOrderResponse{
		Order:            newOrderResponse(result.Order),
		RequiresPayment:  result.RequiresPayment,
		PaymentSessionID: result.PaymentSessionID,
		CheckoutURL:      result.CheckoutURL,
	}
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	resp := orderResponse{
		OrderID:           order.ID,
		CampaignID:        order.CampaignID,
		ProductID:         order.ProductID,
		VariantID:         order.VariantID,
		Qty:               order.Qty,
		SubtotalCents:     order.SubtotalCents,
		ShippingCents:     order.ShippingCents,
		DiscountCents:     order.DiscountCents,
		TotalCents:        order.TotalCents,
		Status:            order.Status.String(),
		RefundStatus:      order.RefundStatus.String(),
		FailureReason:     order.FailureReason,
		ReservationExpiry: order.ReservationExpiry,
		CreatedAt:         order.CreatedAt,
	}
	if order.ShippingDetail != nil {
		resp.ShippingDetail = &shippingResponse{
			Name:    order.ShippingDetail.Name,
			Address: order.ShippingDetail.Address,
			City:    order.ShippingDetail.City,
			Pincode: order.ShippingDetail.Pincode,
			Country: order.ShippingDetail.Country,
			Phone:   order.ShippingDetail.Phone,
		}
	}
	for _, txn := range order.Transactions {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			TransactionID:   txn.ID,
			Type:            txn.Type.String(),
			Status:          txn.Status.String(),
			AmountCents:     txn.AmountCents,
			GatewayRefundID: txn.GatewayRefundID,
			Note:            txn.Note,
			CreatedAt:       txn.CreatedAt,
		})
	}
	return resp
}
