package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/brandkart/brandkart-backend/internal/catalog"
	"github.com/brandkart/brandkart-backend/internal/pricing"
	"github.com/brandkart/brandkart-backend/pkg/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/brandkart/brandkart-backend/pkg/pagination"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServiceParams configure the order lifecycle service.
type ServiceParams struct {
	DB             TxRunner
	Repo           Repository
	Catalog        catalog.Repository
	Inventory      InventoryLedger
	Pricer         Pricer
	Coupons        CouponLedger
	Gateway        Gateway
	Logger         *logger.Logger
	ReservationTTL time.Duration
	WebhookURL     string
}

// Service owns order creation and every status transition. There is one
// checkout pipeline regardless of price, coupon or product kind; zero-total
// orders simply skip the gateway leg of it.
type Service struct {
	db             TxRunner
	repo           Repository
	catalog        catalog.Repository
	inventory      InventoryLedger
	pricer         Pricer
	coupons        CouponLedger
	gateway        Gateway
	logg           *logger.Logger
	reservationTTL time.Duration
	webhookURL     string
	now            func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.ReservationTTL
	if ttl <= 0 {
		ttl = 90 * time.Minute
	}
	return &Service{
		db:             params.DB,
		repo:           params.Repo,
		catalog:        params.Catalog,
		inventory:      params.Inventory,
		pricer:         params.Pricer,
		coupons:        params.Coupons,
		gateway:        params.Gateway,
		logg:           params.Logger,
		reservationTTL: ttl,
		webhookURL:     params.WebhookURL,
		now:            time.Now,
	}, nil
}

// Create runs the checkout pipeline: validate the catalog references, plan a
// reservation, price the order, cross-check the client's figures, then
// reserve stock and persist the order in one transaction. The gateway call
// happens inside that transaction so a session failure rolls the reservation
// back instead of leaking held stock.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	campaign, product, variant, err := s.loadCatalog(ctx, input)
	if err != nil {
		return nil, err
	}

	preferPincode := ""
	if input.ShippingAddress != nil {
		preferPincode = input.ShippingAddress.Pincode
	}
	plan, err := s.inventory.PlanReservation(ctx, variant.ID, input.Qty, preferPincode)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricer.Quote(ctx, pricing.QuoteInput{
		Variant:       variant,
		Product:       product,
		BuyerID:       input.BuyerID,
		Qty:           input.Qty,
		CouponCode:    input.CouponCode,
		OriginPincode: plan.Pincode,
		ShippingAddr:  input.ShippingAddress,
	})
	if err != nil {
		return nil, err
	}
	if input.ClientTotals != nil {
		if err := s.pricer.CrossCheck(quote, *input.ClientTotals); err != nil {
			return nil, err
		}
	}

	expiry := s.now().UTC().Add(s.reservationTTL)
	order := &models.Order{
		ID:                uuid.New(),
		BuyerID:           input.BuyerID,
		CampaignID:        campaign.ID,
		ProductID:         product.ID,
		VariantID:         variant.ID,
		Qty:               input.Qty,
		SubtotalCents:     quote.SubtotalCents,
		ShippingCents:     quote.ShippingCents,
		DiscountCents:     quote.DiscountCents,
		TotalCents:        quote.TotalCents,
		Status:            enums.OrderStatusPending,
		RefundStatus:      enums.RefundStatusNone,
		PaymentMethod:     enums.PaymentMethodCashfree,
		CouponID:          quote.CouponID,
		InventoryRecordID: &plan.RecordID,
		LocationID:        &plan.LocationID,
		ReservationExpiry: &expiry,
	}

	result := &CreateOrderResult{Order: order}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.inventory.Reserve(ctx, tx, plan.RecordID, input.Qty); err != nil {
			return err
		}
		if quote.CouponID != nil {
			if err := s.coupons.CheckLimitsInTx(ctx, tx, *quote.CouponID, input.BuyerID); err != nil {
				return err
			}
		}
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if product.Kind.RequiresShipping() {
			detail := shippingDetailFromAddress(order.ID, *input.ShippingAddress)
			if err := repo.CreateShippingDetail(ctx, detail); err != nil {
				return fmt.Errorf("create shipping detail: %w", err)
			}
			order.ShippingDetail = detail
		}

		if quote.TotalCents == 0 {
			return s.settleZeroTotal(ctx, tx, repo, order, product.Kind)
		}
		return s.openPaymentSession(ctx, repo, order, campaign, input, result)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "status", order.Status.String()), "order created")
	return result, nil
}

func (s *Service) loadCatalog(ctx context.Context, input CreateOrderInput) (*models.Campaign, *models.Product, *models.ProductVariant, error) {
	if input.Qty <= 0 {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	campaign, err := s.catalog.FindCampaign(ctx, input.CampaignID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !campaign.Status.AcceptsOrders() {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "campaign is not accepting orders")
	}

	variant, err := s.catalog.FindVariant(ctx, input.VariantID)
	if err != nil {
		return nil, nil, nil, err
	}
	product, err := s.catalog.FindProduct(ctx, variant.ProductID)
	if err != nil {
		return nil, nil, nil, err
	}
	if input.ProductID != uuid.Nil && input.ProductID != product.ID {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to the given product")
	}
	if product.CampaignID != campaign.ID {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product does not belong to the given campaign")
	}
	return campaign, product, variant, nil
}

// settleZeroTotal completes a fully-discounted order without touching the
// gateway: the reservation converts straight into a sale and the order lands
// in its terminal fulfillment state.
func (s *Service) settleZeroTotal(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, kind enums.ProductKind) error {
	if err := s.inventory.Commit(ctx, tx, *order.InventoryRecordID, order.Qty); err != nil {
		return err
	}
	if order.CouponID != nil {
		if err := s.coupons.RecordRedemptionInTx(ctx, tx, *order.CouponID, order.BuyerID, order.ID); err != nil {
			return err
		}
	}
	status := enums.OrderStatusConfirmed
	if !kind.RequiresShipping() {
		status = enums.OrderStatusDelivered
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":             status,
		"reservation_expiry": nil,
	}); err != nil {
		return fmt.Errorf("finalize zero-total order: %w", err)
	}
	order.Status = status
	order.ReservationExpiry = nil
	return nil
}

func (s *Service) openPaymentSession(ctx context.Context, repo Repository, order *models.Order, campaign *models.Campaign, input CreateOrderInput, result *CreateOrderResult) error {
	if campaign.PaymentConfig == nil || !campaign.PaymentConfig.Complete() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "campaign has no payment gateway configured")
	}

	session, err := s.gateway.CreateSession(ctx, *campaign.PaymentConfig, cashfree.CreateSessionRequest{
		OrderID:       order.ID.String(),
		AmountCents:   order.TotalCents,
		CustomerID:    order.BuyerID.String(),
		CustomerName:  input.ContactName,
		CustomerPhone: input.ContactPhone,
		NotifyURL:     s.webhookURL,
	})
	if err != nil {
		return err
	}

	meta := &types.PaymentMetadata{
		Version:        types.PaymentMetadataVersion,
		Gateway:        enums.PaymentMethodCashfree.String(),
		SessionID:      session.SessionID,
		GatewayOrderID: session.GatewayOrderID,
		CheckoutURL:    session.CheckoutURL,
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"payment_details": meta}); err != nil {
		return fmt.Errorf("store payment session: %w", err)
	}
	order.PaymentDetails = meta

	result.RequiresPayment = true
	result.PaymentSessionID = session.SessionID
	result.CheckoutURL = session.CheckoutURL
	return nil
}

// Get returns a buyer's order with its shipping and transaction children.
func (s *Service) Get(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	return s.repo.FindOrderForBuyer(ctx, orderID, buyerID)
}

// List returns a cursor-paginated page of the buyer's orders, newest first.
func (s *Service) List(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return s.repo.ListOrdersForBuyer(ctx, buyerID, params)
}

// SettleInTx applies a successful payment to a pending order inside the
// caller's transaction: commit the reservation, move the order to paid and
// append the success charge. Re-settling an already-paid order is a no-op so
// webhook replays stay harmless.
func (s *Service) SettleInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, ref PaymentRef) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusPaid || order.Status == enums.OrderStatusDelivered {
		return nil
	}
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot settle order in status %s", order.Status)).
			WithDetails(map[string]any{"order_id": orderID, "status": order.Status.String()})
	}
	if order.InventoryRecordID == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "pending order has no reservation to commit")
	}

	if err := s.inventory.Commit(ctx, tx, *order.InventoryRecordID, order.Qty); err != nil {
		return err
	}
	if order.CouponID != nil {
		if err := s.coupons.RecordRedemptionInTx(ctx, tx, *order.CouponID, order.BuyerID, order.ID); err != nil {
			return err
		}
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":             enums.OrderStatusPaid,
		"reservation_expiry": nil,
	}); err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	txn := &models.Transaction{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Type:        enums.TransactionTypeCharge,
		Status:      enums.TransactionStatusSuccess,
		AmountCents: order.TotalCents,
	}
	if ref.GatewayPaymentID != "" {
		txn.GatewayPaymentID = &ref.GatewayPaymentID
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return fmt.Errorf("record charge: %w", err)
	}
	return nil
}

// FailInTx moves a pending order to failed inside the caller's transaction,
// releasing its reservation and appending the failed charge for the audit
// trail. Already-failed orders are a no-op.
func (s *Service) FailInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == enums.OrderStatusFailed {
		return nil
	}
	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot fail order in status %s", order.Status)).
			WithDetails(map[string]any{"order_id": orderID, "status": order.Status.String()})
	}

	if order.Status == enums.OrderStatusPending && order.InventoryRecordID != nil {
		if err := s.inventory.Release(ctx, tx, *order.InventoryRecordID, order.Qty); err != nil {
			return err
		}
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status":             enums.OrderStatusFailed,
		"reservation_expiry": nil,
		"failure_reason":     reason,
	}); err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}

	txn := &models.Transaction{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Type:        enums.TransactionTypeCharge,
		Status:      enums.TransactionStatusFailed,
		AmountCents: order.TotalCents,
	}
	if reason != "" {
		txn.Note = &reason
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return fmt.Errorf("record failed charge: %w", err)
	}
	return nil
}

// MarkDelivered moves a paid order to delivered.
func (s *Service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var updated *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusDelivered {
			updated = order
			return nil
		}
		if order.Status != enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot deliver order in status %s", order.Status)).
				WithDetails(map[string]any{"order_id": orderID, "status": order.Status.String()})
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": enums.OrderStatusDelivered}); err != nil {
			return fmt.Errorf("mark order delivered: %w", err)
		}
		order.Status = enums.OrderStatusDelivered
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func shippingDetailFromAddress(orderID uuid.UUID, addr types.ShippingAddress) *models.ShippingDetail {
	return &models.ShippingDetail{
		ID:      uuid.New(),
		OrderID: orderID,
		Name:    addr.Name,
		Address: addr.Address,
		City:    addr.City,
		Pincode: addr.Pincode,
		Country: addr.Country,
		Phone:   addr.Phone,
	}
}
