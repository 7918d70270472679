package refunds

import (
	"context"
	"fmt"
	"strings"

	"github.com/brandkart/brandkart-backend/internal/catalog"
	"github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/pkg/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gateway is the refund surface of the payment provider.
type Gateway interface {
	CreateRefund(ctx context.Context, creds types.CampaignPaymentConfig, req cashfree.RefundRequest) (*cashfree.Refund, error)
	GetRefund(ctx context.Context, creds types.CampaignPaymentConfig, orderID, refundID string) (*cashfree.Refund, error)
}

// InitiateInput describes an admin-initiated refund. A zero amount means
// "refund everything still refundable".
type InitiateInput struct {
	OrderID     uuid.UUID
	AmountCents int64
	Note        string
}

// ServiceParams configure the refund service.
type ServiceParams struct {
	DB      orders.TxRunner
	Repo    orders.Repository
	Catalog catalog.Repository
	Gateway Gateway
	Logger  *logger.Logger
}

// Service issues refunds against settled orders and keeps the refund ledger
// in sync with the gateway.
type Service struct {
	db      orders.TxRunner
	repo    orders.Repository
	catalog catalog.Repository
	gateway Gateway
	logg    *logger.Logger
}

// NewService builds the refund service.
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
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		db:      params.DB,
		repo:    params.Repo,
		catalog: params.Catalog,
		gateway: params.Gateway,
		logg:    params.Logger,
	}, nil
}

// Initiate refunds part or all of a paid order. The refund transaction is
// committed as pending before the gateway is called, with its own ID doubling
// as the gateway-side dedupe key: if the process dies mid-flight the refund
// can be reconciled through CheckStatus instead of being sent twice.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (*models.Transaction, error) {
	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot refund order in status %s", order.Status)).
			WithDetails(map[string]any{"order_id": order.ID, "status": order.Status.String()})
	}

	charge, err := s.repo.FindSuccessfulCharge(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no successful charge to refund")
	}

	creds, err := s.paymentConfig(ctx, order.CampaignID)
	if err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		refunded, err := repo.SumRefunds(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("sum refunds: %w", err)
		}
		remaining := charge.AmountCents - refunded
		amount := input.AmountCents
		if amount == 0 {
			amount = remaining
		}
		if amount <= 0 || amount > remaining {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds the refundable balance").
				WithDetails(map[string]any{"requested": amount, "refundable": remaining})
		}

		refundID := uuid.New()
		gatewayRefundID := refundID.String()
		txn = &models.Transaction{
			ID:              refundID,
			OrderID:         order.ID,
			Type:            enums.TransactionTypeRefund,
			Status:          enums.TransactionStatusPending,
			AmountCents:     -amount,
			GatewayRefundID: &gatewayRefundID,
		}
		if strings.TrimSpace(input.Note) != "" {
			note := input.Note
			txn.Note = &note
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("record refund: %w", err)
		}

		return s.applyRefundState(ctx, repo, order, refunded+amount, charge.AmountCents, gatewayRefundID, "")
	})
	if err != nil {
		return nil, err
	}

	refund, gatewayErr := s.gateway.CreateRefund(ctx, creds, cashfree.RefundRequest{
		OrderID:     order.ID.String(),
		RefundID:    *txn.GatewayRefundID,
		AmountCents: -txn.AmountCents,
		Note:        input.Note,
	})
	if gatewayErr != nil {
		if pkgerrors.HasCode(gatewayErr, pkgerrors.CodeGatewayUnavailable) {
			// Outcome unknown; leave the pending row for CheckStatus to settle.
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "refund outcome unknown, pending reconciliation")
			return txn, nil
		}
		if failErr := s.markRefundFailed(ctx, order, charge, txn, gatewayErr.Error()); failErr != nil {
			return nil, failErr
		}
		return nil, gatewayErr
	}

	if err := s.syncRefundOutcome(ctx, order, charge, txn, refund); err != nil {
		return nil, err
	}
	return txn, nil
}

// CheckStatus polls the gateway for a refund's state and refreshes the stored
// transaction and order annotations.
func (s *Service) CheckStatus(ctx context.Context, orderID uuid.UUID, refundID string) (*models.Transaction, error) {
	if strings.TrimSpace(refundID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund ID is required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	txn, err := s.repo.FindTransactionByRefundID(ctx, order.ID, refundID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
	}
	charge, err := s.repo.FindSuccessfulCharge(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no successful charge")
	}

	creds, err := s.paymentConfig(ctx, order.CampaignID)
	if err != nil {
		return nil, err
	}
	refund, err := s.gateway.GetRefund(ctx, creds, order.ID.String(), refundID)
	if err != nil {
		return nil, err
	}

	if err := s.syncRefundOutcome(ctx, order, charge, txn, refund); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) paymentConfig(ctx context.Context, campaignID uuid.UUID) (types.CampaignPaymentConfig, error) {
	campaign, err := s.catalog.FindCampaign(ctx, campaignID)
	if err != nil {
		return types.CampaignPaymentConfig{}, err
	}
	if campaign.PaymentConfig == nil || !campaign.PaymentConfig.Complete() {
		return types.CampaignPaymentConfig{}, pkgerrors.New(pkgerrors.CodeStateConflict, "campaign has no payment gateway configured")
	}
	return *campaign.PaymentConfig, nil
}

// syncRefundOutcome maps the gateway refund state onto the transaction row
// and the order's refund annotations.
func (s *Service) syncRefundOutcome(ctx context.Context, order *models.Order, charge *models.Transaction, txn *models.Transaction, refund *cashfree.Refund) error {
	switch {
	case refund.Succeeded():
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.UpdateTransaction(ctx, txn.ID, map[string]any{"status": enums.TransactionStatusSuccess}); err != nil {
				return fmt.Errorf("mark refund succeeded: %w", err)
			}
			txn.Status = enums.TransactionStatusSuccess
			refunded, err := repo.SumRefunds(ctx, order.ID)
			if err != nil {
				return err
			}
			return s.applyRefundState(ctx, repo, order, refunded, charge.AmountCents, refund.GatewayRefundID, refund.Status)
		})
	case refund.IsFinal():
		return s.markRefundFailed(ctx, order, charge, txn, "gateway reported "+refund.Status)
	default:
		// Still pending at the gateway; just mirror the latest state.
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.applyRefundState(ctx, s.repo.WithTx(tx), order, 0, 0, refund.GatewayRefundID, refund.Status)
		})
	}
}

func (s *Service) markRefundFailed(ctx context.Context, order *models.Order, charge *models.Transaction, txn *models.Transaction, reason string) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateTransaction(ctx, txn.ID, map[string]any{
			"status": enums.TransactionStatusFailed,
			"note":   reason,
		}); err != nil {
			return fmt.Errorf("mark refund failed: %w", err)
		}
		txn.Status = enums.TransactionStatusFailed
		refunded, err := repo.SumRefunds(ctx, order.ID)
		if err != nil {
			return err
		}
		return s.applyRefundState(ctx, repo, order, refunded, charge.AmountCents, "", "")
	})
}

// applyRefundState writes the order's RefundStatus and mirrors the latest
// gateway refund identifiers into its payment metadata. When refundedCents
// and chargeCents are zero only the metadata mirror changes.
func (s *Service) applyRefundState(ctx context.Context, repo orders.Repository, order *models.Order, refundedCents, chargeCents int64, gatewayRefundID, gatewayState string) error {
	updates := map[string]any{}
	if chargeCents > 0 {
		status := enums.RefundStatusNone
		switch {
		case refundedCents >= chargeCents:
			status = enums.RefundStatusFull
		case refundedCents > 0:
			status = enums.RefundStatusPartial
		}
		updates["refund_status"] = status
		order.RefundStatus = status
	}
	if gatewayRefundID != "" || gatewayState != "" {
		meta := order.PaymentDetails
		if meta == nil {
			meta = &types.PaymentMetadata{Version: types.PaymentMetadataVersion, Gateway: enums.PaymentMethodCashfree.String()}
		}
		if gatewayRefundID != "" {
			meta.RefundID = gatewayRefundID
		}
		if gatewayState != "" {
			meta.RefundState = gatewayState
		}
		updates["payment_details"] = meta
		order.PaymentDetails = meta
	}
	if len(updates) == 0 {
		return nil
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return fmt.Errorf("update order refund state: %w", err)
	}
	return nil
}
