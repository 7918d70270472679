package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brandkart/brandkart-backend/pkg/config"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL               = "https://sandbox.cashfree.com/pg"
	defaultAPIVersion            = "2023-08-01"
	currencyINR                  = "INR"
	responseBodyReadLimit        = 2048
	orderStatusPaid              = "PAID"
	orderStatusActive            = "ACTIVE"
	orderStatusExpired           = "EXPIRED"
	orderStatusTerminated        = "TERMINATED"
	refundStatusSuccess          = "SUCCESS"
	refundStatusPending          = "PENDING"
	refundStatusOnHold           = "ONHOLD"
	refundStatusCancelled        = "CANCELLED"
	defaultMaxRetries     uint64 = 3
)

var cents = decimal.NewFromInt(100)

// Client talks to the Cashfree PG APIs. Merchant credentials are supplied
// per call because every campaign carries its own Cashfree app.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	returnURL  string
	maxRetries uint64
	retryBase  time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Cashfree base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Cashfree client from configuration.
func NewClient(cfg config.CashfreeConfig, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		apiVersion: strings.TrimSpace(cfg.APIVersion),
		returnURL:  strings.TrimSpace(cfg.ReturnURL),
		maxRetries: uint64(cfg.MaxRetries),
		retryBase:  cfg.RetryBaseDelay,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.apiVersion == "" {
		client.apiVersion = defaultAPIVersion
	}
	if client.maxRetries == 0 {
		client.maxRetries = defaultMaxRetries
	}
	if client.retryBase <= 0 {
		client.retryBase = 250 * time.Millisecond
	}

	return client
}

// CreateSessionRequest describes the payload for creating a hosted checkout.
type CreateSessionRequest struct {
	OrderID       string
	AmountCents   int64
	CustomerID    string
	CustomerName  string
	CustomerPhone string
	NotifyURL     string
}

// Session holds the gateway handles returned for a new checkout.
type Session struct {
	GatewayOrderID string
	SessionID      string
	CheckoutURL    string
	Status         string
}

// OrderState is the gateway-side view of an order.
type OrderState struct {
	GatewayOrderID string
	Status         string
	AmountCents    int64
}

// RefundRequest describes a refund against a settled order.
type RefundRequest struct {
	OrderID     string
	RefundID    string
	AmountCents int64
	Note        string
}

// Refund is the gateway-side view of a refund.
type Refund struct {
	GatewayRefundID string
	RefundID        string
	Status          string
	AmountCents     int64
}

// IsSettled reports whether the gateway considers the order paid.
func (o OrderState) IsSettled() bool {
	return o.Status == orderStatusPaid
}

// IsFinal reports whether the refund reached a terminal state.
func (r Refund) IsFinal() bool {
	return r.Status == refundStatusSuccess || r.Status == refundStatusCancelled
}

// Succeeded reports whether the refund settled.
func (r Refund) Succeeded() bool {
	return r.Status == refundStatusSuccess
}

// CreateSession registers an order with Cashfree and returns the payment
// session. Never retried: a timed-out create may still have landed on the
// gateway, and replays would mint duplicate sessions.
func (c *Client) CreateSession(ctx context.Context, creds types.CampaignPaymentConfig, req CreateSessionRequest) (*Session, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	if err := validateCreds(creds); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ID is required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}

	payload := map[string]any{
		"order_id":       req.OrderID,
		"order_amount":   centsToAmount(req.AmountCents),
		"order_currency": currencyINR,
		"customer_details": map[string]any{
			"customer_id":    req.CustomerID,
			"customer_name":  req.CustomerName,
			"customer_phone": req.CustomerPhone,
		},
	}
	meta := map[string]any{}
	if c.returnURL != "" {
		meta["return_url"] = c.returnURL
	}
	if req.NotifyURL != "" {
		meta["notify_url"] = req.NotifyURL
	}
	if len(meta) > 0 {
		payload["order_meta"] = meta
	}

	var apiResp struct {
		CFOrderID        json.Number `json:"cf_order_id"`
		OrderID          string      `json:"order_id"`
		PaymentSessionID string      `json:"payment_session_id"`
		OrderStatus      string      `json:"order_status"`
		PaymentLink      string      `json:"payment_link"`
	}
	if err := c.do(ctx, creds, http.MethodPost, "orders", payload, &apiResp); err != nil {
		return nil, err
	}

	return &Session{
		GatewayOrderID: apiResp.CFOrderID.String(),
		SessionID:      apiResp.PaymentSessionID,
		CheckoutURL:    apiResp.PaymentLink,
		Status:         apiResp.OrderStatus,
	}, nil
}

// GetOrder fetches the current gateway state of an order. Read-only, so
// transient gateway failures are retried with exponential backoff.
func (c *Client) GetOrder(ctx context.Context, creds types.CampaignPaymentConfig, orderID string) (*OrderState, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	if err := validateCreds(creds); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ID is required")
	}

	var apiResp struct {
		CFOrderID   json.Number `json:"cf_order_id"`
		OrderStatus string      `json:"order_status"`
		OrderAmount json.Number `json:"order_amount"`
	}
	path := fmt.Sprintf("orders/%s", url.PathEscape(trimmed))
	err := c.retryRead(ctx, func(ctx context.Context) error {
		return c.do(ctx, creds, http.MethodGet, path, nil, &apiResp)
	})
	if err != nil {
		return nil, err
	}

	amount, err := amountToCents(apiResp.OrderAmount.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse order amount")
	}

	return &OrderState{
		GatewayOrderID: apiResp.CFOrderID.String(),
		Status:         apiResp.OrderStatus,
		AmountCents:    amount,
	}, nil
}

// Cancel terminates an unpaid order so its checkout link stops accepting
// payments.
func (c *Client) Cancel(ctx context.Context, creds types.CampaignPaymentConfig, orderID string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	if err := validateCreds(creds); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order ID is required")
	}

	payload := map[string]any{"order_status": orderStatusTerminated}
	path := fmt.Sprintf("orders/%s", url.PathEscape(trimmed))
	return c.do(ctx, creds, http.MethodPatch, path, payload, nil)
}

// CreateRefund submits a refund. Never retried for the same reason as
// CreateSession; callers poll with GetRefund when the outcome is unknown.
func (c *Client) CreateRefund(ctx context.Context, creds types.CampaignPaymentConfig, req RefundRequest) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	if err := validateCreds(creds); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.RefundID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ID and refund ID are required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	payload := map[string]any{
		"refund_id":     req.RefundID,
		"refund_amount": centsToAmount(req.AmountCents),
	}
	if strings.TrimSpace(req.Note) != "" {
		payload["refund_note"] = req.Note
	}

	var apiResp struct {
		CFRefundID   json.Number `json:"cf_refund_id"`
		RefundID     string      `json:"refund_id"`
		RefundStatus string      `json:"refund_status"`
		RefundAmount json.Number `json:"refund_amount"`
	}
	path := fmt.Sprintf("orders/%s/refunds", url.PathEscape(strings.TrimSpace(req.OrderID)))
	if err := c.do(ctx, creds, http.MethodPost, path, payload, &apiResp); err != nil {
		return nil, err
	}

	amount, err := amountToCents(apiResp.RefundAmount.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse refund amount")
	}

	return &Refund{
		GatewayRefundID: apiResp.CFRefundID.String(),
		RefundID:        apiResp.RefundID,
		Status:          apiResp.RefundStatus,
		AmountCents:     amount,
	}, nil
}

// GetRefund fetches the current state of a refund. Read-only, retried on
// transient failures.
func (c *Client) GetRefund(ctx context.Context, creds types.CampaignPaymentConfig, orderID, refundID string) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	if err := validateCreds(creds); err != nil {
		return nil, err
	}
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(refundID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ID and refund ID are required")
	}

	var apiResp struct {
		CFRefundID   json.Number `json:"cf_refund_id"`
		RefundID     string      `json:"refund_id"`
		RefundStatus string      `json:"refund_status"`
		RefundAmount json.Number `json:"refund_amount"`
	}
	path := fmt.Sprintf("orders/%s/refunds/%s", url.PathEscape(strings.TrimSpace(orderID)), url.PathEscape(strings.TrimSpace(refundID)))
	err := c.retryRead(ctx, func(ctx context.Context) error {
		return c.do(ctx, creds, http.MethodGet, path, nil, &apiResp)
	})
	if err != nil {
		return nil, err
	}

	amount, err := amountToCents(apiResp.RefundAmount.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse refund amount")
	}

	return &Refund{
		GatewayRefundID: apiResp.CFRefundID.String(),
		RefundID:        apiResp.RefundID,
		Status:          apiResp.RefundStatus,
		AmountCents:     amount,
	}, nil
}

func (c *Client) do(ctx context.Context, creds types.CampaignPaymentConfig, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal cashfree request")
		}
		body = bytes.NewReader(encoded)
	}

	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build cashfree request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-version", c.apiVersion)
	httpReq.Header.Set("x-client-id", creds.AppID)
	httpReq.Header.Set("x-client-secret", creds.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "execute cashfree request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "cashfree request failed")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "cashfree rejected request")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cashfree response")
	}
	return nil
}

// retryRead wraps read-only calls with exponential backoff. Only gateway
// unavailability is retried; business rejections surface immediately.
func (c *Client) retryRead(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if pkgerrors.HasCode(err, pkgerrors.CodeGatewayUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func validateCreds(creds types.CampaignPaymentConfig) error {
	if !creds.Complete() {
		return pkgerrors.New(pkgerrors.CodeValidation, "campaign payment configuration is incomplete")
	}
	return nil
}

func centsToAmount(amountCents int64) float64 {
	val, _ := decimal.NewFromInt(amountCents).Div(cents).Round(2).Float64()
	return val
}

func amountToCents(amount string) (int64, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, err
	}
	return parsed.Mul(cents).Round(0).IntPart(), nil
}
