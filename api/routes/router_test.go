package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brandkart/brandkart-backend/internal/catalog"
	"github.com/brandkart/brandkart-backend/internal/coupons"
	"github.com/brandkart/brandkart-backend/internal/inventory"
	ordersvc "github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/internal/pricing"
	refundsvc "github.com/brandkart/brandkart-backend/internal/refunds"
	cashfreewebhook "github.com/brandkart/brandkart-backend/internal/webhooks/cashfree"
	pkgauth "github.com/brandkart/brandkart-backend/pkg/auth"
	"github.com/brandkart/brandkart-backend/pkg/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/config"
	"github.com/brandkart/brandkart-backend/pkg/db"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	"github.com/brandkart/brandkart-backend/pkg/logger"
	"github.com/brandkart/brandkart-backend/pkg/migrate"
	"github.com/brandkart/brandkart-backend/pkg/shiprate"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubGateway struct{}

func (stubGateway) CreateSession(context.Context, types.CampaignPaymentConfig, cashfree.CreateSessionRequest) (*cashfree.Session, error) {
	return &cashfree.Session{GatewayOrderID: "cf-1", SessionID: "sess-1", CheckoutURL: "https://pay.example/s", Status: "ACTIVE"}, nil
}

func (stubGateway) CreateRefund(context.Context, types.CampaignPaymentConfig, cashfree.RefundRequest) (*cashfree.Refund, error) {
	return &cashfree.Refund{Status: "PENDING"}, nil
}

func (stubGateway) GetRefund(context.Context, types.CampaignPaymentConfig, string, string) (*cashfree.Refund, error) {
	return &cashfree.Refund{Status: "SUCCESS"}, nil
}

type stubRater struct{}

func (stubRater) Rate(context.Context, string, string, int) (*shiprate.Quote, error) {
	return &shiprate.Quote{FeeCents: 0, Courier: "test"}, nil
}

type routerFixture struct {
	handler http.Handler
	cfg     *config.Config
	conn    *gorm.DB
	variant uuid.UUID
	record  uuid.UUID

	campaignID uuid.UUID
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, migrate.Run(conn))

	client, err := db.NewWithConn(conn)
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "routes-test", Level: zerolog.Disabled})

	invSvc, err := inventory.NewService(inventory.NewRepository(conn), logg)
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	pricer, err := pricing.NewService(couponSvc, stubRater{})
	require.NoError(t, err)

	ordersRepo := ordersvc.NewRepository(conn)
	orderSvc, err := ordersvc.NewService(ordersvc.ServiceParams{
		DB:        client,
		Repo:      ordersRepo,
		Catalog:   catalog.NewRepository(conn),
		Inventory: invSvc,
		Pricer:    pricer,
		Coupons:   couponSvc,
		Gateway:   stubGateway{},
		Logger:    logg,
	})
	require.NoError(t, err)

	refundSvc, err := refundsvc.NewService(refundsvc.ServiceParams{
		DB:      client,
		Repo:    ordersRepo,
		Catalog: catalog.NewRepository(conn),
		Gateway: stubGateway{},
		Logger:  logg,
	})
	require.NoError(t, err)

	webhookSvc, err := cashfreewebhook.NewService(cashfreewebhook.ServiceParams{
		DB:     client,
		Orders: orderSvc,
		Events: cashfreewebhook.NewEventRepository(conn),
		Guard:  mustGuard(t),
		Logger: logg,
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT.Secret = "routes-test-secret"
	cfg.JWT.Issuer = "brandkart"
	cfg.Cashfree.WebhookSecret = "whsec_routes"

	handler := NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logg,
		DB:       client,
		Redis:    nil,
		Orders:   orderSvc,
		Refunds:  refundSvc,
		Webhooks: webhookSvc,
	})

	campaign := &models.Campaign{
		ID: uuid.New(), Name: "Drop", Status: enums.CampaignStatusActive,
		PaymentConfig: &types.CampaignPaymentConfig{Gateway: "cashfree", AppID: "app", SecretKey: "secret"},
	}
	require.NoError(t, conn.Create(campaign).Error)
	product := &models.Product{ID: uuid.New(), CampaignID: campaign.ID, Title: "Tee", Kind: enums.ProductKindDigital}
	require.NoError(t, conn.Create(product).Error)
	variant := &models.ProductVariant{ID: uuid.New(), ProductID: product.ID, Title: "std", PriceCents: 49900}
	require.NoError(t, conn.Create(variant).Error)
	location := &models.InventoryLocation{ID: uuid.New(), Name: "BLR", Pincode: "560001"}
	require.NoError(t, conn.Create(location).Error)
	record := &models.InventoryRecord{ID: uuid.New(), VariantID: variant.ID, LocationID: location.ID, Quantity: 10}
	require.NoError(t, conn.Create(record).Error)

	return &routerFixture{
		handler:    handler,
		cfg:        cfg,
		conn:       conn,
		variant:    variant.ID,
		record:     record.ID,
		campaignID: campaign.ID,
	}
}

func mustGuard(t *testing.T) *cashfreewebhook.IdempotencyGuard {
	t.Helper()
	guard, err := cashfreewebhook.NewIdempotencyGuard(noopStore{}, time.Hour, "cashfree")
	require.NoError(t, err)
	return guard
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) (string, error) { return "", nil }

func (noopStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return true, nil
}

func (noopStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (noopStore) Del(context.Context, ...string) error { return nil }

func (f *routerFixture) token(t *testing.T, role string) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(f.cfg.JWT, time.Now(), uuid.New(), role, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *routerFixture) createOrderBody() []byte {
	payload := map[string]any{
		"campaign_id": f.campaignID,
		"variant_id":  f.variant,
		"qty":         1,
		"totals": map[string]int64{
			"subtotal_cents": 49900,
			"total_cents":    49900,
		},
	}
	body, _ := json.Marshal(payload)
	return body
}

func TestRouterRejectsMissingToken(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(f.createOrderBody()))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterCreateOrder(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(f.createOrderBody()))
	req.Header.Set("Authorization", "Bearer "+f.token(t, pkgauth.RoleBuyer))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var envelope struct {
		Data struct {
			RequiresPayment bool `json:"requires_payment"`
			Order           struct {
				OrderID uuid.UUID `json:"order_id"`
				Status  string    `json:"status"`
			} `json:"order"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.RequiresPayment)
	assert.Equal(t, "pending", envelope.Data.Order.Status)
}

func TestRouterCreateOrderWithoutTotals(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	body, _ := json.Marshal(map[string]any{
		"campaign_id": f.campaignID,
		"variant_id":  f.variant,
		"qty":         1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, pkgauth.RoleBuyer))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRouterAdminEndpointsRequireAdminRole(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	body, _ := json.Marshal(map[string]any{"order_id": uuid.New()})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/refunds", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token(t, pkgauth.RoleBuyer))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	body := []byte(`{"type":"ORDER_PAID","event_id":"evt-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cashfree", bytes.NewReader(body))
	req.Header.Set("x-webhook-timestamp", "1756701000")
	req.Header.Set("x-webhook-signature", "not-the-signature")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterWebhookSettlesOrder(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)

	// Create an order through the API first.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(f.createOrderBody()))
	req.Header.Set("Authorization", "Bearer "+f.token(t, pkgauth.RoleBuyer))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var envelope struct {
		Data struct {
			Order struct {
				OrderID uuid.UUID `json:"order_id"`
			} `json:"order"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	body := []byte(fmt.Sprintf(
		`{"event_id":"evt-settle","type":"ORDER_PAID","data":{"order":{"order_id":%q,"cf_order_id":"cf-1"},"payment":{"cf_payment_id":"pay-9","payment_status":"SUCCESS"}}}`,
		envelope.Data.Order.OrderID,
	))
	timestamp := "1756701000"
	sig := cashfreewebhook.Sign(f.cfg.Cashfree.WebhookSecret, timestamp, body)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cashfree", bytes.NewReader(body))
	req.Header.Set("x-webhook-timestamp", timestamp)
	req.Header.Set("x-webhook-signature", sig)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", envelope.Data.Order.OrderID).Error)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
}

func TestRouterWebhookAcksProcessingFailure(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)

	// Well-signed event for an order that does not exist: processing fails
	// internally but the gateway still gets a 200.
	body := []byte(fmt.Sprintf(
		`{"event_id":"evt-ghost","type":"ORDER_PAID","data":{"order":{"order_id":%q,"cf_order_id":"cf-404"},"payment":{"cf_payment_id":"pay-404","payment_status":"SUCCESS"}}}`,
		uuid.New(),
	))
	timestamp := "1756701000"
	sig := cashfreewebhook.Sign(f.cfg.Cashfree.WebhookSecret, timestamp, body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cashfree", bytes.NewReader(body))
	req.Header.Set("x-webhook-timestamp", timestamp)
	req.Header.Set("x-webhook-signature", sig)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouterHealthReady(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
