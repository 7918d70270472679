package cashfreewebhook

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brandkart/brandkart-backend/internal/catalog"
	"github.com/brandkart/brandkart-backend/internal/coupons"
	"github.com/brandkart/brandkart-backend/internal/inventory"
	"github.com/brandkart/brandkart-backend/internal/orders"
	"github.com/brandkart/brandkart-backend/internal/pricing"
	"github.com/brandkart/brandkart-backend/pkg/cashfree"
	"github.com/brandkart/brandkart-backend/pkg/db"
	"github.com/brandkart/brandkart-backend/pkg/db/models"
	"github.com/brandkart/brandkart-backend/pkg/enums"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
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

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"test", "idempotency", scope, id}, ":")
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type sessionGateway struct{}

func (sessionGateway) CreateSession(context.Context, types.CampaignPaymentConfig, cashfree.CreateSessionRequest) (*cashfree.Session, error) {
	return &cashfree.Session{GatewayOrderID: "cf-1", SessionID: "sess-1", Status: "ACTIVE"}, nil
}

type flatRater struct{}

func (flatRater) Rate(context.Context, string, string, int) (*shiprate.Quote, error) {
	return &shiprate.Quote{FeeCents: 0, Courier: "test"}, nil
}

type fixture struct {
	conn   *gorm.DB
	svc    *Service
	store  *memStore
	order  *models.Order
	record uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:webhooks_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, migrate.Run(conn))

	client, err := db.NewWithConn(conn)
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})

	invSvc, err := inventory.NewService(inventory.NewRepository(conn), logg)
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	pricer, err := pricing.NewService(couponSvc, flatRater{})
	require.NoError(t, err)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		DB:        client,
		Repo:      orders.NewRepository(conn),
		Catalog:   catalog.NewRepository(conn),
		Inventory: invSvc,
		Pricer:    pricer,
		Coupons:   couponSvc,
		Gateway:   sessionGateway{},
		Logger:    logg,
	})
	require.NoError(t, err)

	store := newMemStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "cashfree")
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		DB:     client,
		Orders: orderSvc,
		Events: NewEventRepository(conn),
		Guard:  guard,
		Logger: logg,
	})
	require.NoError(t, err)

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

	result, err := orderSvc.Create(context.Background(), orders.CreateOrderInput{
		BuyerID:    uuid.New(),
		CampaignID: campaign.ID,
		VariantID:  variant.ID,
		Qty:        2,
		ClientTotals: &pricing.ClientTotals{
			SubtotalCents: 99800, TotalCents: 99800,
		},
	})
	require.NoError(t, err)

	return &fixture{conn: conn, svc: svc, store: store, order: result.Order, record: record.ID}
}

func paidEvent(orderID uuid.UUID) Event {
	return Event{
		EventID: "evt-" + uuid.NewString(),
		Type:    enums.WebhookEventOrderPaid,
		Data: EventData{
			Order:   EventOrder{OrderID: orderID.String(), GatewayOrderID: "cf-1"},
			Payment: EventPayment{GatewayPaymentID: "pay-77", Status: "SUCCESS"},
		},
	}
}

func TestProcessOrderPaidSettlesOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Process(ctx, paidEvent(f.order.ID)))

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", f.order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	assert.Nil(t, stored.ReservationExpiry)

	var record models.InventoryRecord
	require.NoError(t, f.conn.First(&record, "id = ?", f.record).Error)
	assert.Equal(t, 8, record.Quantity)
	assert.Equal(t, 0, record.ReservedQty)

	var txn models.Transaction
	require.NoError(t, f.conn.First(&txn, "order_id = ?", f.order.ID).Error)
	assert.Equal(t, enums.TransactionTypeCharge, txn.Type)
	assert.Equal(t, enums.TransactionStatusSuccess, txn.Status)
	require.NotNil(t, txn.GatewayPaymentID)
	assert.Equal(t, "pay-77", *txn.GatewayPaymentID)

	var events int64
	require.NoError(t, f.conn.Model(&models.WebhookEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestProcessReplayIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := paidEvent(f.order.ID)

	require.NoError(t, f.svc.Process(ctx, event))
	require.NoError(t, f.svc.Process(ctx, event))

	var txns int64
	require.NoError(t, f.conn.Model(&models.Transaction{}).Where("order_id = ?", f.order.ID).Count(&txns).Error)
	assert.Equal(t, int64(1), txns)
}

func TestProcessReplaySurvivesCacheFlush(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := paidEvent(f.order.ID)

	require.NoError(t, f.svc.Process(ctx, event))

	// Simulate redis losing every mark; the durable row must still dedupe.
	f.store.mu.Lock()
	f.store.data = map[string]string{}
	f.store.mu.Unlock()

	require.NoError(t, f.svc.Process(ctx, event))

	var txns int64
	require.NoError(t, f.conn.Model(&models.Transaction{}).Where("order_id = ?", f.order.ID).Count(&txns).Error)
	assert.Equal(t, int64(1), txns)
}

func TestProcessPaymentFailedReleasesReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	event := paidEvent(f.order.ID)
	event.Type = enums.WebhookEventPaymentFailed
	event.Data.Payment.Message = "card declined"

	require.NoError(t, f.svc.Process(ctx, event))

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", f.order.ID).Error)
	assert.Equal(t, enums.OrderStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "card declined", *stored.FailureReason)

	var record models.InventoryRecord
	require.NoError(t, f.conn.First(&record, "id = ?", f.record).Error)
	assert.Equal(t, 10, record.Quantity)
	assert.Equal(t, 0, record.ReservedQty)
}

func TestProcessUnknownEventTypeIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	event := paidEvent(f.order.ID)
	event.Type = enums.WebhookEventType("PAYMENT_CHARGEBACK")

	require.NoError(t, f.svc.Process(context.Background(), event))

	var events int64
	require.NoError(t, f.conn.Model(&models.WebhookEvent{}).Count(&events).Error)
	assert.Equal(t, int64(0), events)
}

func TestProcessFailureAllowsRedelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	event := paidEvent(uuid.New())
	err := f.svc.Process(ctx, event)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	// The mark must be gone so the gateway's retry is not swallowed.
	seen, err := f.svc.guard.CheckAndMark(ctx, event.EventID)
	require.NoError(t, err)
	assert.False(t, seen)
}
