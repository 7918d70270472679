package cron

import (
	"context"
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
	return &cashfree.Session{GatewayOrderID: "cf-1", SessionID: "sess-1", Status: "ACTIVE"}, nil
}

type freeRater struct{}

func (freeRater) Rate(context.Context, string, string, int) (*shiprate.Quote, error) {
	return &shiprate.Quote{FeeCents: 0, Courier: "test"}, nil
}

type expiryFixture struct {
	conn    *gorm.DB
	job     *reservationExpiryJob
	svc     *orders.Service
	record  uuid.UUID
	orderID uuid.UUID
}

func newExpiryFixture(t *testing.T) *expiryFixture {
	t.Helper()

	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, migrate.Run(conn))

	client, err := db.NewWithConn(conn)
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "cron-test", Level: zerolog.Disabled})

	invSvc, err := inventory.NewService(inventory.NewRepository(conn), logg)
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	pricer, err := pricing.NewService(couponSvc, freeRater{})
	require.NoError(t, err)

	repo := orders.NewRepository(conn)
	svc, err := orders.NewService(orders.ServiceParams{
		DB:        client,
		Repo:      repo,
		Catalog:   catalog.NewRepository(conn),
		Inventory: invSvc,
		Pricer:    pricer,
		Coupons:   couponSvc,
		Gateway:   stubGateway{},
		Logger:    logg,
	})
	require.NoError(t, err)

	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{
		Logger:    logg,
		DB:        client,
		Orders:    repo,
		Lifecycle: svc,
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

	f := &expiryFixture{conn: conn, svc: svc, record: record.ID}
	f.job = job.(*reservationExpiryJob)

	result, err := svc.Create(context.Background(), orders.CreateOrderInput{
		BuyerID:      uuid.New(),
		CampaignID:   campaign.ID,
		VariantID:    variant.ID,
		Qty:          2,
		ClientTotals: &pricing.ClientTotals{SubtotalCents: 99800, TotalCents: 99800},
	})
	require.NoError(t, err)
	f.orderID = result.Order.ID
	return f
}

func (f *expiryFixture) setExpiry(t *testing.T, orderID uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, f.conn.Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("reservation_expiry", at).Error)
}

func TestReservationExpiryFailsLapsedOrders(t *testing.T) {
	t.Parallel()

	f := newExpiryFixture(t)
	f.setExpiry(t, f.orderID, time.Now().UTC().Add(-time.Minute))

	require.NoError(t, f.job.Run(context.Background()))

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", f.orderID).Error)
	assert.Equal(t, enums.OrderStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, expiredReservationReason, *stored.FailureReason)

	var record models.InventoryRecord
	require.NoError(t, f.conn.First(&record, "id = ?", f.record).Error)
	assert.Equal(t, 10, record.Quantity)
	assert.Equal(t, 0, record.ReservedQty)
}

func TestReservationExpiryLeavesLiveOrders(t *testing.T) {
	t.Parallel()

	f := newExpiryFixture(t)
	f.setExpiry(t, f.orderID, time.Now().UTC().Add(time.Hour))

	require.NoError(t, f.job.Run(context.Background()))

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", f.orderID).Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)

	var record models.InventoryRecord
	require.NoError(t, f.conn.First(&record, "id = ?", f.record).Error)
	assert.Equal(t, 2, record.ReservedQty)
}

func TestReservationExpirySkipsSettledOrder(t *testing.T) {
	t.Parallel()

	f := newExpiryFixture(t)
	ctx := context.Background()

	// Settle the order, then drive expireOrder directly to model a webhook
	// landing between the sweep query and the per-order transaction.
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		return f.svc.SettleInTx(ctx, tx, f.orderID, orders.PaymentRef{GatewayPaymentID: "pay-1"})
	}))

	expiredNow, err := f.job.expireOrder(ctx, f.orderID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, expiredNow)

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", f.orderID).Error)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
}
