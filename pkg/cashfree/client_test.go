package cashfree

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brandkart/brandkart-backend/pkg/config"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds() types.CampaignPaymentConfig {
	return types.CampaignPaymentConfig{
		Gateway:       "cashfree",
		AppID:         "app-123",
		SecretKey:     "secret-456",
		WebhookSecret: "whsec-789",
	}
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.CashfreeConfig{
		BaseURL:        srv.URL,
		APIVersion:     "2023-08-01",
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	})
}

func TestCreateSession(t *testing.T) {
	var gotBody map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		require.Equal(t, "app-123", r.Header.Get("x-client-id"))
		require.Equal(t, "secret-456", r.Header.Get("x-client-secret"))
		require.Equal(t, "2023-08-01", r.Header.Get("x-api-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cf_order_id":        987654,
			"order_id":           "ord-1",
			"payment_session_id": "session-abc",
			"order_status":       "ACTIVE",
		})
	}))

	session, err := client.CreateSession(context.Background(), testCreds(), CreateSessionRequest{
		OrderID:       "ord-1",
		AmountCents:   159900,
		CustomerID:    "buyer-1",
		CustomerName:  "Asha",
		CustomerPhone: "9999999999",
	})
	require.NoError(t, err)
	assert.Equal(t, "987654", session.GatewayOrderID)
	assert.Equal(t, "session-abc", session.SessionID)
	assert.Equal(t, "ACTIVE", session.Status)

	assert.Equal(t, "ord-1", gotBody["order_id"])
	assert.InDelta(t, 1599.00, gotBody["order_amount"], 0.001)
	assert.Equal(t, "INR", gotBody["order_currency"])
}

func TestCreateSessionRejectsInvalidInput(t *testing.T) {
	client := NewClient(config.CashfreeConfig{})

	_, err := client.CreateSession(context.Background(), testCreds(), CreateSessionRequest{OrderID: "", AmountCents: 100})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = client.CreateSession(context.Background(), testCreds(), CreateSessionRequest{OrderID: "ord-1", AmountCents: 0})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = client.CreateSession(context.Background(), types.CampaignPaymentConfig{}, CreateSessionRequest{OrderID: "ord-1", AmountCents: 100})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCreateSessionNotRetriedOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.CreateSession(context.Background(), testCreds(), CreateSessionRequest{
		OrderID:     "ord-1",
		AmountCents: 5000,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGatewayUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrderRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		require.Equal(t, "/orders/ord-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cf_order_id":  42,
			"order_status": "PAID",
			"order_amount": 1599.00,
		})
	}))

	state, err := client.GetOrder(context.Background(), testCreds(), "ord-1")
	require.NoError(t, err)
	assert.True(t, state.IsSettled())
	assert.Equal(t, int64(159900), state.AmountCents)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrderDoesNotRetryBusinessRejections(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"order not found"}`))
	}))

	_, err := client.GetOrder(context.Background(), testCreds(), "ord-missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateRefund(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders/ord-1/refunds", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rf-1", body["refund_id"])
		assert.InDelta(t, 500.00, body["refund_amount"], 0.001)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"cf_refund_id":  777,
			"refund_id":     "rf-1",
			"refund_status": "PENDING",
			"refund_amount": 500.00,
		})
	}))

	refund, err := client.CreateRefund(context.Background(), testCreds(), RefundRequest{
		OrderID:     "ord-1",
		RefundID:    "rf-1",
		AmountCents: 50000,
		Note:        "size exchange",
	})
	require.NoError(t, err)
	assert.Equal(t, "777", refund.GatewayRefundID)
	assert.False(t, refund.IsFinal())
	assert.Equal(t, int64(50000), refund.AmountCents)
}

func TestGetRefund(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders/ord-1/refunds/rf-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cf_refund_id":  777,
			"refund_id":     "rf-1",
			"refund_status": "SUCCESS",
			"refund_amount": 500.00,
		})
	}))

	refund, err := client.GetRefund(context.Background(), testCreds(), "ord-1", "rf-1")
	require.NoError(t, err)
	assert.True(t, refund.Succeeded())
	assert.True(t, refund.IsFinal())
}

func TestAmountConversion(t *testing.T) {
	assert.InDelta(t, 1599.00, centsToAmount(159900), 0.0001)
	assert.InDelta(t, 0.01, centsToAmount(1), 0.0001)

	parsed, err := amountToCents("1599.00")
	require.NoError(t, err)
	assert.Equal(t, int64(159900), parsed)

	parsed, err = amountToCents("0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), parsed)

	_, err = amountToCents("not-a-number")
	assert.Error(t, err)
}
