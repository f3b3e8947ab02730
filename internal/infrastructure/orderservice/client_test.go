package orderservice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
	"github.com/amankrmj01/bakery-payment-service/internal/infrastructure/orderservice"
)

func TestGetOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes a found order", func(t *testing.T) {
		orderID := uuid.New()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/orders/"+orderID.String(), r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":          orderID,
				"totalAmount": "42.50",
				"status":      "CONFIRMED",
			})
		}))
		defer server.Close()

		client := orderservice.NewClient(server.URL, time.Second)
		order, err := client.GetOrder(ctx, orderID)
		require.NoError(t, err)

		assert.Equal(t, orderID, order.ID)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("42.50")))
		assert.Equal(t, "CONFIRMED", order.Status)
	})

	t.Run("maps 404 to order not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := orderservice.NewClient(server.URL, time.Second)
		_, err := client.GetOrder(ctx, uuid.New())
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := orderservice.NewClient(server.URL, time.Second)
		_, err := client.GetOrder(ctx, uuid.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})
}

func TestNotifyPaymentStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the status update", func(t *testing.T) {
		orderID := uuid.New()
		paymentID := uuid.New()

		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/orders/"+orderID.String()+"/payment-update", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := orderservice.NewClient(server.URL, time.Second)
		err := client.NotifyPaymentStatus(ctx, orderID, application.PaymentStatusUpdate{
			PaymentID:        paymentID,
			PaymentReference: "PAY-20260901120000-1234",
			Status:           domain.StatusCompleted,
			Amount:           decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		assert.Equal(t, paymentID.String(), got["paymentId"])
		assert.Equal(t, "COMPLETED", got["status"])
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := orderservice.NewClient(server.URL, time.Second)
		err := client.NotifyPaymentStatus(ctx, uuid.New(), application.PaymentStatusUpdate{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 502")
	})
}
