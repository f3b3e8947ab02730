// Package orderservice talks to the order service over HTTP to validate
// orders and push payment status updates.
package orderservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ application.OrderClient = (*HTTPClient)(nil)

type orderResponse struct {
	ID          uuid.UUID       `json:"id"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      string          `json:"status"`
}

type statusUpdateRequest struct {
	PaymentID        uuid.UUID       `json:"paymentId"`
	PaymentReference string          `json:"paymentReference"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	GatewayResponse  string          `json:"gatewayResponse,omitempty"`
}

// GetOrder fetches an order for payment validation. A 404 maps to the
// ORDER_NOT_FOUND domain error so the service layer can surface it as such.
func (c *HTTPClient) GetOrder(ctx context.Context, orderID uuid.UUID) (*application.Order, error) {
	url := fmt.Sprintf("%s/api/orders/%s", c.baseURL, orderID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error calling order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewOrderNotFoundError(orderID.String())
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("order service returned status %d: %s", resp.StatusCode, string(body))
	}

	var orderResp orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
		return nil, fmt.Errorf("error decoding order response: %w", err)
	}

	return &application.Order{
		ID:          orderResp.ID,
		TotalAmount: orderResp.TotalAmount,
		Status:      orderResp.Status,
	}, nil
}

// NotifyPaymentStatus posts a payment status change to the order service.
func (c *HTTPClient) NotifyPaymentStatus(ctx context.Context, orderID uuid.UUID, update application.PaymentStatusUpdate) error {
	url := fmt.Sprintf("%s/api/orders/%s/payment-update", c.baseURL, orderID)

	payload := statusUpdateRequest{
		PaymentID:        update.PaymentID,
		PaymentReference: update.PaymentReference,
		Status:           string(update.Status),
		Amount:           update.Amount,
		GatewayResponse:  update.GatewayResponse,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error calling order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("order service returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
