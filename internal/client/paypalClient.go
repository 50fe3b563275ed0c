package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"library-service/internal/config"
	"library-service/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentProvider is the external payment processor. A checkout session is
// created for a fixed amount and later queried to learn whether it was paid.
type PaymentProvider interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

type CreateSessionRequest struct {
	AmountCents int64
	Currency    string
	Description string
	ReferenceID string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type SessionStatus struct {
	ID     string
	Status string
	Paid   bool
}

var ErrWebhookSignature = errors.New("paypal webhook signature verification failed")

const (
	orderStatusApproved  = "APPROVED"
	orderStatusCompleted = "COMPLETED"
)

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
	webhookID          string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type paypalOrderResult struct {
	ID     string             `json:"id"`
	Links  []model.PaypalLink `json:"links"`
	Status string             `json:"status"`
}

func NewPaypalClient(paypalCfg *config.Paypal) PaymentProvider {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:         paypalCfg.BaseApiURL,
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
		webhookID:          paypalCfg.WebhookID,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal oauth error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode oauth response: %w", err)
	}

	c.accessToken = res.AccessToken
	// refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(res.ExpiresIn)*time.Second - time.Minute)

	return c.accessToken, nil
}

func (c *paypalClientImpl) do(ctx context.Context, method, path string, payload any, headers map[string]string, out any) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get paypal access token: %w", err)
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal error %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

// CreateSession creates a CAPTURE order. The order id is the session id and
// the approve link is where the customer pays.
func (c *paypalClientImpl) CreateSession(ctx context.Context, in *CreateSessionRequest) (*CheckoutSession, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": in.ReferenceID,
				"description":  in.Description,
				"amount": map[string]string{
					"currency_code": in.Currency,
					"value":         decimal.New(in.AmountCents, -2).StringFixed(2),
				},
			},
		},
		"application_context": map[string]string{
			"return_url":  in.SuccessURL,
			"cancel_url":  in.CancelURL,
			"user_action": "PAY_NOW",
		},
	}

	var result paypalOrderResult
	err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload,
		map[string]string{"PayPal-Request-Id": uuid.NewString()}, &result)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	approveURL := _extractApproveURL(result.Links)
	if result.ID == "" || approveURL == "" {
		return nil, fmt.Errorf("paypal create order: response without id or approve link")
	}

	return &CheckoutSession{
		ID:  result.ID,
		URL: approveURL,
	}, nil
}

// RetrieveSession reports whether the order has been paid. An approved but
// uncaptured order is captured first; the request id makes the capture
// idempotent across retries.
func (c *paypalClientImpl) RetrieveSession(ctx context.Context, orderID string) (*SessionStatus, error) {
	var order paypalOrderResult
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, nil, &order); err != nil {
		return nil, fmt.Errorf("paypal get order: %w", err)
	}

	if order.Status == orderStatusApproved {
		var captured paypalOrderResult
		err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", nil,
			map[string]string{"PayPal-Request-Id": "capture-" + orderID}, &captured)
		if err != nil {
			return nil, fmt.Errorf("paypal capture order: %w", err)
		}
		order.Status = captured.Status
	}

	return &SessionStatus{
		ID:     orderID,
		Status: order.Status,
		Paid:   order.Status == orderStatusCompleted,
	}, nil
}

// VerifyWebhookSignature asks PayPal to verify a webhook delivery. Without a
// configured webhook id verification is skipped.
func (c *paypalClientImpl) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	if c.webhookID == "" {
		return nil
	}

	payload := map[string]interface{}{
		"auth_algo":         headers.Get("PAYPAL-AUTH-ALGO"),
		"cert_url":          headers.Get("PAYPAL-CERT-URL"),
		"transmission_id":   headers.Get("PAYPAL-TRANSMISSION-ID"),
		"transmission_sig":  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		"transmission_time": headers.Get("PAYPAL-TRANSMISSION-TIME"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, nil, &res); err != nil {
		return fmt.Errorf("paypal verify webhook: %w", err)
	}
	if res.VerificationStatus != "SUCCESS" {
		return ErrWebhookSignature
	}
	return nil
}

func _extractApproveURL(links []model.PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}
