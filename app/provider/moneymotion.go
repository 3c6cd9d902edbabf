package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const createCheckoutSessionEndpoint = "checkoutSessions.createCheckoutSession"

type MoneyMotionConfig struct {
	APIKey          string
	APIBaseURL      string
	CheckoutBaseURL string
	HTTPTimeout     time.Duration
}

type MoneyMotionClient struct {
	cfg    MoneyMotionConfig
	client *http.Client
}

func NewMoneyMotionClient(cfg MoneyMotionConfig) *MoneyMotionClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.moneymotion.io"
	}
	if strings.TrimSpace(cfg.CheckoutBaseURL) == "" {
		cfg.CheckoutBaseURL = "https://moneymotion.io"
	}

	return &MoneyMotionClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type LineItem struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	PricePerItemInCents int64  `json:"pricePerItemInCents"`
	Quantity            int64  `json:"quantity"`
}

type ReturnURLs struct {
	Success string `json:"success"`
	Cancel  string `json:"cancel"`
	Failure string `json:"failure"`
}

// SessionMetadata links a provider session back to the host
// platform's records. Webhook handlers use it as the fallback
// identity when the session id alone cannot be resolved.
type SessionMetadata struct {
	TransactionID uint64 `json:"transaction_id,omitempty"`
	InvoiceID     uint64 `json:"invoice_id,omitempty"`
}

type CreateSessionInput struct {
	Description string
	URLs        ReturnURLs
	Email       string
	Currency    string
	LineItems   []LineItem
	Metadata    *SessionMetadata
}

// CreateCheckoutSession creates a hosted checkout session and returns
// the provider-issued session id.
func (c *MoneyMotionClient) CreateCheckoutSession(ctx context.Context, input *CreateSessionInput) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.New("moneymotion api key is not configured")
	}
	if len(input.LineItems) == 0 {
		return "", errors.New("at least one line item is required")
	}

	payload := map[string]interface{}{
		"description": input.Description,
		"urls":        input.URLs,
		"userInfo":    map[string]string{"email": input.Email},
		"lineItems":   input.LineItems,
	}
	if input.Metadata != nil {
		payload["metadata"] = input.Metadata
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	body, err := c.postJSON(ctx, createCheckoutSessionEndpoint, map[string]interface{}{"json": payload}, map[string]string{
		"x-currency": currency,
	})
	if err != nil {
		return "", err
	}

	var response struct {
		Result struct {
			Data struct {
				JSON struct {
					CheckoutSessionID string `json:"checkoutSessionId"`
				} `json:"json"`
			} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	sessionID := strings.TrimSpace(response.Result.Data.JSON.CheckoutSessionID)
	if sessionID == "" {
		return "", errors.New("moneymotion did not return a checkout session id")
	}

	return sessionID, nil
}

// CheckoutURL builds the hosted payment page URL the customer is
// redirected to.
func (c *MoneyMotionClient) CheckoutURL(sessionID string) string {
	base := strings.TrimRight(strings.TrimSpace(c.cfg.CheckoutBaseURL), "/")
	return base + "/checkout/" + url.PathEscape(sessionID)
}

func (c *MoneyMotionClient) postJSON(ctx context.Context, endpoint string, payload interface{}, extraHeaders map[string]string) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	requestURL := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("moneymotion request failed: endpoint=%s status=%d body=%s", endpoint, resp.StatusCode, apiErrorMessage(body))
	}

	return body, nil
}

func apiErrorMessage(body []byte) string {
	var decoded struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &decoded) == nil && len(decoded.Error) > 0 {
		var msg string
		if json.Unmarshal(decoded.Error, &msg) == nil {
			return msg
		}
		return string(decoded.Error)
	}
	return string(body)
}

// VerifySignature authenticates a webhook delivery: the provider
// signs the raw body with HMAC-SHA512 and sends the base64 digest in
// a signature header. Comparison is constant-time; an empty signature
// or secret never verifies.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	computed := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(computed), []byte(signature))
}
