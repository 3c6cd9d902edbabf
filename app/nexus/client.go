// Package nexus is a client for the host commerce platform's REST
// API: invoice/transaction lookups and the payment side effects
// (approve, refund) triggered by webhook reconciliation.
package nexus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	transactionStatusApproved = "okay"
	transactionStatusRefunded = "rfnd"
)

var ErrNotFound = errors.New("nexus record not found")

type Config struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type Money struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type InvoiceItem struct {
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	ItemPrice *Money `json:"itemPrice"`
	LinePrice *Money `json:"linePrice"`
}

type Invoice struct {
	ID          uint64        `json:"id"`
	Title       string        `json:"title"`
	Status      string        `json:"status"`
	Total       *Money        `json:"total"`
	Items       []InvoiceItem `json:"items"`
	ViewURL     string        `json:"viewUrl"`
	CheckoutURL string        `json:"checkoutUrl"`
}

type Transaction struct {
	ID        uint64 `json:"id"`
	InvoiceID uint64 `json:"invoiceId"`
	Status    string `json:"status"`
	Amount    *Money `json:"amount"`
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID uint64) (*Invoice, error) {
	var invoice Invoice
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/nexus/invoices/%d", invoiceID), nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (c *Client) GetTransaction(ctx context.Context, transactionID uint64) (*Transaction, error) {
	var transaction Transaction
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/nexus/transactions/%d", transactionID), nil, &transaction); err != nil {
		return nil, err
	}
	return &transaction, nil
}

// ApproveTransaction credits the transaction on the host platform.
// The platform treats repeated approval of an already-approved
// transaction as a no-op, but callers must still gate on local state:
// this is the side effect that may only fire once per session.
func (c *Client) ApproveTransaction(ctx context.Context, transactionID uint64) error {
	form := url.Values{}
	form.Set("status", transactionStatusApproved)
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/nexus/transactions/%d", transactionID), form, nil)
}

func (c *Client) RefundTransaction(ctx context.Context, transactionID uint64) error {
	form := url.Values{}
	form.Set("status", transactionStatusRefunded)
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/nexus/transactions/%d", transactionID), form, nil)
}

func (c *Client) request(ctx context.Context, method, endpoint string, form url.Values, out interface{}) error {
	if c.cfg.BaseURL == "" {
		return errors.New("nexus base url is not configured")
	}

	requestURL := c.cfg.BaseURL + "/api" + endpoint

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.APIKey, "")
	req.Header.Set("User-Agent", "ms-go-checkout/1.0")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nexus request failed: endpoint=%s status=%d body=%s", endpoint, resp.StatusCode, truncateBody(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return err
		}
	}

	return nil
}

func truncateBody(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "... (" + strconv.Itoa(len(raw)) + " bytes)"
}
