package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type LineItemInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Quantity    int64  `json:"quantity"`
}

type CreateCheckoutSessionRequest struct {
	TransactionId uint64          `json:"transaction_id"`
	InvoiceId     uint64          `json:"invoice_id"`
	MemberId      uint64          `json:"member_id"`
	Email         string          `json:"email"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
	LineItems     []LineItemInput `json:"line_items"`
}

func NewCreateCheckoutSessionRequestFromContext(ctx echo.Context) (*CreateCheckoutSessionRequest, error) {
	var body CreateCheckoutSessionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Email = strings.TrimSpace(body.Email)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *CreateCheckoutSessionRequest) Validate() error {
	if r.GetTransactionId() == 0 {
		return errors.New("transaction_id is required")
	}
	if r.GetInvoiceId() == 0 {
		return errors.New("invoice_id is required")
	}
	if strings.TrimSpace(r.GetEmail()) == "" || !strings.Contains(r.GetEmail(), "@") {
		return errors.New("a valid email is required")
	}
	if len(strings.TrimSpace(r.GetCurrency())) != 3 {
		return errors.New("currency must be 3 letters")
	}
	for _, item := range r.GetLineItems() {
		if strings.TrimSpace(item.Name) == "" {
			return errors.New("line item name is required")
		}
		if item.PriceCents < 0 {
			return errors.New("line item price_cents must be >= 0")
		}
		if item.Quantity <= 0 {
			return errors.New("line item quantity must be > 0")
		}
	}
	return nil
}

func (r *CreateCheckoutSessionRequest) GetTransactionId() uint64 {
	if r == nil {
		return 0
	}
	return r.TransactionId
}

func (r *CreateCheckoutSessionRequest) GetInvoiceId() uint64 {
	if r == nil {
		return 0
	}
	return r.InvoiceId
}

func (r *CreateCheckoutSessionRequest) GetMemberId() uint64 {
	if r == nil {
		return 0
	}
	return r.MemberId
}

func (r *CreateCheckoutSessionRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

func (r *CreateCheckoutSessionRequest) GetCurrency() string {
	if r == nil {
		return ""
	}
	return r.Currency
}

func (r *CreateCheckoutSessionRequest) GetDescription() string {
	if r == nil {
		return ""
	}
	return r.Description
}

func (r *CreateCheckoutSessionRequest) GetLineItems() []LineItemInput {
	if r == nil {
		return nil
	}
	return r.LineItems
}

type GetSessionRequest struct {
	SessionId string
}

func NewGetSessionRequestFromContext(ctx echo.Context) (*GetSessionRequest, error) {
	return &GetSessionRequest{SessionId: strings.TrimSpace(ctx.Param("sessionID"))}, nil
}

func (r *GetSessionRequest) Validate() error {
	if strings.TrimSpace(r.GetSessionId()) == "" {
		return errors.New("session id is required")
	}
	return nil
}

func (r *GetSessionRequest) GetSessionId() string {
	if r == nil {
		return ""
	}
	return r.SessionId
}

type ListSessionsRequest struct {
	TransactionId uint64
	InvoiceId     uint64
	Status        string
	Limit         int32
	Offset        int32
}

func NewListSessionsRequestFromContext(ctx echo.Context) (*ListSessionsRequest, error) {
	req := &ListSessionsRequest{
		Status: strings.TrimSpace(ctx.QueryParam("status")),
		Limit:  100,
		Offset: 0,
	}

	if raw := strings.TrimSpace(ctx.QueryParam("transaction_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.TransactionId = id
	}

	if raw := strings.TrimSpace(ctx.QueryParam("invoice_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.InvoiceId = id
	}

	if raw := strings.TrimSpace(ctx.QueryParam("limit")); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if raw := strings.TrimSpace(ctx.QueryParam("offset")); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListSessionsRequest) Validate() error {
	if r.GetLimit() <= 0 || r.GetLimit() > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.GetOffset() < 0 {
		return errors.New("offset must be >= 0")
	}
	switch r.GetStatus() {
	case "", "pending", "complete", "refunded", "failed", "cancelled":
	default:
		return errors.New("invalid status")
	}
	return nil
}

func (r *ListSessionsRequest) GetTransactionId() uint64 {
	if r == nil {
		return 0
	}
	return r.TransactionId
}

func (r *ListSessionsRequest) GetInvoiceId() uint64 {
	if r == nil {
		return 0
	}
	return r.InvoiceId
}

func (r *ListSessionsRequest) GetStatus() string {
	if r == nil {
		return ""
	}
	return r.Status
}

func (r *ListSessionsRequest) GetLimit() int32 {
	if r == nil {
		return 0
	}
	return r.Limit
}

func (r *ListSessionsRequest) GetOffset() int32 {
	if r == nil {
		return 0
	}
	return r.Offset
}

type CancelSessionRequest struct {
	TransactionId uint64
}

func NewCancelSessionRequestFromContext(ctx echo.Context) (*CancelSessionRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("transactionID"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &CancelSessionRequest{TransactionId: id}, nil
}

func (r *CancelSessionRequest) Validate() error {
	if r.GetTransactionId() == 0 {
		return errors.New("invalid transaction id")
	}
	return nil
}

func (r *CancelSessionRequest) GetTransactionId() uint64 {
	if r == nil {
		return 0
	}
	return r.TransactionId
}
