package types

import (
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Signature headers the provider is known to send, first present
// wins.
var signatureHeaders = []string{"X-Webhook-Signature", "X-Signature", "X-MM-Signature"}

type WebhookRequest struct {
	Payload    []byte
	Signature  string
	SourceAddr string
}

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	signature := ""
	for _, header := range signatureHeaders {
		if value := strings.TrimSpace(ctx.Request().Header.Get(header)); value != "" {
			signature = value
			break
		}
	}

	// RealIP honors X-Forwarded-For when present, else the socket
	// address.
	return &WebhookRequest{
		Payload:    rawBody,
		Signature:  signature,
		SourceAddr: ctx.RealIP(),
	}, nil
}

func (r *WebhookRequest) GetPayload() []byte {
	if r == nil {
		return nil
	}
	return r.Payload
}

func (r *WebhookRequest) GetSignature() string {
	if r == nil {
		return ""
	}
	return r.Signature
}

func (r *WebhookRequest) GetSourceAddr() string {
	if r == nil {
		return ""
	}
	return r.SourceAddr
}

const (
	ReturnActionSuccess = "success"
	ReturnActionCancel  = "cancel"
	ReturnActionFailure = "failure"
)

type ReturnRequest struct {
	Action        string
	TransactionId uint64
	MemberId      uint64
	Token         string
}

func NewReturnRequestFromContext(ctx echo.Context, action string) *ReturnRequest {
	req := &ReturnRequest{
		Action: action,
		Token:  strings.TrimSpace(ctx.QueryParam("csrf_token")),
	}

	if id, err := strconv.ParseUint(strings.TrimSpace(ctx.QueryParam("t")), 10, 64); err == nil {
		req.TransactionId = id
	}
	if id, err := strconv.ParseUint(strings.TrimSpace(ctx.QueryParam("m")), 10, 64); err == nil {
		req.MemberId = id
	}

	return req
}

func (r *ReturnRequest) GetAction() string {
	if r == nil {
		return ""
	}
	return r.Action
}

func (r *ReturnRequest) GetTransactionId() uint64 {
	if r == nil {
		return 0
	}
	return r.TransactionId
}

func (r *ReturnRequest) GetMemberId() uint64 {
	if r == nil {
		return 0
	}
	return r.MemberId
}

func (r *ReturnRequest) GetToken() string {
	if r == nil {
		return ""
	}
	return r.Token
}
