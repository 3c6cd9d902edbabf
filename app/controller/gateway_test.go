package controller

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/token"
)

func newGatewayForTest(repo *ctrlSessionRepo) *GatewayController {
	return NewGatewayController(newServiceForTest(repo, "whsec"), "https://gateway.example")
}

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte("whsec"))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookContext(e *echo.Echo, body []byte, signature string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/gateway/webhook", bytes.NewBuffer(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	req.RemoteAddr = "203.0.113.9:4711"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleWebhookEmptyBody(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	ctx, rec := webhookContext(e, nil, "")

	_ = gateway.HandleWebhook(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleWebhookBadSignature(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	body := []byte(`{"event":"checkout_session:complete"}`)
	ctx, rec := webhookContext(e, body, "forged")

	_ = gateway.HandleWebhook(ctx)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	ctx, rec := webhookContext(e, []byte(`{"event":"checkout_session:complete"}`), "")

	_ = gateway.HandleWebhook(ctx)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleWebhookStaleTimestamp(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	body := []byte(fmt.Sprintf(`{"event":"checkout_session:complete","timestamp":%d,"checkoutSession":{"id":"cs_test_1"}}`,
		time.Now().Add(-time.Hour).Unix()))
	ctx, rec := webhookContext(e, body, signWebhookBody(body))

	_ = gateway.HandleWebhook(ctx)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleWebhookUnknownEventAcknowledged(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	body := []byte(fmt.Sprintf(`{"event":"checkout_session:mystery","timestamp":%d}`, time.Now().Unix()))
	ctx, rec := webhookContext(e, body, signWebhookBody(body))

	_ = gateway.HandleWebhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestHandleWebhookCompleteProcessed(t *testing.T) {
	now := time.Now().UTC()
	repo := &ctrlSessionRepo{findBySessionIDFn: func(_ context.Context, sessionID string) (*entity.CheckoutSession, error) {
		return &entity.CheckoutSession{
			SessionID:     sessionID,
			TransactionID: 42,
			InvoiceID:     5,
			Status:        entity.SessionStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, nil
	}}
	gateway := newGatewayForTest(repo)
	e := echo.New()
	body := []byte(fmt.Sprintf(`{"event":"checkout_session:complete","timestamp":%d,"checkoutSession":{"id":"cs_test_1"}}`, time.Now().Unix()))
	ctx, rec := webhookContext(e, body, signWebhookBody(body))

	_ = gateway.HandleWebhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestReturnSuccessRedirectsToInvoice(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	tok := token.Generate(42, "success", 7, "return-secret")
	req := httptest.NewRequest(http.MethodGet, "/gateway/return/success?t=42&m=7&csrf_token="+tok, nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = gateway.ReturnSuccess(ctx)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get(echo.HeaderLocation)
	if location != "https://nexus.example/invoices/5?mm_msg=payment_success" {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestReturnCancelRedirectsToCheckout(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	tok := token.Generate(42, "cancel", 7, "return-secret")
	req := httptest.NewRequest(http.MethodGet, "/gateway/return/cancel?t=42&m=7&csrf_token="+tok, nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = gateway.ReturnCancel(ctx)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get(echo.HeaderLocation)
	if location != "https://nexus.example/checkout?mm_msg=payment_cancelled" {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestReturnInvalidTokenRedirectsToLanding(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/gateway/return/success?t=42&m=7&csrf_token=forged", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = gateway.ReturnSuccess(ctx)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get(echo.HeaderLocation)
	if location != "https://gateway.example?mm_msg=payment_processing" {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestReturnGuestMemberToken(t *testing.T) {
	gateway := newGatewayForTest(&ctrlSessionRepo{})
	e := echo.New()
	tok := token.Generate(42, "success", token.GuestMemberID, "return-secret")
	req := httptest.NewRequest(http.MethodGet, "/gateway/return/success?t=42&csrf_token="+tok, nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = gateway.ReturnSuccess(ctx)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get(echo.HeaderLocation)
	if location != "https://nexus.example/invoices/5?mm_msg=payment_success" {
		t.Fatalf("unexpected redirect %q", location)
	}
}
