package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/nexus"
	"github.com/vibast-solutions/ms-go-checkout/app/provider"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

type ctrlSessionRepo struct {
	createFn              func(ctx context.Context, session *entity.CheckoutSession) error
	findBySessionIDFn     func(ctx context.Context, sessionID string) (*entity.CheckoutSession, error)
	findByTransactionIDFn func(ctx context.Context, transactionID uint64) (*entity.CheckoutSession, error)
	findByInvoiceIDFn     func(ctx context.Context, invoiceID uint64) (*entity.CheckoutSession, error)
	listFn                func(ctx context.Context, filter repository.SessionFilter) ([]*entity.CheckoutSession, error)
	markCompleteFn        func(ctx context.Context, sessionID string, now time.Time) (bool, error)
	cancelByTransactionFn func(ctx context.Context, transactionID uint64, now time.Time) (bool, error)
}

func (r *ctrlSessionRepo) Create(ctx context.Context, session *entity.CheckoutSession) error {
	if r.createFn != nil {
		return r.createFn(ctx, session)
	}
	return nil
}

func (r *ctrlSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*entity.CheckoutSession, error) {
	if r.findBySessionIDFn != nil {
		return r.findBySessionIDFn(ctx, sessionID)
	}
	return nil, nil
}

func (r *ctrlSessionRepo) FindByTransactionID(ctx context.Context, transactionID uint64) (*entity.CheckoutSession, error) {
	if r.findByTransactionIDFn != nil {
		return r.findByTransactionIDFn(ctx, transactionID)
	}
	return nil, nil
}

func (r *ctrlSessionRepo) FindByInvoiceID(ctx context.Context, invoiceID uint64) (*entity.CheckoutSession, error) {
	if r.findByInvoiceIDFn != nil {
		return r.findByInvoiceIDFn(ctx, invoiceID)
	}
	return nil, nil
}

func (r *ctrlSessionRepo) List(ctx context.Context, filter repository.SessionFilter) ([]*entity.CheckoutSession, error) {
	if r.listFn != nil {
		return r.listFn(ctx, filter)
	}
	return []*entity.CheckoutSession{}, nil
}

func (r *ctrlSessionRepo) MarkComplete(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	if r.markCompleteFn != nil {
		return r.markCompleteFn(ctx, sessionID, now)
	}
	return true, nil
}

func (r *ctrlSessionRepo) MarkRefunded(context.Context, string, time.Time) (bool, error) {
	return true, nil
}

func (r *ctrlSessionRepo) MarkFailed(context.Context, string, time.Time) (bool, error) {
	return true, nil
}

func (r *ctrlSessionRepo) MarkFailedByTransaction(context.Context, uint64, time.Time) (bool, error) {
	return true, nil
}

func (r *ctrlSessionRepo) CancelByTransaction(ctx context.Context, transactionID uint64, now time.Time) (bool, error) {
	if r.cancelByTransactionFn != nil {
		return r.cancelByTransactionFn(ctx, transactionID, now)
	}
	return true, nil
}

func (r *ctrlSessionRepo) ListStalePending(context.Context, time.Time, int32) ([]*entity.CheckoutSession, error) {
	return []*entity.CheckoutSession{}, nil
}

type ctrlEventRepo struct{}

func (r *ctrlEventRepo) Create(context.Context, *entity.SessionEvent) error {
	return nil
}

type ctrlDeliveryRepo struct{}

func (r *ctrlDeliveryRepo) Create(context.Context, *entity.WebhookDelivery) error {
	return nil
}

func (r *ctrlDeliveryRepo) ListRecent(context.Context, int32) ([]*entity.WebhookDelivery, error) {
	return []*entity.WebhookDelivery{}, nil
}

type ctrlCheckout struct {
	createErr error
}

func (p *ctrlCheckout) CreateCheckoutSession(context.Context, *provider.CreateSessionInput) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	return "cs_test_1", nil
}

func (p *ctrlCheckout) CheckoutURL(sessionID string) string {
	return "https://moneymotion.example/checkout/" + sessionID
}

type ctrlPlatform struct {
	approveErr error
	txErr      error
}

func (p *ctrlPlatform) GetInvoice(_ context.Context, invoiceID uint64) (*nexus.Invoice, error) {
	return &nexus.Invoice{
		ID:          invoiceID,
		Total:       &nexus.Money{Currency: "USD", Amount: "19.99"},
		ViewURL:     "https://nexus.example/invoices/5",
		CheckoutURL: "https://nexus.example/checkout",
	}, nil
}

func (p *ctrlPlatform) GetTransaction(_ context.Context, transactionID uint64) (*nexus.Transaction, error) {
	if p.txErr != nil {
		return nil, p.txErr
	}
	return &nexus.Transaction{ID: transactionID, InvoiceID: 5}, nil
}

func (p *ctrlPlatform) ApproveTransaction(context.Context, uint64) error {
	return p.approveErr
}

func (p *ctrlPlatform) RefundTransaction(context.Context, uint64) error {
	return nil
}

func newServiceForTest(repo *ctrlSessionRepo, webhookSecret string) *service.CheckoutService {
	return service.NewCheckoutService(
		repo,
		&ctrlEventRepo{},
		&ctrlDeliveryRepo{},
		&ctrlCheckout{},
		&ctrlPlatform{},
		config.WebhookConfig{TimestampTolerance: 5 * time.Minute, RequireTimestamp: true, RateLimit: 100, RateWindow: time.Minute},
		config.SessionsConfig{ReturnTokenSecret: "return-secret", PendingTimeout: time.Hour, JobBatchSize: 100},
		webhookSecret,
		"https://gateway.example",
	)
}

func newControllerForTest(repo *ctrlSessionRepo) *CheckoutController {
	return NewCheckoutController(newServiceForTest(repo, "whsec"))
}

func TestCreateSessionBadBody(t *testing.T) {
	ctrl := newControllerForTest(&ctrlSessionRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout-sessions", bytes.NewBufferString("{bad"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := ctrl.CreateSession(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateSessionValidationError(t *testing.T) {
	ctrl := newControllerForTest(&ctrlSessionRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout-sessions", bytes.NewBufferString(`{"transaction_id":42}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.CreateSession(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateSessionSuccess(t *testing.T) {
	ctrl := newControllerForTest(&ctrlSessionRepo{})
	e := echo.New()
	body := `{"transaction_id":42,"invoice_id":5,"member_id":7,"email":"buyer@example.com","currency":"USD","line_items":[{"name":"Widget","price_cents":1999,"quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/checkout-sessions", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.CreateSession(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.CreateSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Session == nil || payload.Session.SessionId != "cs_test_1" {
		t.Fatalf("unexpected session payload: %+v", payload.Session)
	}
	if payload.CheckoutUrl != "https://moneymotion.example/checkout/cs_test_1" {
		t.Fatalf("unexpected checkout url %q", payload.CheckoutUrl)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	ctrl := newControllerForTest(&ctrlSessionRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/checkout-sessions/cs_missing", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("sessionID")
	ctx.SetParamValues("cs_missing")

	_ = ctrl.GetSession(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetSessionSuccess(t *testing.T) {
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
	ctrl := newControllerForTest(repo)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/checkout-sessions/cs_test_1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("sessionID")
	ctx.SetParamValues("cs_test_1")

	_ = ctrl.GetSession(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.SessionEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Session == nil || payload.Session.TransactionId != 42 {
		t.Fatalf("unexpected payload: %+v", payload.Session)
	}
}

func TestListSessionsInvalidLimit(t *testing.T) {
	ctrl := newControllerForTest(&ctrlSessionRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/checkout-sessions?limit=9999", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.ListSessions(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListSessionsSuccess(t *testing.T) {
	now := time.Now().UTC()
	repo := &ctrlSessionRepo{listFn: func(context.Context, repository.SessionFilter) ([]*entity.CheckoutSession, error) {
		return []*entity.CheckoutSession{{
			SessionID:     "cs_test_1",
			TransactionID: 42,
			InvoiceID:     5,
			Status:        entity.SessionStatusComplete,
			CreatedAt:     now,
			UpdatedAt:     now,
		}}, nil
	}}
	ctrl := newControllerForTest(repo)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/checkout-sessions?status=complete", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.ListSessions(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCancelSessionNotFound(t *testing.T) {
	ctrl := newControllerForTest(&ctrlSessionRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout-sessions/cancel/42", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("transactionID")
	ctx.SetParamValues("42")

	_ = ctrl.CancelSession(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelSessionBadTransactionID(t *testing.T) {
	ctrl := newControllerForTest(&ctrlSessionRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/checkout-sessions/cancel/abc", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("transactionID")
	ctx.SetParamValues("abc")

	_ = ctrl.CancelSession(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
