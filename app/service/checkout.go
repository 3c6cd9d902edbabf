package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/app/nexus"
	"github.com/vibast-solutions/ms-go-checkout/app/provider"
	"github.com/vibast-solutions/ms-go-checkout/app/ratelimit"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/app/token"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

const defaultBatchSize = int32(100)

type createSessionRequest interface {
	GetTransactionId() uint64
	GetInvoiceId() uint64
	GetMemberId() uint64
	GetEmail() string
	GetCurrency() string
	GetDescription() string
	GetLineItems() []types.LineItemInput
}

type returnRequest interface {
	GetAction() string
	GetTransactionId() uint64
	GetMemberId() uint64
	GetToken() string
}

type sessionRepository interface {
	Create(ctx context.Context, session *entity.CheckoutSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*entity.CheckoutSession, error)
	FindByTransactionID(ctx context.Context, transactionID uint64) (*entity.CheckoutSession, error)
	FindByInvoiceID(ctx context.Context, invoiceID uint64) (*entity.CheckoutSession, error)
	List(ctx context.Context, filter repository.SessionFilter) ([]*entity.CheckoutSession, error)
	MarkComplete(ctx context.Context, sessionID string, now time.Time) (bool, error)
	MarkRefunded(ctx context.Context, sessionID string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, sessionID string, now time.Time) (bool, error)
	MarkFailedByTransaction(ctx context.Context, transactionID uint64, now time.Time) (bool, error)
	CancelByTransaction(ctx context.Context, transactionID uint64, now time.Time) (bool, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.CheckoutSession, error)
}

type sessionEventRepository interface {
	Create(ctx context.Context, event *entity.SessionEvent) error
}

type webhookDeliveryRepository interface {
	Create(ctx context.Context, delivery *entity.WebhookDelivery) error
	ListRecent(ctx context.Context, limit int32) ([]*entity.WebhookDelivery, error)
}

type checkoutProvider interface {
	CreateCheckoutSession(ctx context.Context, input *provider.CreateSessionInput) (string, error)
	CheckoutURL(sessionID string) string
}

type platformClient interface {
	GetInvoice(ctx context.Context, invoiceID uint64) (*nexus.Invoice, error)
	GetTransaction(ctx context.Context, transactionID uint64) (*nexus.Transaction, error)
	ApproveTransaction(ctx context.Context, transactionID uint64) error
	RefundTransaction(ctx context.Context, transactionID uint64) error
}

type CheckoutService struct {
	sessionRepo  sessionRepository
	eventRepo    sessionEventRepository
	deliveryRepo webhookDeliveryRepository
	checkout     checkoutProvider
	platform     platformClient
	limiter      *ratelimit.Limiter
	webhookCfg   config.WebhookConfig
	sessionsCfg  config.SessionsConfig
	secret       string
	appBaseURL   string
	logger       logrus.FieldLogger
}

func NewCheckoutService(
	sessionRepo sessionRepository,
	eventRepo sessionEventRepository,
	deliveryRepo webhookDeliveryRepository,
	checkout checkoutProvider,
	platform platformClient,
	webhookCfg config.WebhookConfig,
	sessionsCfg config.SessionsConfig,
	webhookSecret string,
	appBaseURL string,
) *CheckoutService {
	return &CheckoutService{
		sessionRepo:  sessionRepo,
		eventRepo:    eventRepo,
		deliveryRepo: deliveryRepo,
		checkout:     checkout,
		platform:     platform,
		limiter:      ratelimit.NewLimiter(webhookCfg.RateLimit, webhookCfg.RateWindow),
		webhookCfg:   webhookCfg,
		sessionsCfg:  sessionsCfg,
		secret:       strings.TrimSpace(webhookSecret),
		appBaseURL:   strings.TrimRight(strings.TrimSpace(appBaseURL), "/"),
		logger:       factory.NewModuleLogger("checkout-service"),
	}
}

// CreateCheckoutSession creates a hosted checkout session with the
// provider and records it locally with status pending, before the
// customer is redirected. Returns the session and the hosted checkout
// URL.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req createSessionRequest) (*entity.CheckoutSession, string, error) {
	if req.GetTransactionId() == 0 || req.GetInvoiceId() == 0 {
		return nil, "", ErrInvalidRequest
	}

	// One active session per transaction: re-use a pending session
	// instead of creating a duplicate with the provider.
	existing, err := s.sessionRepo.FindByTransactionID(ctx, req.GetTransactionId())
	if err != nil {
		return nil, "", err
	}
	if existing != nil && existing.Status == entity.SessionStatusPending {
		return existing, s.checkout.CheckoutURL(existing.SessionID), nil
	}

	lineItems, amountCents, err := s.buildLineItems(ctx, req)
	if err != nil {
		return nil, "", err
	}

	description := strings.TrimSpace(req.GetDescription())
	if description == "" {
		description = fmt.Sprintf("Invoice #%d", req.GetInvoiceId())
	}

	sessionID, err := s.checkout.CreateCheckoutSession(ctx, &provider.CreateSessionInput{
		Description: description,
		URLs:        s.returnURLs(req.GetTransactionId(), req.GetMemberId()),
		Email:       strings.TrimSpace(req.GetEmail()),
		Currency:    strings.ToUpper(strings.TrimSpace(req.GetCurrency())),
		LineItems:   lineItems,
		Metadata: &provider.SessionMetadata{
			TransactionID: req.GetTransactionId(),
			InvoiceID:     req.GetInvoiceId(),
		},
	})
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	session := &entity.CheckoutSession{
		SessionID:     sessionID,
		TransactionID: req.GetTransactionId(),
		InvoiceID:     req.GetInvoiceId(),
		MemberID:      req.GetMemberId(),
		Email:         strings.TrimSpace(req.GetEmail()),
		Description:   description,
		AmountCents:   amountCents,
		Currency:      strings.ToUpper(strings.TrimSpace(req.GetCurrency())),
		Status:        entity.SessionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyExists) {
			return nil, "", ErrSessionAlreadyExists
		}
		return nil, "", err
	}

	metrics.SessionsCreated.Inc()
	s.recordEvent(ctx, session.SessionID, "session_created", nil, session.Status, nil, now)

	return session, s.checkout.CheckoutURL(sessionID), nil
}

func (s *CheckoutService) buildLineItems(ctx context.Context, req createSessionRequest) ([]provider.LineItem, int64, error) {
	items := make([]provider.LineItem, 0, len(req.GetLineItems()))
	var total int64

	for _, item := range req.GetLineItems() {
		description := strings.TrimSpace(item.Description)
		if description == "" {
			description = item.Name
		}
		items = append(items, provider.LineItem{
			Name:                item.Name,
			Description:         description,
			PricePerItemInCents: item.PriceCents,
			Quantity:            item.Quantity,
		})
		total += item.PriceCents * item.Quantity
	}

	// No explicit line items: bill the invoice total as one item,
	// pulling the amount from the host platform.
	if len(items) == 0 {
		invoice, err := s.platform.GetInvoice(ctx, req.GetInvoiceId())
		if err != nil {
			if errors.Is(err, nexus.ErrNotFound) {
				return nil, 0, ErrInvalidRequest
			}
			return nil, 0, err
		}

		totalCents := invoiceTotalCents(invoice)
		if totalCents <= 0 {
			return nil, 0, fmt.Errorf("%w: invoice has no amount to pay", ErrInvalidRequest)
		}

		name := fmt.Sprintf("Invoice #%d", req.GetInvoiceId())
		items = append(items, provider.LineItem{
			Name:                name,
			Description:         "Payment for " + name,
			PricePerItemInCents: totalCents,
			Quantity:            1,
		})
		total = totalCents
	}

	if total <= 0 {
		return nil, 0, fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	}

	return items, total, nil
}

func (s *CheckoutService) returnURLs(transactionID, memberID uint64) provider.ReturnURLs {
	return provider.ReturnURLs{
		Success: s.returnURL(types.ReturnActionSuccess, transactionID, memberID),
		Cancel:  s.returnURL(types.ReturnActionCancel, transactionID, memberID),
		Failure: s.returnURL(types.ReturnActionFailure, transactionID, memberID),
	}
}

func (s *CheckoutService) returnURL(action string, transactionID, memberID uint64) string {
	actionToken := token.Generate(transactionID, action, memberID, s.sessionsCfg.ReturnTokenSecret)
	return fmt.Sprintf("%s/gateway/return/%s?t=%d&m=%d&csrf_token=%s", s.appBaseURL, action, transactionID, memberID, actionToken)
}

func (s *CheckoutService) GetSession(ctx context.Context, sessionID string) (*entity.CheckoutSession, error) {
	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

type listSessionsRequest interface {
	GetTransactionId() uint64
	GetInvoiceId() uint64
	GetStatus() string
	GetLimit() int32
	GetOffset() int32
}

func (s *CheckoutService) ListSessions(ctx context.Context, req listSessionsRequest) ([]*entity.CheckoutSession, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultBatchSize
	}

	return s.sessionRepo.List(ctx, repository.SessionFilter{
		TransactionID: req.GetTransactionId(),
		InvoiceID:     req.GetInvoiceId(),
		Status:        strings.TrimSpace(req.GetStatus()),
		Limit:         limit,
		Offset:        req.GetOffset(),
	})
}

// CancelSession is the gateway void path: a pending session for the
// transaction is marked cancelled. Terminal sessions are refused.
func (s *CheckoutService) CancelSession(ctx context.Context, req interface{ GetTransactionId() uint64 }) (*entity.CheckoutSession, error) {
	session, err := s.sessionRepo.FindByTransactionID(ctx, req.GetTransactionId())
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if entity.TerminalStatus(session.Status) {
		return nil, fmt.Errorf("%w: only pending sessions can be cancelled", ErrInvalidStatus)
	}

	now := time.Now().UTC()
	cancelled, err := s.sessionRepo.CancelByTransaction(ctx, req.GetTransactionId(), now)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, fmt.Errorf("%w: only pending sessions can be cancelled", ErrInvalidStatus)
	}

	oldStatus := session.Status
	session.Status = entity.SessionStatusCancelled
	session.UpdatedAt = now
	s.recordEvent(ctx, session.SessionID, "session_cancelled", &oldStatus, session.Status, nil, now)

	return session, nil
}

// HandleReturn validates the action token on a browser redirect and
// resolves the URL the customer should land on. The member identity
// comes from the request, never from ambient session state; 0 means
// guest.
func (s *CheckoutService) HandleReturn(ctx context.Context, req returnRequest) (string, error) {
	if !token.Validate(req.GetTransactionId(), req.GetAction(), req.GetMemberId(), s.sessionsCfg.ReturnTokenSecret, req.GetToken()) {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": req.GetTransactionId(),
			"action":         req.GetAction(),
		}).Warn("Return URL token validation failed")
		return "", ErrInvalidToken
	}

	now := time.Now().UTC()

	// A failure redirect is local bookkeeping only; the webhook
	// remains authoritative for the terminal state.
	if req.GetAction() == types.ReturnActionFailure {
		if _, err := s.sessionRepo.MarkFailedByTransaction(ctx, req.GetTransactionId(), now); err != nil {
			s.logger.WithError(err).Warn("Failed to mark session failed on return")
		}
	}

	transaction, err := s.platform.GetTransaction(ctx, req.GetTransactionId())
	if err != nil {
		return "", s.returnLookupError(req, "transaction", err)
	}

	invoice, err := s.platform.GetInvoice(ctx, transaction.InvoiceID)
	if err != nil {
		return "", s.returnLookupError(req, "invoice", err)
	}

	if req.GetAction() == types.ReturnActionSuccess {
		return invoice.ViewURL, nil
	}
	return invoice.CheckoutURL, nil
}

// returnLookupError folds platform lookup failures into the
// not-found sentinel the controller redirects on, but a failure that
// is not a plain missing record is a platform outage and gets logged
// here before the detail is dropped.
func (s *CheckoutService) returnLookupError(req returnRequest, record string, err error) error {
	if errors.Is(err, nexus.ErrNotFound) {
		return ErrSessionNotFound
	}
	s.logger.WithError(err).WithFields(logrus.Fields{
		"transaction_id": req.GetTransactionId(),
		"action":         req.GetAction(),
		"record":         record,
	}).Error("Platform lookup failed on return")
	return ErrSessionNotFound
}

// ListWebhookDeliveries exposes the delivery log so rejected
// deliveries can be reviewed and replayed by an operator.
func (s *CheckoutService) ListWebhookDeliveries(ctx context.Context, limit int32) ([]*entity.WebhookDelivery, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultBatchSize
	}
	return s.deliveryRepo.ListRecent(ctx, limit)
}

func (s *CheckoutService) batchSize() int32 {
	if s.sessionsCfg.JobBatchSize > 0 {
		return s.sessionsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func (s *CheckoutService) recordEvent(ctx context.Context, sessionID, eventType string, oldStatus *string, newStatus string, detail *string, now time.Time) {
	event := &entity.SessionEvent{
		SessionID: sessionID,
		EventType: eventType,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Detail:    detail,
		CreatedAt: now,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"event_type": eventType,
		}).Error("Failed to record session event")
	}
}

func invoiceTotalCents(invoice *nexus.Invoice) int64 {
	if invoice == nil || invoice.Total == nil {
		return 0
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(invoice.Total.Amount))
	if err != nil {
		return 0
	}
	return amount.Shift(2).Round(0).IntPart()
}
