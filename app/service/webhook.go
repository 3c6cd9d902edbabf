package service

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/app/provider"
)

const (
	webhookEventComplete = "checkout_session:complete"
	webhookEventRefunded = "checkout_session:refunded"
	webhookEventExpired  = "checkout_session:expired"
	webhookEventDisputed = "checkout_session:disputed"
)

type webhookRequest interface {
	GetPayload() []byte
	GetSignature() string
	GetSourceAddr() string
}

type webhookEvent struct {
	Event           string `json:"event"`
	Timestamp       *int64 `json:"timestamp"`
	CheckoutSession struct {
		ID       string                    `json:"id"`
		Status   string                    `json:"status"`
		Metadata *provider.SessionMetadata `json:"metadata"`
	} `json:"checkoutSession"`
}

// HandleWebhook runs the delivery through the gate checks in a fixed
// order (rate limit, body, secret, signature, payload shape,
// timestamp) and only then dispatches on the event type. Events the
// service does not act on are acknowledged so the provider stops
// retrying them.
func (s *CheckoutService) HandleWebhook(ctx context.Context, req webhookRequest) error {
	if !s.limiter.Allow(req.GetSourceAddr()) {
		metrics.WebhookRateLimited.Inc()
		return ErrRateLimited
	}

	payload := req.GetPayload()
	if len(bytes.TrimSpace(payload)) == 0 {
		return ErrEmptyPayload
	}

	if s.secret == "" {
		s.logger.Error("Webhook received but no webhook secret is configured")
		return ErrWebhookNotConfigured
	}

	if !provider.VerifySignature(payload, req.GetSignature(), s.secret) {
		metrics.WebhookSignatureFailures.Inc()
		metrics.WebhookDeliveries.WithLabelValues("", "rejected").Inc()
		s.recordDelivery(ctx, nil, "", req, entity.WebhookDeliveryRejected, "signature verification failed")
		return ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.WebhookDeliveries.WithLabelValues("", "rejected").Inc()
		s.recordDelivery(ctx, nil, "", req, entity.WebhookDeliveryRejected, "malformed payload: "+err.Error())
		return ErrInvalidPayload
	}
	if event.Event == "" {
		metrics.WebhookDeliveries.WithLabelValues("", "rejected").Inc()
		s.recordDelivery(ctx, nil, "", req, entity.WebhookDeliveryRejected, "missing event field")
		return ErrInvalidPayload
	}

	if err := s.checkTimestamp(event.Timestamp); err != nil {
		metrics.WebhookDeliveries.WithLabelValues(event.Event, "rejected").Inc()
		s.recordDelivery(ctx, nil, event.Event, req, entity.WebhookDeliveryRejected, "timestamp outside tolerance")
		return err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"event":       event.Event,
		"session_id":  event.CheckoutSession.ID,
		"source_addr": req.GetSourceAddr(),
	})

	var (
		outcome string
		err     error
	)

	switch event.Event {
	case webhookEventComplete:
		outcome, err = s.handleSessionComplete(ctx, &event, req, logger)
	case webhookEventRefunded:
		outcome, err = s.handleSessionRefunded(ctx, &event, req, logger)
	case webhookEventExpired, webhookEventDisputed:
		outcome, err = s.handleSessionFailed(ctx, &event, req, logger)
	default:
		logger.Info("Ignoring unhandled webhook event")
		s.recordDelivery(ctx, nil, event.Event, req, entity.WebhookDeliveryProcessed, "unhandled event")
		outcome = "ignored"
	}
	if err != nil {
		return err
	}

	metrics.WebhookDeliveries.WithLabelValues(event.Event, outcome).Inc()
	return nil
}

func (s *CheckoutService) checkTimestamp(timestamp *int64) error {
	if timestamp == nil {
		if s.webhookCfg.RequireTimestamp {
			return ErrReplayRejected
		}
		return nil
	}

	drift := time.Since(time.Unix(*timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > s.webhookCfg.TimestampTolerance {
		return ErrReplayRejected
	}
	return nil
}

// handleSessionComplete claims the completion transition before
// approving the transaction on the platform, so concurrent duplicate
// deliveries trigger at most one approval.
func (s *CheckoutService) handleSessionComplete(ctx context.Context, event *webhookEvent, req webhookRequest, logger logrus.FieldLogger) (string, error) {
	session, err := s.lookupSession(ctx, event)
	if err != nil {
		return "", err
	}
	if session == nil {
		logger.Warn("Webhook references no known checkout session")
		s.recordDelivery(ctx, nil, event.Event, req, entity.WebhookDeliveryRejected, "session not found")
		return "unmatched", nil
	}

	now := time.Now().UTC()
	claimed, err := s.sessionRepo.MarkComplete(ctx, session.SessionID, now)
	if err != nil {
		return "", err
	}
	if !claimed {
		logger.WithField("status", session.Status).Info("Session already settled, skipping approval")
		s.recordDelivery(ctx, &session.SessionID, event.Event, req, entity.WebhookDeliveryProcessed, "")
		return "skipped", nil
	}

	oldStatus := session.Status
	s.recordEvent(ctx, session.SessionID, "session_completed", &oldStatus, entity.SessionStatusComplete, nil, now)

	if err := s.platform.ApproveTransaction(ctx, session.TransactionID); err != nil {
		logger.WithError(err).WithField("transaction_id", session.TransactionID).
			Error("Failed to approve transaction after completion")
		metrics.ApprovalFailures.Inc()
		detail := err.Error()
		s.recordEvent(ctx, session.SessionID, "approval_failed", nil, entity.SessionStatusComplete, &detail, now)
		s.recordDelivery(ctx, &session.SessionID, event.Event, req, entity.WebhookDeliveryProcessed, "approval failed: "+detail)
		return "approval_failed", nil
	}

	logger.WithField("transaction_id", session.TransactionID).Info("Checkout session completed, transaction approved")
	s.recordDelivery(ctx, &session.SessionID, event.Event, req, entity.WebhookDeliveryProcessed, "")
	return "processed", nil
}

func (s *CheckoutService) handleSessionRefunded(ctx context.Context, event *webhookEvent, req webhookRequest, logger logrus.FieldLogger) (string, error) {
	session, err := s.lookupSession(ctx, event)
	if err != nil {
		return "", err
	}
	if session == nil {
		logger.Warn("Refund webhook references no known checkout session")
		s.recordDelivery(ctx, nil, event.Event, req, entity.WebhookDeliveryRejected, "session not found")
		return "unmatched", nil
	}

	// The platform refund comes first: if it fails the session stays
	// in its current state and the provider will redeliver.
	if err := s.platform.RefundTransaction(ctx, session.TransactionID); err != nil {
		logger.WithError(err).WithField("transaction_id", session.TransactionID).
			Error("Failed to refund transaction")
		detail := err.Error()
		s.recordEvent(ctx, session.SessionID, "refund_failed", nil, session.Status, &detail, time.Now().UTC())
		s.recordDelivery(ctx, &session.SessionID, event.Event, req, entity.WebhookDeliveryProcessed, "refund failed: "+detail)
		return "refund_failed", nil
	}

	now := time.Now().UTC()
	changed, err := s.sessionRepo.MarkRefunded(ctx, session.SessionID, now)
	if err != nil {
		return "", err
	}
	if changed {
		oldStatus := session.Status
		s.recordEvent(ctx, session.SessionID, "session_refunded", &oldStatus, entity.SessionStatusRefunded, nil, now)
	}

	logger.WithField("transaction_id", session.TransactionID).Info("Checkout session refunded")
	s.recordDelivery(ctx, &session.SessionID, event.Event, req, entity.WebhookDeliveryProcessed, "")
	return "processed", nil
}

func (s *CheckoutService) handleSessionFailed(ctx context.Context, event *webhookEvent, req webhookRequest, logger logrus.FieldLogger) (string, error) {
	session, err := s.lookupSession(ctx, event)
	if err != nil {
		return "", err
	}
	if session == nil {
		logger.Warn("Webhook references no known checkout session")
		s.recordDelivery(ctx, nil, event.Event, req, entity.WebhookDeliveryRejected, "session not found")
		return "unmatched", nil
	}

	now := time.Now().UTC()
	changed, err := s.sessionRepo.MarkFailed(ctx, session.SessionID, now)
	if err != nil {
		return "", err
	}
	if changed {
		oldStatus := session.Status
		s.recordEvent(ctx, session.SessionID, "session_failed", &oldStatus, entity.SessionStatusFailed, nil, now)
		logger.Info("Checkout session marked failed")
	} else {
		logger.WithField("status", session.Status).Info("Session already settled, ignoring failure event")
	}

	s.recordDelivery(ctx, &session.SessionID, event.Event, req, entity.WebhookDeliveryProcessed, "")
	return "processed", nil
}

// lookupSession resolves the webhook to a local session by session ID
// first, falling back to the metadata identifiers for deliveries that
// predate the local record or raced its insert.
func (s *CheckoutService) lookupSession(ctx context.Context, event *webhookEvent) (*entity.CheckoutSession, error) {
	if event.CheckoutSession.ID != "" {
		session, err := s.sessionRepo.FindBySessionID(ctx, event.CheckoutSession.ID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	metadata := event.CheckoutSession.Metadata
	if metadata == nil {
		return nil, nil
	}

	if metadata.TransactionID != 0 {
		session, err := s.sessionRepo.FindByTransactionID(ctx, metadata.TransactionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	if metadata.InvoiceID != 0 {
		session, err := s.sessionRepo.FindByInvoiceID(ctx, metadata.InvoiceID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	return nil, nil
}

func (s *CheckoutService) recordDelivery(ctx context.Context, sessionID *string, eventType string, req webhookRequest, status int32, reason string) {
	delivery := &entity.WebhookDelivery{
		SessionID:   sessionID,
		EventType:   eventType,
		Signature:   req.GetSignature(),
		SourceAddr:  req.GetSourceAddr(),
		PayloadJSON: string(req.GetPayload()),
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if reason != "" {
		delivery.Error = &reason
	}

	if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
		s.logger.WithError(err).Error("Failed to record webhook delivery")
	}
}
