package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

// RunExpirePendingBatch fails pending sessions older than the
// configured timeout. Returns the number of sessions expired in this
// batch so callers can loop until drained.
func (s *CheckoutService) RunExpirePendingBatch(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.sessionsCfg.PendingTimeout)

	sessions, err := s.sessionRepo.ListStalePending(ctx, cutoff, s.batchSize())
	if err != nil {
		return 0, err
	}

	expired := 0
	var firstErr error
	for _, session := range sessions {
		changed, err := s.sessionRepo.MarkFailed(ctx, session.SessionID, now)
		if err != nil {
			s.logger.WithError(err).WithField("session_id", session.SessionID).
				Error("Failed to expire pending session")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !changed {
			continue
		}

		oldStatus := session.Status
		s.recordEvent(ctx, session.SessionID, "session_expired", &oldStatus, entity.SessionStatusFailed, nil, now)
		expired++
	}

	if expired > 0 {
		s.logger.WithField("count", expired).Info("Expired stale pending checkout sessions")
	}

	return expired, firstErr
}
