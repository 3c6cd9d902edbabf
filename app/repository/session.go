package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

var (
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrSessionAlreadyExists = errors.New("checkout session already exists")
)

type SessionFilter struct {
	TransactionID uint64
	InvoiceID     uint64
	Status        string
	Limit         int32
	Offset        int32
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `session_id, transaction_id, invoice_id, member_id, email, description,
	amount_cents, currency, status, created_at, updated_at`

func (r *SessionRepository) Create(ctx context.Context, session *entity.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (
			session_id, transaction_id, invoice_id, member_id, email, description,
			amount_cents, currency, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.SessionID,
		session.TransactionID,
		session.InvoiceID,
		session.MemberID,
		session.Email,
		session.Description,
		session.AmountCents,
		session.Currency,
		session.Status,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSessionAlreadyExists
		}
		return err
	}

	return nil
}

func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE session_id = ?`

	session := &entity.CheckoutSession{}
	if err := scanSession(r.db.QueryRowContext(ctx, query, sessionID), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionRepository) FindByTransactionID(ctx context.Context, transactionID uint64) (*entity.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE transaction_id = ? ORDER BY created_at DESC LIMIT 1`

	session := &entity.CheckoutSession{}
	if err := scanSession(r.db.QueryRowContext(ctx, query, transactionID), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionRepository) FindByInvoiceID(ctx context.Context, invoiceID uint64) (*entity.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE invoice_id = ? ORDER BY created_at DESC LIMIT 1`

	session := &entity.CheckoutSession{}
	if err := scanSession(r.db.QueryRowContext(ctx, query, invoiceID), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionRepository) List(ctx context.Context, filter SessionFilter) ([]*entity.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.TransactionID > 0 {
		conditions = append(conditions, "transaction_id = ?")
		args = append(args, filter.TransactionID)
	}
	if filter.InvoiceID > 0 {
		conditions = append(conditions, "invoice_id = ?")
		args = append(args, filter.InvoiceID)
	}
	if strings.TrimSpace(filter.Status) != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*entity.CheckoutSession, 0)
	for rows.Next() {
		item := &entity.CheckoutSession{}
		if err := scanSession(rows, item); err != nil {
			return nil, err
		}
		sessions = append(sessions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// MarkComplete atomically claims a session for completion. The
// conditional WHERE serializes concurrent deliveries of the same
// event: only one caller observes true, so the approval side effect
// can never fire twice. Sessions already complete or refunded are
// left untouched.
func (r *SessionRepository) MarkComplete(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	return r.transition(ctx,
		`UPDATE checkout_sessions SET status = ?, updated_at = ?
		 WHERE session_id = ? AND status NOT IN (?, ?)`,
		entity.SessionStatusComplete, now, sessionID, entity.SessionStatusComplete, entity.SessionStatusRefunded,
	)
}

// MarkRefunded tolerates duplicate refund deliveries: a session
// already refunded is a no-op.
func (r *SessionRepository) MarkRefunded(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	return r.transition(ctx,
		`UPDATE checkout_sessions SET status = ?, updated_at = ?
		 WHERE session_id = ? AND status <> ?`,
		entity.SessionStatusRefunded, now, sessionID, entity.SessionStatusRefunded,
	)
}

// MarkFailed never overwrites a completed or refunded session.
func (r *SessionRepository) MarkFailed(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	return r.transition(ctx,
		`UPDATE checkout_sessions SET status = ?, updated_at = ?
		 WHERE session_id = ? AND status NOT IN (?, ?, ?)`,
		entity.SessionStatusFailed, now, sessionID,
		entity.SessionStatusComplete, entity.SessionStatusRefunded, entity.SessionStatusFailed,
	)
}

func (r *SessionRepository) MarkFailedByTransaction(ctx context.Context, transactionID uint64, now time.Time) (bool, error) {
	return r.transition(ctx,
		`UPDATE checkout_sessions SET status = ?, updated_at = ?
		 WHERE transaction_id = ? AND status NOT IN (?, ?, ?)`,
		entity.SessionStatusFailed, now, transactionID,
		entity.SessionStatusComplete, entity.SessionStatusRefunded, entity.SessionStatusFailed,
	)
}

// CancelByTransaction is the gateway void path: only pending sessions
// may be cancelled.
func (r *SessionRepository) CancelByTransaction(ctx context.Context, transactionID uint64, now time.Time) (bool, error) {
	return r.transition(ctx,
		`UPDATE checkout_sessions SET status = ?, updated_at = ?
		 WHERE transaction_id = ? AND status = ?`,
		entity.SessionStatusCancelled, now, transactionID, entity.SessionStatusPending,
	)
}

func (r *SessionRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
		WHERE status = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, entity.SessionStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*entity.CheckoutSession, 0)
	for rows.Next() {
		item := &entity.CheckoutSession{}
		if err := scanSession(rows, item); err != nil {
			return nil, err
		}
		sessions = append(sessions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *SessionRepository) transition(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(scan rowScanner, session *entity.CheckoutSession) error {
	return scan.Scan(
		&session.SessionID,
		&session.TransactionID,
		&session.InvoiceID,
		&session.MemberID,
		&session.Email,
		&session.Description,
		&session.AmountCents,
		&session.Currency,
		&session.Status,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
}
