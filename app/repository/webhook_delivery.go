package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

type WebhookDeliveryRepository struct {
	db DBTX
}

func NewWebhookDeliveryRepository(db DBTX) *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{db: db}
}

func (r *WebhookDeliveryRepository) Create(ctx context.Context, delivery *entity.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (
			session_id, event_type, signature, source_addr, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(delivery.SessionID),
		delivery.EventType,
		delivery.Signature,
		delivery.SourceAddr,
		delivery.PayloadJSON,
		delivery.Status,
		nullableStringValue(delivery.Error),
		delivery.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	delivery.ID = uint64(id)

	return nil
}

// ListRecent returns the newest deliveries first, for operator review
// and manual replay of rejected deliveries.
func (r *WebhookDeliveryRepository) ListRecent(ctx context.Context, limit int32) ([]*entity.WebhookDelivery, error) {
	query := `
		SELECT id, session_id, event_type, signature, source_addr, payload_json, status, error, created_at
		FROM webhook_deliveries
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := make([]*entity.WebhookDelivery, 0)
	for rows.Next() {
		item := &entity.WebhookDelivery{}
		var sessionID, errorText sql.NullString
		if err := rows.Scan(
			&item.ID,
			&sessionID,
			&item.EventType,
			&item.Signature,
			&item.SourceAddr,
			&item.PayloadJSON,
			&item.Status,
			&errorText,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.SessionID = stringPtrFromNull(sessionID)
		item.Error = stringPtrFromNull(errorText)
		deliveries = append(deliveries, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return deliveries, nil
}
