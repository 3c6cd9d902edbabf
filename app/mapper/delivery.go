package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

func deliveryStatusLabel(status int32) string {
	switch status {
	case entity.WebhookDeliveryProcessed:
		return "processed"
	case entity.WebhookDeliveryRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func DeliveryToResponse(item *entity.WebhookDelivery) *types.WebhookDeliveryResponse {
	if item == nil {
		return nil
	}

	return &types.WebhookDeliveryResponse{
		Id:         item.ID,
		SessionId:  item.SessionID,
		EventType:  item.EventType,
		SourceAddr: item.SourceAddr,
		Status:     deliveryStatusLabel(item.Status),
		Error:      item.Error,
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func DeliveriesToResponse(items []*entity.WebhookDelivery) []*types.WebhookDeliveryResponse {
	result := make([]*types.WebhookDeliveryResponse, 0, len(items))
	for _, item := range items {
		result = append(result, DeliveryToResponse(item))
	}
	return result
}
