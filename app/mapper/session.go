package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

func SessionToResponse(item *entity.CheckoutSession) *types.CheckoutSessionResponse {
	if item == nil {
		return nil
	}

	return &types.CheckoutSessionResponse{
		SessionId:     item.SessionID,
		TransactionId: item.TransactionID,
		InvoiceId:     item.InvoiceID,
		MemberId:      item.MemberID,
		Email:         item.Email,
		Description:   item.Description,
		AmountCents:   item.AmountCents,
		Currency:      item.Currency,
		Status:        item.Status,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func SessionsToResponse(items []*entity.CheckoutSession) []*types.CheckoutSessionResponse {
	result := make([]*types.CheckoutSessionResponse, 0, len(items))
	for _, item := range items {
		result = append(result, SessionToResponse(item))
	}
	return result
}
