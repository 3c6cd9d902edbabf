package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CheckoutSessionResponse struct {
	SessionId     string `json:"session_id"`
	TransactionId uint64 `json:"transaction_id"`
	InvoiceId     uint64 `json:"invoice_id"`
	MemberId      uint64 `json:"member_id"`
	Email         string `json:"email"`
	Description   string `json:"description"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type SessionEnvelopeResponse struct {
	Session *CheckoutSessionResponse `json:"session"`
}

type CreateSessionResponse struct {
	Session     *CheckoutSessionResponse `json:"session"`
	CheckoutUrl string                   `json:"checkout_url"`
}

type ListSessionsResponse struct {
	Sessions []*CheckoutSessionResponse `json:"sessions"`
}

type WebhookDeliveryResponse struct {
	Id         uint64  `json:"id"`
	SessionId  *string `json:"session_id"`
	EventType  string  `json:"event_type"`
	SourceAddr string  `json:"source_addr"`
	Status     string  `json:"status"`
	Error      *string `json:"error"`
	CreatedAt  string  `json:"created_at"`
}

type ListWebhookDeliveriesResponse struct {
	Deliveries []*WebhookDeliveryResponse `json:"deliveries"`
}
