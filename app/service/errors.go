package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrSessionAlreadyExists = errors.New("checkout session already exists")
	ErrInvalidStatus        = errors.New("invalid status")

	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrEmptyPayload         = errors.New("empty payload")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrReplayRejected       = errors.New("replay rejected")
	ErrWebhookNotConfigured = errors.New("webhook secret is not configured")

	ErrInvalidToken = errors.New("invalid return token")
)
