// Package domain defines the payment gateway port. Any payment provider is
// adapted to this contract.
package domain

import (
	"context"
	"errors"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
)

// CreatePayloadRequest carries everything an adapter needs to build the
// channel-specific checkout payload for an order.
type CreatePayloadRequest struct {
	Channel    billingdomain.Channel
	ClientType billingdomain.ClientType
	OutTradeNo string
	Amount     int64
	Currency   string
	Subject    string
	ReturnURL  string
}

// Gateway adapts one payment channel.
type Gateway interface {
	Channel() billingdomain.Channel

	// CreatePaymentPayload returns an opaque, channel-specific payload
	// (redirect URL, QR content, prepay parameters) handed back to the
	// client. It never mutates domain state.
	CreatePaymentPayload(ctx context.Context, req CreatePayloadRequest) (any, error)

	// NormalizeWebhook parses a raw provider callback into the canonical
	// webhook shape. Bodies that are not parseable at all return
	// ErrUnrecognizedPayload; bodies that parse but carry no recognizable
	// outcome produce an empty Status rather than a guess. Signature
	// failures are reported through VerifyStatus, not an error.
	NormalizeWebhook(ctx context.Context, body []byte, headers map[string]string) (billingdomain.WebhookInput, error)
}

var (
	ErrUnrecognizedPayload = errors.New("unrecognized_payload")
	ErrChannelNotSupported = errors.New("channel_not_supported")
)
