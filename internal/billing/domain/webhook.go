package domain

import "time"

// WebhookStatus is the provider outcome carried by a normalized webhook.
// Empty means the payload had no recognizable outcome; adapters must not
// guess one.
type WebhookStatus string

const (
	WebhookStatusSuccess WebhookStatus = "SUCCESS"
	WebhookStatusClosed  WebhookStatus = "CLOSED"
	WebhookStatusFailed  WebhookStatus = "FAILED"
)

// VerifyStatus captures the adapter's signature/authenticity check result.
type VerifyStatus string

const (
	VerifyStatusPass VerifyStatus = "PASS"
	VerifyStatusFail VerifyStatus = "FAIL"
)

// WebhookInput is the canonical shape every payment provider callback is
// normalized into. It is the wire contract between gateway adapters and the
// reconciliation state machine.
type WebhookInput struct {
	Channel         Channel
	EventID         string
	OutTradeNo      string
	ProviderTradeNo string
	Status          WebhookStatus
	Amount          *int64
	Currency        string
	PaidAt          *time.Time
	VerifyStatus    VerifyStatus
	RawBody         string
	Headers         map[string]string
}

// WebhookResultKind discriminates reconciliation outcomes. Both kinds are
// legitimate terminal outcomes for a delivery; neither is an error.
type WebhookResultKind string

const (
	WebhookProcessed WebhookResultKind = "PROCESSED"
	WebhookIgnored   WebhookResultKind = "IGNORED"
)

// Reasons for an IGNORED reconciliation outcome.
const (
	ReasonDuplicateEvent      = "DUPLICATE_EVENT"
	ReasonVerifyFailed        = "VERIFY_FAILED"
	ReasonInvalidPayload      = "INVALID_PAYLOAD"
	ReasonOrderNotFound       = "ORDER_NOT_FOUND"
	ReasonAmountMismatch      = "AMOUNT_MISMATCH"
	ReasonStatusNotActionable = "STATUS_NOT_ACTIONABLE"
	ReasonAlreadyPaid         = "ALREADY_PAID"
)

// WebhookResult is the discriminated result of one webhook delivery.
type WebhookResult struct {
	Kind    WebhookResultKind `json:"kind"`
	Reason  string            `json:"reason,omitempty"`
	OrderID *string           `json:"order_id,omitempty"`
}

func Ignored(reason string) WebhookResult {
	return WebhookResult{Kind: WebhookIgnored, Reason: reason}
}

func Processed(orderID string) WebhookResult {
	return WebhookResult{Kind: WebhookProcessed, OrderID: &orderID}
}
