package domain

import (
	"context"
	"errors"
	"time"
)

type CreateOrderRequest struct {
	TenantID       string `json:"tenant_id"`
	ActorUserID    string `json:"actor_user_id"`
	PriceID        string `json:"price_id"`
	Channel        string `json:"channel"`
	ClientType     string `json:"client_type,omitempty"`
	ReturnURL      string `json:"return_url,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type CreateOrderResponse struct {
	OrderID        string      `json:"order_id"`
	OrderNo        string      `json:"order_no"`
	Status         OrderStatus `json:"status"`
	PayableAmount  int64       `json:"payable_amount"`
	Currency       string      `json:"currency"`
	ClientType     ClientType  `json:"client_type"`
	ChannelPayload any         `json:"channel_payload,omitempty"`
	Reused         bool        `json:"reused"`
}

type CancelOrderRequest struct {
	TenantID    string
	ActorUserID string
	OrderID     string
}

type GetOrderRequest struct {
	TenantID    string
	ActorUserID string
	OrderID     string
}

// OrderDetail is an order together with its payment attempts.
type OrderDetail struct {
	Order    Order     `json:"order"`
	Payments []Payment `json:"payments"`
}

type ListBillsRequest struct {
	TenantID    string
	ActorUserID string
	Skip        int
	Take        int
}

type ListBillsResponse struct {
	Bills []Bill `json:"bills"`
}

type GetSubscriptionRequest struct {
	TenantID    string
	ActorUserID string
}

type ListEntitlementsRequest struct {
	TenantID    string
	ActorUserID string
	// At filters entitlements active at the given instant. Zero means now.
	At time.Time
}

// Service is the billing application surface invoked by the HTTP layer.
type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	CancelOrder(ctx context.Context, req CancelOrderRequest) (Order, error)
	GetOrder(ctx context.Context, req GetOrderRequest) (OrderDetail, error)
	ListBills(ctx context.Context, req ListBillsRequest) (ListBillsResponse, error)
	GetSubscription(ctx context.Context, req GetSubscriptionRequest) (Subscription, error)
	ListEntitlements(ctx context.Context, req ListEntitlementsRequest) ([]Entitlement, error)

	// HandleWebhook normalizes the raw provider body and applies the
	// reconciliation state machine. Business outcomes are returned in the
	// result, never as errors; only infrastructure failures return an error.
	HandleWebhook(ctx context.Context, channel string, body []byte, headers map[string]string) (WebhookResult, error)
}

var (
	ErrTenantRequired  = errors.New("tenant_required")
	ErrActorRequired   = errors.New("actor_required")
	ErrPriceIDRequired = errors.New("price_id_required")
	ErrOrderIDRequired = errors.New("order_id_required")

	ErrTenantInvalid = errors.New("tenant_invalid")
	ErrActorInvalid  = errors.New("actor_invalid")
	ErrOrderInvalid  = errors.New("order_invalid")

	ErrChannelInvalid          = errors.New("channel_invalid")
	ErrReturnURLInvalid        = errors.New("return_url_invalid")
	ErrReturnURLHostNotAllowed = errors.New("return_url_host_not_allowed")
	ErrPermissionDenied        = errors.New("permission_denied")
	ErrPriceIDInvalid          = errors.New("price_id_invalid")

	ErrOrderNotFound         = errors.New("order_not_found")
	ErrOrderPaidCannotCancel = errors.New("order_paid_cannot_cancel")
	ErrOrderAlreadyClosed    = errors.New("order_already_closed")
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
)
