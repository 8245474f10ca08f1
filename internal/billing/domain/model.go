// Package domain contains persistence models for billing orders, payments,
// bills, subscriptions and entitlements.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Channel identifies a payment provider.
type Channel string

const (
	ChannelAlipay    Channel = "ALIPAY"
	ChannelWechatPay Channel = "WECHAT_PAY"
)

// ClientType identifies the client surface initiating a checkout.
type ClientType string

const (
	ClientTypeWebPC       ClientType = "WEB_PC"
	ClientTypeWebMobile   ClientType = "WEB_MOBILE"
	ClientTypeAppIOS      ClientType = "APP_IOS"
	ClientTypeAppAndroid  ClientType = "APP_ANDROID"
	ClientTypeMiniProgram ClientType = "MINI_PROGRAM"
)

// KnownClientType reports whether raw is one of the recognized client types.
func KnownClientType(raw ClientType) bool {
	switch raw {
	case ClientTypeWebPC, ClientTypeWebMobile, ClientTypeAppIOS, ClientTypeAppAndroid, ClientTypeMiniProgram:
		return true
	default:
		return false
	}
}

// OrderStatus represents lifecycle states for a billing order.
// Transitions are monotonic: once PAID, CANCELLED or EXPIRED an order
// never returns to an earlier state.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaying    OrderStatus = "PAYING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusExpired   OrderStatus = "EXPIRED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// PaymentStatus represents lifecycle states for a payment attempt.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusClosed    PaymentStatus = "CLOSED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// SubscriptionStatus represents lifecycle states for a tenant subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

// EntitlementSource identifies what granted an entitlement.
type EntitlementSource string

const (
	EntitlementSourceSubscription EntitlementSource = "SUBSCRIPTION"
	EntitlementSourceOneTime      EntitlementSource = "ONE_TIME_PURCHASE"
	EntitlementSourceManual       EntitlementSource = "MANUAL"
)

// Order captures a tenant's purchase intent for a price plan.
// Amount and currency are immutable once created; line items are a snapshot
// of the plan at creation time so later catalog edits never affect the order.
type Order struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	TenantID       snowflake.ID      `json:"tenant_id" gorm:"not null;index:ux_billing_orders_tenant_order_no,unique,priority:1"`
	BuyerUserID    snowflake.ID      `json:"buyer_user_id" gorm:"not null;index"`
	OrderNo        string            `json:"order_no" gorm:"type:text;not null;index:ux_billing_orders_tenant_order_no,unique,priority:2"`
	Status         OrderStatus       `json:"status" gorm:"type:text;not null"`
	Channel        Channel           `json:"channel" gorm:"type:text;not null"`
	ClientType     ClientType        `json:"client_type" gorm:"type:text;not null"`
	Currency       string            `json:"currency" gorm:"type:text;not null"`
	Amount         int64             `json:"amount" gorm:"not null"`
	Subject        string            `json:"subject" gorm:"type:text;not null"`
	Description    string            `json:"description" gorm:"type:text"`
	LineItems      datatypes.JSON    `json:"line_items" gorm:"type:jsonb;not null"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty" gorm:"type:text;index"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	ExpiredAt      *time.Time        `json:"expired_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "billing_orders" }

// Payment tracks one provider-facing attempt to settle an order.
// OutTradeNo resolves to exactly one order within a channel.
type Payment struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	TenantID        snowflake.ID   `json:"tenant_id" gorm:"not null;index"`
	OrderID         snowflake.ID   `json:"order_id" gorm:"not null;index"`
	Channel         Channel        `json:"channel" gorm:"type:text;not null;index:ux_billing_payments_channel_out_trade_no,unique,priority:1"`
	ClientType      ClientType     `json:"client_type" gorm:"type:text;not null"`
	Status          PaymentStatus  `json:"status" gorm:"type:text;not null"`
	OutTradeNo      string         `json:"out_trade_no" gorm:"type:text;not null;index:ux_billing_payments_channel_out_trade_no,unique,priority:2"`
	ProviderTradeNo *string        `json:"provider_trade_no,omitempty" gorm:"type:text"`
	RequestPayload  datatypes.JSON `json:"request_payload,omitempty" gorm:"type:jsonb"`
	ResponsePayload datatypes.JSON `json:"response_payload,omitempty" gorm:"type:jsonb"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "billing_payments" }

// Bill is the immutable receipt issued exactly once per successfully paid
// order.
type Bill struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	TenantID   snowflake.ID   `json:"tenant_id" gorm:"not null;index"`
	OrderID    snowflake.ID   `json:"order_id" gorm:"not null;uniqueIndex"`
	PaymentID  snowflake.ID   `json:"payment_id" gorm:"not null"`
	BillNo     string         `json:"bill_no" gorm:"type:text;not null;uniqueIndex"`
	Status     string         `json:"status" gorm:"type:text;not null"`
	Currency   string         `json:"currency" gorm:"type:text;not null"`
	AmountPaid int64          `json:"amount_paid" gorm:"not null"`
	IssuedAt   time.Time      `json:"issued_at" gorm:"not null"`
	LineItems  datatypes.JSON `json:"line_items" gorm:"type:jsonb;not null"`
	Buyer      datatypes.JSON `json:"buyer" gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Bill) TableName() string { return "billing_bills" }

const BillStatusIssued = "ISSUED"

// Subscription is the tenant's current subscription window. There is at
// most one row per tenant; paying again replaces the window in place.
type Subscription struct {
	ID                   snowflake.ID       `json:"id" gorm:"primaryKey"`
	TenantID             snowflake.ID       `json:"tenant_id" gorm:"not null;uniqueIndex"`
	Status               SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	CurrentPeriodStartAt time.Time          `json:"current_period_start_at" gorm:"not null"`
	CurrentPeriodEndAt   time.Time          `json:"current_period_end_at" gorm:"not null"`
	AutoRenew            bool               `json:"auto_renew" gorm:"not null;default:false"`
	SourceOrderID        snowflake.ID       `json:"source_order_id" gorm:"not null"`
	PlanSnapshot         datatypes.JSON     `json:"plan_snapshot" gorm:"type:jsonb;not null"`
	CreatedAt            time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Subscription) TableName() string { return "tenant_subscriptions" }

// Entitlement is a time-bounded capability grant. It is active at time T
// when EffectiveFrom <= T < EffectiveTo, with a nil EffectiveTo meaning
// no upper bound.
type Entitlement struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	TenantID      snowflake.ID      `json:"tenant_id" gorm:"not null;index"`
	Key           string            `json:"key" gorm:"type:text;not null"`
	Value         string            `json:"value" gorm:"type:text;not null"`
	EffectiveFrom time.Time         `json:"effective_from" gorm:"not null"`
	EffectiveTo   *time.Time        `json:"effective_to,omitempty"`
	SourceType    EntitlementSource `json:"source_type" gorm:"type:text;not null"`
	SourceRefID   snowflake.ID      `json:"source_ref_id" gorm:"not null"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Entitlement) TableName() string { return "tenant_entitlements" }

// WebhookEvent records one inbound provider callback. The unique index on
// (channel, event_id) is what makes webhook processing idempotent: a repeat
// delivery fails the insert and is reported as a duplicate regardless of
// payload.
type WebhookEvent struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	Channel     Channel        `json:"channel" gorm:"type:text;not null;index:ux_billing_webhook_events_channel_event_id,unique,priority:1"`
	EventID     string         `json:"event_id" gorm:"type:text;not null;index:ux_billing_webhook_events_channel_event_id,unique,priority:2"`
	OrderID     *snowflake.ID  `json:"order_id,omitempty" gorm:"index"`
	RawBody     string         `json:"raw_body" gorm:"type:text;not null"`
	Headers     datatypes.JSON `json:"headers,omitempty" gorm:"type:jsonb"`
	Outcome     string         `json:"outcome" gorm:"type:text"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string { return "billing_webhook_events" }
