package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for billing state. Callers pass the
// *gorm.DB so multi-row writes can share one transaction.
type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error

	FindOrderByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Order, error)
	FindOrderByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindOrderByIdempotencyKey(ctx context.Context, db *gorm.DB, tenantID, buyerUserID snowflake.ID, key string) (*Order, error)
	FindPaymentByOutTradeNo(ctx context.Context, db *gorm.DB, channel Channel, outTradeNo string) (*Payment, error)
	ListPaymentsByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Payment, error)

	// MarkOrderPaid performs a conditional update (WHERE status <> 'PAID')
	// and reports whether this caller won the transition.
	MarkOrderPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error)
	CancelOrder(ctx context.Context, db *gorm.DB, id snowflake.ID, expiredAt time.Time) error

	MarkPaymentSuccess(ctx context.Context, db *gorm.DB, id snowflake.ID, providerTradeNo string, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ClosePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, closedAt time.Time) error

	// InsertWebhookEvent inserts the dedup row with ON CONFLICT DO NOTHING
	// on (channel, event_id) and reports whether the row was inserted.
	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time, outcome string) error

	InsertBill(ctx context.Context, db *gorm.DB, bill *Bill) error
	// UpsertSubscription replaces the tenant's subscription window in place,
	// keyed by the unique index on tenant_id.
	UpsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	InsertEntitlement(ctx context.Context, db *gorm.DB, ent *Entitlement) error

	ListBills(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, skip, take int) ([]Bill, error)
	FindSubscriptionByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*Subscription, error)
	ListActiveEntitlements(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, at time.Time) ([]Entitlement, error)
}
