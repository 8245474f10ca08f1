package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pagehub/billing/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindOrderByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindOrderByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM billing_orders WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindOrderByIdempotencyKey(ctx context.Context, db *gorm.DB, tenantID, buyerUserID snowflake.ID, key string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND buyer_user_id = ? AND idempotency_key = ?", tenantID, buyerUserID, key).
		Order("created_at ASC").
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindPaymentByOutTradeNo(ctx context.Context, db *gorm.DB, channel domain.Channel, outTradeNo string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).
		Where("channel = ? AND out_trade_no = ?", channel, outTradeNo).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListPaymentsByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkOrderPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE billing_orders
		 SET status = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		domain.OrderStatusPaid,
		paidAt,
		paidAt,
		id,
		domain.OrderStatusPaid,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CancelOrder(ctx context.Context, db *gorm.DB, id snowflake.ID, expiredAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_orders
		 SET status = ?, expired_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.OrderStatusCancelled,
		expiredAt,
		expiredAt,
		id,
	).Error
}

func (r *repo) MarkPaymentSuccess(ctx context.Context, db *gorm.DB, id snowflake.ID, providerTradeNo string, paidAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_payments
		 SET status = ?, provider_trade_no = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.PaymentStatusSuccess,
		providerTradeNo,
		paidAt,
		paidAt,
		id,
	).Error
}

func (r *repo) MarkPaymentFailed(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_payments
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		domain.PaymentStatusFailed,
		id,
	).Error
}

func (r *repo) ClosePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, closedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_payments
		 SET status = ?, closed_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.PaymentStatusClosed,
		closedAt,
		closedAt,
		id,
	).Error
}

func (r *repo) InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO billing_webhook_events (
			id, channel, event_id, order_id, raw_body, headers, outcome, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel, event_id) DO NOTHING`,
		event.ID,
		event.Channel,
		event.EventID,
		event.OrderID,
		event.RawBody,
		event.Headers,
		event.Outcome,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time, outcome string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_webhook_events
		 SET processed_at = ?, outcome = ?
		 WHERE id = ?`,
		processedAt,
		outcome,
		id,
	).Error
}

func (r *repo) InsertBill(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Create(bill).Error
}

func (r *repo) UpsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenant_subscriptions (
			id, tenant_id, status, current_period_start_at, current_period_end_at,
			auto_renew, source_order_id, plan_snapshot, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			status = excluded.status,
			current_period_start_at = excluded.current_period_start_at,
			current_period_end_at = excluded.current_period_end_at,
			auto_renew = excluded.auto_renew,
			source_order_id = excluded.source_order_id,
			plan_snapshot = excluded.plan_snapshot,
			updated_at = excluded.updated_at`,
		sub.ID,
		sub.TenantID,
		sub.Status,
		sub.CurrentPeriodStartAt,
		sub.CurrentPeriodEndAt,
		sub.AutoRenew,
		sub.SourceOrderID,
		sub.PlanSnapshot,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) InsertEntitlement(ctx context.Context, db *gorm.DB, ent *domain.Entitlement) error {
	return db.WithContext(ctx).Create(ent).Error
}

func (r *repo) ListBills(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, skip, take int) ([]domain.Bill, error) {
	var items []domain.Bill
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("issued_at DESC").
		Offset(skip).
		Limit(take).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindSubscriptionByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListActiveEntitlements(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, at time.Time) ([]domain.Entitlement, error) {
	var items []domain.Entitlement
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", tenantID, at, at).
		Order("effective_from DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
