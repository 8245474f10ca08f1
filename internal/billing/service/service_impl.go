package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/pagehub/billing/internal/authorization"
	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/catalog"
	catalogdomain "github.com/pagehub/billing/internal/catalog/domain"
	"github.com/pagehub/billing/internal/clock"
	"github.com/pagehub/billing/internal/config"
	"github.com/pagehub/billing/internal/gateway"
	gatewaydomain "github.com/pagehub/billing/internal/gateway/domain"
	obsmetrics "github.com/pagehub/billing/internal/observability/metrics"
	"github.com/pagehub/billing/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const fallbackPeriodDays = 30

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Repo     billingdomain.Repository
	Catalog  *catalog.Holder
	Gateways *gateway.Registry
	Authz    authorization.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     billingdomain.Repository
	catalog  *catalog.Holder
	gateways *gateway.Registry
	authz    authorization.Service
	metrics  *obsmetrics.Metrics

	returnURLWhitelist []string
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billing.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		catalog:  p.Catalog,
		gateways: p.Gateways,
		authz:    p.Authz,
		metrics:  p.Metrics,

		returnURLWhitelist: p.Cfg.ReturnURLWhitelist,
	}
}

func (s *Service) CreateOrder(ctx context.Context, req billingdomain.CreateOrderRequest) (billingdomain.CreateOrderResponse, error) {
	tenantRaw := strings.TrimSpace(req.TenantID)
	actorRaw := strings.TrimSpace(req.ActorUserID)
	priceID := strings.ToUpper(strings.TrimSpace(req.PriceID))

	if tenantRaw == "" {
		return billingdomain.CreateOrderResponse{}, billingdomain.ErrTenantRequired
	}
	if actorRaw == "" {
		return billingdomain.CreateOrderResponse{}, billingdomain.ErrActorRequired
	}
	if priceID == "" {
		return billingdomain.CreateOrderResponse{}, billingdomain.ErrPriceIDRequired
	}

	channel := billingdomain.Channel(strings.ToUpper(strings.TrimSpace(req.Channel)))
	if channel != billingdomain.ChannelAlipay && channel != billingdomain.ChannelWechatPay {
		return billingdomain.CreateOrderResponse{}, billingdomain.ErrChannelInvalid
	}

	clientType := billingdomain.ClientType(strings.ToUpper(strings.TrimSpace(req.ClientType)))
	if !billingdomain.KnownClientType(clientType) {
		clientType = billingdomain.ClientTypeWebPC
	}

	returnURL := strings.TrimSpace(req.ReturnURL)
	if returnURL != "" {
		if err := s.validateReturnURL(returnURL); err != nil {
			return billingdomain.CreateOrderResponse{}, err
		}
	}

	tenantID, err := parseID(tenantRaw, billingdomain.ErrTenantInvalid)
	if err != nil {
		return billingdomain.CreateOrderResponse{}, err
	}
	buyerUserID, err := parseID(actorRaw, billingdomain.ErrActorInvalid)
	if err != nil {
		return billingdomain.CreateOrderResponse{}, err
	}

	if err := s.authorize(ctx, actorRaw, tenantRaw, authorization.ActionCreate); err != nil {
		return billingdomain.CreateOrderResponse{}, err
	}

	plan, ok := s.catalog.Plan(priceID)
	if !ok {
		return billingdomain.CreateOrderResponse{}, billingdomain.ErrPriceIDInvalid
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.repo.FindOrderByIdempotencyKey(ctx, s.db, tenantID, buyerUserID, idempotencyKey)
		if err != nil {
			return billingdomain.CreateOrderResponse{}, err
		}
		if existing != nil {
			resp := s.orderResponse(existing, true)
			resp.ChannelPayload = s.reusedPayload(ctx, existing.ID)
			s.metrics.RecordOrderCreated(string(existing.Channel), true)
			return resp, nil
		}
	}

	g, ok := s.gateways.Get(channel)
	if !ok {
		return billingdomain.CreateOrderResponse{}, billingdomain.ErrChannelInvalid
	}

	now := s.clock.Now()

	lineItems, err := json.Marshal(catalogdomain.BuildLineItems(plan))
	if err != nil {
		return billingdomain.CreateOrderResponse{}, err
	}

	var (
		order   *billingdomain.Order
		payload any
	)
	for attempt := 0; ; attempt++ {
		orderNo := GenerateOrderNo(now)

		payload, err = g.CreatePaymentPayload(ctx, gatewaydomain.CreatePayloadRequest{
			Channel:    channel,
			ClientType: clientType,
			OutTradeNo: orderNo,
			Amount:     plan.Amount,
			Currency:   plan.Currency,
			Subject:    plan.Title,
			ReturnURL:  returnURL,
		})
		if err != nil {
			return billingdomain.CreateOrderResponse{}, err
		}

		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return billingdomain.CreateOrderResponse{}, err
		}

		order = &billingdomain.Order{
			ID:          s.genID.Generate(),
			TenantID:    tenantID,
			BuyerUserID: buyerUserID,
			OrderNo:     orderNo,
			Status:      billingdomain.OrderStatusPaying,
			Channel:     channel,
			ClientType:  clientType,
			Currency:    plan.Currency,
			Amount:      plan.Amount,
			Subject:     plan.Title,
			Description: plan.Title,
			LineItems:   datatypes.JSON(lineItems),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if idempotencyKey != "" {
			order.IdempotencyKey = &idempotencyKey
			order.Metadata = datatypes.JSONMap{"idempotency_key": idempotencyKey}
		}

		payment := &billingdomain.Payment{
			ID:             s.genID.Generate(),
			TenantID:       tenantID,
			OrderID:        order.ID,
			Channel:        channel,
			ClientType:     clientType,
			Status:         billingdomain.PaymentStatusInitiated,
			OutTradeNo:     orderNo,
			RequestPayload: datatypes.JSON(payloadJSON),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.InsertOrder(ctx, tx, order); err != nil {
				return err
			}
			return s.repo.InsertPayment(ctx, tx, payment)
		})
		if err == nil {
			break
		}
		if !db.IsDuplicateKeyErr(err) {
			return billingdomain.CreateOrderResponse{}, err
		}
		// A concurrent request with the same idempotency key may have won
		// the race; hand back its order instead of retrying.
		if idempotencyKey != "" {
			existing, findErr := s.repo.FindOrderByIdempotencyKey(ctx, s.db, tenantID, buyerUserID, idempotencyKey)
			if findErr != nil {
				return billingdomain.CreateOrderResponse{}, findErr
			}
			if existing != nil {
				resp := s.orderResponse(existing, true)
				resp.ChannelPayload = s.reusedPayload(ctx, existing.ID)
				s.metrics.RecordOrderCreated(string(existing.Channel), true)
				return resp, nil
			}
		}
		// Otherwise an order-number collision: regenerate and retry.
		if attempt >= 2 {
			return billingdomain.CreateOrderResponse{}, err
		}
	}

	s.log.Info("billing order created",
		zap.String("order_no", order.OrderNo),
		zap.String("tenant_id", tenantRaw),
		zap.String("channel", string(channel)),
		zap.Int64("amount", plan.Amount),
	)
	s.metrics.RecordOrderCreated(string(channel), false)

	resp := s.orderResponse(order, false)
	resp.ChannelPayload = payload
	return resp, nil
}

func (s *Service) CancelOrder(ctx context.Context, req billingdomain.CancelOrderRequest) (billingdomain.Order, error) {
	tenantID, _, orderID, err := s.validateOrderRequest(req.TenantID, req.ActorUserID, req.OrderID)
	if err != nil {
		return billingdomain.Order{}, err
	}

	if err := s.authorize(ctx, strings.TrimSpace(req.ActorUserID), strings.TrimSpace(req.TenantID), authorization.ActionCancel); err != nil {
		return billingdomain.Order{}, err
	}

	var cancelled billingdomain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindOrderByID(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return billingdomain.ErrOrderNotFound
		}

		switch order.Status {
		case billingdomain.OrderStatusPaid:
			return billingdomain.ErrOrderPaidCannotCancel
		case billingdomain.OrderStatusCancelled, billingdomain.OrderStatusExpired:
			return billingdomain.ErrOrderAlreadyClosed
		}

		now := s.clock.Now()
		if err := s.repo.CancelOrder(ctx, tx, order.ID, now); err != nil {
			return err
		}

		payments, err := s.repo.ListPaymentsByOrderID(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if len(payments) > 0 {
			latest := payments[0]
			if latest.Status == billingdomain.PaymentStatusInitiated || latest.Status == billingdomain.PaymentStatusPending {
				if err := s.repo.ClosePayment(ctx, tx, latest.ID, now); err != nil {
					return err
				}
			}
		}

		order.Status = billingdomain.OrderStatusCancelled
		order.ExpiredAt = &now
		cancelled = *order
		return nil
	})
	if err != nil {
		return billingdomain.Order{}, err
	}

	s.log.Info("billing order cancelled",
		zap.String("order_no", cancelled.OrderNo),
		zap.String("tenant_id", req.TenantID),
	)
	return cancelled, nil
}

func (s *Service) GetOrder(ctx context.Context, req billingdomain.GetOrderRequest) (billingdomain.OrderDetail, error) {
	tenantID, _, orderID, err := s.validateOrderRequest(req.TenantID, req.ActorUserID, req.OrderID)
	if err != nil {
		return billingdomain.OrderDetail{}, err
	}

	if err := s.authorize(ctx, strings.TrimSpace(req.ActorUserID), strings.TrimSpace(req.TenantID), authorization.ActionView); err != nil {
		return billingdomain.OrderDetail{}, err
	}

	order, err := s.repo.FindOrderByID(ctx, s.db, tenantID, orderID)
	if err != nil {
		return billingdomain.OrderDetail{}, err
	}
	if order == nil {
		return billingdomain.OrderDetail{}, billingdomain.ErrOrderNotFound
	}

	payments, err := s.repo.ListPaymentsByOrderID(ctx, s.db, order.ID)
	if err != nil {
		return billingdomain.OrderDetail{}, err
	}

	return billingdomain.OrderDetail{Order: *order, Payments: payments}, nil
}

func (s *Service) ListBills(ctx context.Context, req billingdomain.ListBillsRequest) (billingdomain.ListBillsResponse, error) {
	tenantID, err := s.validateTenantActor(req.TenantID, req.ActorUserID)
	if err != nil {
		return billingdomain.ListBillsResponse{}, err
	}

	if err := s.authorize(ctx, strings.TrimSpace(req.ActorUserID), strings.TrimSpace(req.TenantID), authorization.ActionView); err != nil {
		return billingdomain.ListBillsResponse{}, err
	}

	skip := req.Skip
	if skip < 0 {
		skip = 0
	}
	take := req.Take
	if take <= 0 {
		take = 20
	}
	if take > 100 {
		take = 100
	}

	bills, err := s.repo.ListBills(ctx, s.db, tenantID, skip, take)
	if err != nil {
		return billingdomain.ListBillsResponse{}, err
	}
	return billingdomain.ListBillsResponse{Bills: bills}, nil
}

func (s *Service) GetSubscription(ctx context.Context, req billingdomain.GetSubscriptionRequest) (billingdomain.Subscription, error) {
	tenantID, err := s.validateTenantActor(req.TenantID, req.ActorUserID)
	if err != nil {
		return billingdomain.Subscription{}, err
	}

	if err := s.authorize(ctx, strings.TrimSpace(req.ActorUserID), strings.TrimSpace(req.TenantID), authorization.ActionView); err != nil {
		return billingdomain.Subscription{}, err
	}

	sub, err := s.repo.FindSubscriptionByTenant(ctx, s.db, tenantID)
	if err != nil {
		return billingdomain.Subscription{}, err
	}
	if sub == nil {
		return billingdomain.Subscription{}, billingdomain.ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (s *Service) ListEntitlements(ctx context.Context, req billingdomain.ListEntitlementsRequest) ([]billingdomain.Entitlement, error) {
	tenantID, err := s.validateTenantActor(req.TenantID, req.ActorUserID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, strings.TrimSpace(req.ActorUserID), strings.TrimSpace(req.TenantID), authorization.ActionView); err != nil {
		return nil, err
	}

	at := req.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	return s.repo.ListActiveEntitlements(ctx, s.db, tenantID, at)
}

func (s *Service) validateReturnURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return billingdomain.ErrReturnURLInvalid
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return billingdomain.ErrReturnURLInvalid
	}
	if len(s.returnURLWhitelist) == 0 {
		return nil
	}
	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range s.returnURLWhitelist {
		if host == allowed {
			return nil
		}
	}
	return billingdomain.ErrReturnURLHostNotAllowed
}

func (s *Service) authorize(ctx context.Context, actorUserID, tenantID, action string) error {
	err := s.authz.Authorize(ctx, "user:"+actorUserID, tenantID, authorization.ObjectBillingOrder, action)
	if err == nil {
		return nil
	}
	if errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, authorization.ErrInvalidActor) ||
		errors.Is(err, authorization.ErrInvalidTenant) {
		// A denial never discloses whether the resource exists.
		return billingdomain.ErrPermissionDenied
	}
	return err
}

func (s *Service) validateTenantActor(tenantRaw, actorRaw string) (snowflake.ID, error) {
	tenantRaw = strings.TrimSpace(tenantRaw)
	actorRaw = strings.TrimSpace(actorRaw)
	if tenantRaw == "" {
		return 0, billingdomain.ErrTenantRequired
	}
	if actorRaw == "" {
		return 0, billingdomain.ErrActorRequired
	}
	tenantID, err := parseID(tenantRaw, billingdomain.ErrTenantInvalid)
	if err != nil {
		return 0, err
	}
	if _, err := parseID(actorRaw, billingdomain.ErrActorInvalid); err != nil {
		return 0, err
	}
	return tenantID, nil
}

func (s *Service) validateOrderRequest(tenantRaw, actorRaw, orderRaw string) (snowflake.ID, snowflake.ID, snowflake.ID, error) {
	tenantID, err := s.validateTenantActor(tenantRaw, actorRaw)
	if err != nil {
		return 0, 0, 0, err
	}
	actorID, _ := parseID(strings.TrimSpace(actorRaw), billingdomain.ErrActorInvalid)

	orderRaw = strings.TrimSpace(orderRaw)
	if orderRaw == "" {
		return 0, 0, 0, billingdomain.ErrOrderIDRequired
	}
	orderID, err := parseID(orderRaw, billingdomain.ErrOrderInvalid)
	if err != nil {
		return 0, 0, 0, err
	}
	return tenantID, actorID, orderID, nil
}

func (s *Service) orderResponse(order *billingdomain.Order, reused bool) billingdomain.CreateOrderResponse {
	return billingdomain.CreateOrderResponse{
		OrderID:       order.ID.String(),
		OrderNo:       order.OrderNo,
		Status:        order.Status,
		PayableAmount: order.Amount,
		Currency:      order.Currency,
		ClientType:    order.ClientType,
		Reused:        reused,
	}
}

// reusedPayload returns the channel payload snapshot taken when the order
// was first created. The gateway is deliberately not called again.
func (s *Service) reusedPayload(ctx context.Context, orderID snowflake.ID) any {
	payments, err := s.repo.ListPaymentsByOrderID(ctx, s.db, orderID)
	if err != nil || len(payments) == 0 {
		return nil
	}
	// Payments come back newest first.
	raw := payments[0].RequestPayload
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}

func entitlementWindow(paidAt time.Time, periodDays int) (time.Time, time.Time) {
	if periodDays <= 0 {
		periodDays = fallbackPeriodDays
	}
	return paidAt, paidAt.AddDate(0, 0, periodDays)
}

func billNo() string {
	return "BILL-" + ulid.Make().String()
}
