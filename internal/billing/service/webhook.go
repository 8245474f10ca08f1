package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	gatewaydomain "github.com/pagehub/billing/internal/gateway/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HandleWebhook runs the reconciliation decision table for one provider
// delivery. Dedup insert and all state mutations happen in a single
// transaction, so a crash mid-way leaves no event row and the provider's
// retry starts over cleanly.
func (s *Service) HandleWebhook(ctx context.Context, channel string, body []byte, headers map[string]string) (billingdomain.WebhookResult, error) {
	ch := billingdomain.Channel(strings.ToUpper(strings.TrimSpace(channel)))
	gw, ok := s.gateways.Get(ch)
	if !ok {
		return billingdomain.WebhookResult{}, gatewaydomain.ErrChannelNotSupported
	}

	input, err := gw.NormalizeWebhook(ctx, body, headers)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrUnrecognizedPayload) {
			// Nothing to dedup against: no event id was recoverable.
			s.recordWebhook(ch, billingdomain.Ignored(billingdomain.ReasonInvalidPayload))
			return billingdomain.Ignored(billingdomain.ReasonInvalidPayload), nil
		}
		return billingdomain.WebhookResult{}, err
	}
	input.Channel = ch

	var result billingdomain.WebhookResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.reconcile(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return billingdomain.WebhookResult{}, err
	}

	s.recordWebhook(ch, result)
	s.log.Info("webhook reconciled",
		zap.String("channel", string(ch)),
		zap.String("event_id", input.EventID),
		zap.String("kind", string(result.Kind)),
		zap.String("reason", result.Reason),
	)
	return result, nil
}

func (s *Service) reconcile(ctx context.Context, tx *gorm.DB, input billingdomain.WebhookInput) (billingdomain.WebhookResult, error) {
	now := s.clock.Now()

	if input.EventID == "" {
		return billingdomain.Ignored(billingdomain.ReasonInvalidPayload), nil
	}

	event := &billingdomain.WebhookEvent{
		ID:         s.genID.Generate(),
		Channel:    input.Channel,
		EventID:    input.EventID,
		RawBody:    input.RawBody,
		Headers:    marshalHeaders(input.Headers),
		ReceivedAt: now,
	}
	inserted, err := s.repo.InsertWebhookEvent(ctx, tx, event)
	if err != nil {
		return billingdomain.WebhookResult{}, err
	}
	if !inserted {
		return billingdomain.Ignored(billingdomain.ReasonDuplicateEvent), nil
	}

	finish := func(res billingdomain.WebhookResult) (billingdomain.WebhookResult, error) {
		outcome := string(res.Kind)
		if res.Reason != "" {
			outcome = res.Reason
		}
		if err := s.repo.MarkWebhookProcessed(ctx, tx, event.ID, now, outcome); err != nil {
			return billingdomain.WebhookResult{}, err
		}
		return res, nil
	}

	if input.VerifyStatus != billingdomain.VerifyStatusPass {
		return finish(billingdomain.Ignored(billingdomain.ReasonVerifyFailed))
	}
	if input.OutTradeNo == "" || input.Status == "" {
		return finish(billingdomain.Ignored(billingdomain.ReasonInvalidPayload))
	}

	payment, err := s.repo.FindPaymentByOutTradeNo(ctx, tx, input.Channel, input.OutTradeNo)
	if err != nil {
		return billingdomain.WebhookResult{}, err
	}
	if payment == nil {
		return finish(billingdomain.Ignored(billingdomain.ReasonOrderNotFound))
	}

	order, err := s.repo.FindOrderByIDForUpdate(ctx, tx, payment.OrderID)
	if err != nil {
		return billingdomain.WebhookResult{}, err
	}
	if order == nil {
		return finish(billingdomain.Ignored(billingdomain.ReasonOrderNotFound))
	}

	// Currency is required: a notify that omits it fails the comparison the
	// same way a wrong one does. Adapters fill in the channel default where
	// the provider legitimately leaves it out.
	if input.Amount == nil || *input.Amount != order.Amount || input.Currency != order.Currency {
		// A mismatched notification permanently fails the attempt; the
		// order itself stays payable through a new attempt.
		if err := s.repo.MarkPaymentFailed(ctx, tx, payment.ID); err != nil {
			return billingdomain.WebhookResult{}, err
		}
		return finish(billingdomain.Ignored(billingdomain.ReasonAmountMismatch))
	}

	if input.Status != billingdomain.WebhookStatusSuccess {
		return finish(billingdomain.Ignored(billingdomain.ReasonStatusNotActionable))
	}

	if order.Status == billingdomain.OrderStatusPaid {
		return finish(billingdomain.Ignored(billingdomain.ReasonAlreadyPaid))
	}

	paidAt := now
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}

	won, err := s.repo.MarkOrderPaid(ctx, tx, order.ID, paidAt)
	if err != nil {
		return billingdomain.WebhookResult{}, err
	}
	if !won {
		return finish(billingdomain.Ignored(billingdomain.ReasonAlreadyPaid))
	}

	if err := s.applyPaid(ctx, tx, order, payment, input.ProviderTradeNo, paidAt, now); err != nil {
		return billingdomain.WebhookResult{}, err
	}

	return finish(billingdomain.Processed(order.ID.String()))
}

// applyPaid performs the side effects of a successful payment: the payment
// row, the bill, the subscription window and the entitlement grants.
func (s *Service) applyPaid(ctx context.Context, tx *gorm.DB, order *billingdomain.Order, payment *billingdomain.Payment, providerTradeNo string, paidAt, now time.Time) error {
	if err := s.repo.MarkPaymentSuccess(ctx, tx, payment.ID, providerTradeNo, paidAt); err != nil {
		return err
	}

	buyer, err := json.Marshal(map[string]string{
		"tenant_id":     order.TenantID.String(),
		"buyer_user_id": order.BuyerUserID.String(),
	})
	if err != nil {
		return err
	}

	bill := &billingdomain.Bill{
		ID:         s.genID.Generate(),
		TenantID:   order.TenantID,
		OrderID:    order.ID,
		PaymentID:  payment.ID,
		BillNo:     billNo(),
		Status:     billingdomain.BillStatusIssued,
		Currency:   order.Currency,
		AmountPaid: order.Amount,
		IssuedAt:   paidAt,
		LineItems:  order.LineItems,
		Buyer:      datatypes.JSON(buyer),
		CreatedAt:  now,
	}
	if err := s.repo.InsertBill(ctx, tx, bill); err != nil {
		return err
	}

	items := unmarshalLineItems(order.LineItems)
	periodDays := fallbackPeriodDays
	if len(items) > 0 && items[0].PeriodDays > 0 {
		periodDays = items[0].PeriodDays
	}
	startAt, endAt := entitlementWindow(paidAt, periodDays)

	sub := &billingdomain.Subscription{
		ID:                   s.genID.Generate(),
		TenantID:             order.TenantID,
		Status:               billingdomain.SubscriptionStatusActive,
		CurrentPeriodStartAt: startAt,
		CurrentPeriodEndAt:   endAt,
		AutoRenew:            false,
		SourceOrderID:        order.ID,
		PlanSnapshot:         order.LineItems,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.UpsertSubscription(ctx, tx, sub); err != nil {
		return err
	}

	grants := entitlementGrants(items)
	for _, grant := range grants {
		ent := &billingdomain.Entitlement{
			ID:            s.genID.Generate(),
			TenantID:      order.TenantID,
			Key:           grant.Key,
			Value:         grant.Value,
			EffectiveFrom: startAt,
			EffectiveTo:   &endAt,
			SourceType:    billingdomain.EntitlementSourceOneTime,
			SourceRefID:   order.ID,
			CreatedAt:     now,
		}
		if err := s.repo.InsertEntitlement(ctx, tx, ent); err != nil {
			return err
		}
	}
	return nil
}

type entitlementGrant struct {
	Key   string
	Value string
}

// entitlementGrants collects the entitlement seeds embedded in the line
// items. An order with no seeds still grants PRO membership.
func entitlementGrants(items []lineItemSnapshot) []entitlementGrant {
	var grants []entitlementGrant
	for _, item := range items {
		for _, ent := range item.Entitlements {
			if ent.Key == "" {
				continue
			}
			grants = append(grants, entitlementGrant{Key: ent.Key, Value: ent.Value})
		}
	}
	if len(grants) == 0 {
		grants = append(grants, entitlementGrant{Key: "membership.level", Value: "PRO"})
	}
	return grants
}

type lineItemSnapshot struct {
	PriceID      string `json:"price_id"`
	PeriodDays   int    `json:"period_days"`
	Entitlements []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"entitlements"`
}

func unmarshalLineItems(raw datatypes.JSON) []lineItemSnapshot {
	var items []lineItemSnapshot
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func marshalHeaders(headers map[string]string) datatypes.JSON {
	if len(headers) == 0 {
		return nil
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func (s *Service) recordWebhook(channel billingdomain.Channel, result billingdomain.WebhookResult) {
	s.metrics.RecordWebhookEvent(string(channel), string(result.Kind), result.Reason)
}
