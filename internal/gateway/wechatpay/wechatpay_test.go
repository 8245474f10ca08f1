package wechatpay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/gateway/domain"
)

const successNotify = `{
	"id": "evt-7",
	"out_trade_no": "B456DEF",
	"transaction_id": "wx20260301",
	"trade_state": "SUCCESS",
	"amount": {"total": 2990, "currency": "CNY"},
	"success_time": "2026-03-01T20:30:00+08:00"
}`

func TestNormalizeWebhookSuccess(t *testing.T) {
	secret := "test-secret"
	a := NewAdapter(secret)

	body := []byte(successNotify)
	headers := map[string]string{SignatureHeader: Sign(secret, body)}

	input, err := a.NormalizeWebhook(context.Background(), body, headers)
	require.NoError(t, err)
	require.Equal(t, billingdomain.ChannelWechatPay, input.Channel)
	require.Equal(t, "evt-7", input.EventID)
	require.Equal(t, "B456DEF", input.OutTradeNo)
	require.Equal(t, "wx20260301", input.ProviderTradeNo)
	require.Equal(t, billingdomain.WebhookStatusSuccess, input.Status)
	require.Equal(t, billingdomain.VerifyStatusPass, input.VerifyStatus)
	require.NotNil(t, input.Amount)
	require.Equal(t, int64(2990), *input.Amount)
	require.Equal(t, "CNY", input.Currency)
	require.NotNil(t, input.PaidAt)
	require.Equal(t, "2026-03-01T12:30:00Z", input.PaidAt.Format("2006-01-02T15:04:05Z"))
}

func TestNormalizeWebhookHeaderCaseInsensitive(t *testing.T) {
	secret := "test-secret"
	a := NewAdapter(secret)

	body := []byte(successNotify)
	headers := map[string]string{"wechatpay-signature": Sign(secret, body)}

	input, err := a.NormalizeWebhook(context.Background(), body, headers)
	require.NoError(t, err)
	require.Equal(t, billingdomain.VerifyStatusPass, input.VerifyStatus)
}

func TestNormalizeWebhookMissingSignature(t *testing.T) {
	a := NewAdapter("test-secret")

	input, err := a.NormalizeWebhook(context.Background(), []byte(successNotify), nil)
	require.NoError(t, err)
	require.Equal(t, billingdomain.VerifyStatusFail, input.VerifyStatus)
}

func TestNormalizeWebhookUnparseable(t *testing.T) {
	a := NewAdapter("")

	_, err := a.NormalizeWebhook(context.Background(), []byte("{not json"), nil)
	require.ErrorIs(t, err, domain.ErrUnrecognizedPayload)
}

func TestMapTradeState(t *testing.T) {
	require.Equal(t, billingdomain.WebhookStatusSuccess, mapTradeState("SUCCESS"))
	require.Equal(t, billingdomain.WebhookStatusClosed, mapTradeState("CLOSED"))
	require.Equal(t, billingdomain.WebhookStatusClosed, mapTradeState("REVOKED"))
	require.Equal(t, billingdomain.WebhookStatusFailed, mapTradeState("PAYERROR"))
	require.Equal(t, billingdomain.WebhookStatus(""), mapTradeState("NOTPAY"))
}

func TestCreatePaymentPayloadByClientType(t *testing.T) {
	a := NewAdapter("")

	pc, err := a.CreatePaymentPayload(context.Background(), domain.CreatePayloadRequest{
		ClientType: billingdomain.ClientTypeWebPC,
		OutTradeNo: "B456DEF",
		Amount:     2990,
		Currency:   "CNY",
	})
	require.NoError(t, err)
	require.Contains(t, pc.(map[string]any), "code_url")

	h5, err := a.CreatePaymentPayload(context.Background(), domain.CreatePayloadRequest{
		ClientType: billingdomain.ClientTypeWebMobile,
		OutTradeNo: "B456DEF",
		Amount:     2990,
		Currency:   "CNY",
	})
	require.NoError(t, err)
	require.Contains(t, h5.(map[string]any), "h5_url")

	app, err := a.CreatePaymentPayload(context.Background(), domain.CreatePayloadRequest{
		ClientType: billingdomain.ClientTypeAppAndroid,
		OutTradeNo: "B456DEF",
		Amount:     2990,
		Currency:   "CNY",
	})
	require.NoError(t, err)
	require.Contains(t, app.(map[string]any), "prepay_id")
}
