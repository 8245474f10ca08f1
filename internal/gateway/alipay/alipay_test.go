package alipay

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/gateway/domain"
)

func TestNormalizeWebhookSuccess(t *testing.T) {
	secret := "test-secret"
	a := NewAdapter(secret)

	values := url.Values{}
	values.Set("notify_id", "evt-42")
	values.Set("out_trade_no", "B123ABC")
	values.Set("trade_no", "20260301trade")
	values.Set("trade_status", "TRADE_SUCCESS")
	values.Set("total_amount", "29.90")
	values.Set("gmt_payment", "2026-03-01 12:30:00")
	values.Set("sign", Sign(secret, values))

	input, err := a.NormalizeWebhook(context.Background(), []byte(values.Encode()), nil)
	require.NoError(t, err)
	require.Equal(t, billingdomain.ChannelAlipay, input.Channel)
	require.Equal(t, "evt-42", input.EventID)
	require.Equal(t, "B123ABC", input.OutTradeNo)
	require.Equal(t, "20260301trade", input.ProviderTradeNo)
	require.Equal(t, billingdomain.WebhookStatusSuccess, input.Status)
	require.Equal(t, billingdomain.VerifyStatusPass, input.VerifyStatus)
	require.NotNil(t, input.Amount)
	require.Equal(t, int64(2990), *input.Amount)
	require.Equal(t, "CNY", input.Currency)
	require.NotNil(t, input.PaidAt)
	require.Equal(t, "2026-03-01T12:30:00Z", input.PaidAt.Format("2006-01-02T15:04:05Z"))
}

func TestNormalizeWebhookBadSignature(t *testing.T) {
	a := NewAdapter("test-secret")

	values := url.Values{}
	values.Set("notify_id", "evt-42")
	values.Set("out_trade_no", "B123ABC")
	values.Set("trade_status", "TRADE_SUCCESS")
	values.Set("total_amount", "29.90")
	values.Set("sign", "forged")

	input, err := a.NormalizeWebhook(context.Background(), []byte(values.Encode()), nil)
	require.NoError(t, err)
	require.Equal(t, billingdomain.VerifyStatusFail, input.VerifyStatus)
}

func TestNormalizeWebhookUnparseable(t *testing.T) {
	a := NewAdapter("")

	_, err := a.NormalizeWebhook(context.Background(), []byte(""), nil)
	require.ErrorIs(t, err, domain.ErrUnrecognizedPayload)
}

func TestNormalizeWebhookUnknownStatus(t *testing.T) {
	a := NewAdapter("")

	values := url.Values{}
	values.Set("notify_id", "evt-42")
	values.Set("out_trade_no", "B123ABC")
	values.Set("trade_status", "WAIT_BUYER_PAY")
	values.Set("sign", "x")

	input, err := a.NormalizeWebhook(context.Background(), []byte(values.Encode()), nil)
	require.NoError(t, err)
	require.Equal(t, billingdomain.WebhookStatus(""), input.Status)
}

func TestParseAmountMinor(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"29.90", 2990},
		{"29.9", 2990},
		{"29", 2900},
		{"0.01", 1},
		{".50", 50},
	}
	for _, tc := range cases {
		got, err := parseAmountMinor(tc.raw)
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, got, tc.raw)
	}

	_, err := parseAmountMinor("29.999")
	require.Error(t, err)
	_, err = parseAmountMinor("abc")
	require.Error(t, err)
}

func TestCreatePaymentPayload(t *testing.T) {
	a := NewAdapter("")

	web, err := a.CreatePaymentPayload(context.Background(), domain.CreatePayloadRequest{
		ClientType: billingdomain.ClientTypeWebPC,
		OutTradeNo: "B123ABC",
		Amount:     2990,
		Subject:    "Pro",
	})
	require.NoError(t, err)
	require.Contains(t, web.(map[string]any), "pay_url")

	app, err := a.CreatePaymentPayload(context.Background(), domain.CreatePayloadRequest{
		ClientType: billingdomain.ClientTypeAppIOS,
		OutTradeNo: "B123ABC",
		Amount:     2990,
		Subject:    "Pro",
	})
	require.NoError(t, err)
	require.Contains(t, app.(map[string]any), "order_str")
}
