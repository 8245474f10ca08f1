// Package alipay adapts Alipay checkout and asynchronous notify callbacks.
//
// Callbacks arrive form-encoded. Authenticity is checked with an HMAC over
// the sorted parameters against the configured webhook secret; the
// provider's own RSA signing is terminated upstream.
package alipay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/gateway/domain"
)

const gatewayURL = "https://openapi.alipay.com/gateway.do"

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Channel() billingdomain.Channel {
	return billingdomain.ChannelAlipay
}

func (a *Adapter) CreatePaymentPayload(ctx context.Context, req domain.CreatePayloadRequest) (any, error) {
	params := url.Values{}
	params.Set("out_trade_no", req.OutTradeNo)
	params.Set("total_amount", formatAmount(req.Amount))
	params.Set("subject", req.Subject)
	if req.ReturnURL != "" {
		params.Set("return_url", req.ReturnURL)
	}

	payURL := gatewayURL + "?" + params.Encode()
	switch req.ClientType {
	case billingdomain.ClientTypeWebPC, billingdomain.ClientTypeWebMobile:
		return map[string]any{"pay_url": payURL}, nil
	default:
		// App and mini-program surfaces render the order string themselves.
		return map[string]any{"order_str": params.Encode()}, nil
	}
}

func (a *Adapter) NormalizeWebhook(ctx context.Context, body []byte, headers map[string]string) (billingdomain.WebhookInput, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) == 0 {
		return billingdomain.WebhookInput{}, domain.ErrUnrecognizedPayload
	}

	input := billingdomain.WebhookInput{
		Channel:         billingdomain.ChannelAlipay,
		EventID:         strings.TrimSpace(values.Get("notify_id")),
		OutTradeNo:      strings.TrimSpace(values.Get("out_trade_no")),
		ProviderTradeNo: strings.TrimSpace(values.Get("trade_no")),
		Status:          mapTradeStatus(values.Get("trade_status")),
		Currency:        strings.ToUpper(strings.TrimSpace(values.Get("currency"))),
		VerifyStatus:    a.verify(values),
		RawBody:         string(body),
		Headers:         headers,
	}

	if input.Currency == "" && values.Has("total_amount") {
		// Alipay omits the currency on domestic trades.
		input.Currency = "CNY"
	}

	if raw := strings.TrimSpace(values.Get("total_amount")); raw != "" {
		if amount, err := parseAmountMinor(raw); err == nil {
			input.Amount = &amount
		}
	}

	if raw := strings.TrimSpace(values.Get("gmt_payment")); raw != "" {
		if paidAt, err := time.ParseInLocation("2006-01-02 15:04:05", raw, time.UTC); err == nil {
			input.PaidAt = &paidAt
		}
	}

	return input, nil
}

func (a *Adapter) verify(values url.Values) billingdomain.VerifyStatus {
	sign := strings.TrimSpace(values.Get("sign"))
	if sign == "" {
		return billingdomain.VerifyStatusFail
	}
	if a.webhookSecret == "" {
		// No secret configured: verification is delegated to the upstream
		// edge, accept the callback as-is.
		return billingdomain.VerifyStatusPass
	}
	if hmac.Equal([]byte(sign), []byte(Sign(a.webhookSecret, values))) {
		return billingdomain.VerifyStatusPass
	}
	return billingdomain.VerifyStatusFail
}

// Sign computes the HMAC-SHA256 over the sorted notify parameters,
// excluding sign and sign_type. Exported so tests and upstream tooling can
// build valid callbacks.
func Sign(secret string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "sign" || key == "sign_type" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(values.Get(key))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func mapTradeStatus(raw string) billingdomain.WebhookStatus {
	switch strings.TrimSpace(raw) {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		return billingdomain.WebhookStatusSuccess
	case "TRADE_CLOSED":
		return billingdomain.WebhookStatusClosed
	default:
		return ""
	}
}

// parseAmountMinor converts a decimal yuan string ("29.90") into minor
// units without going through floating point.
func parseAmountMinor(raw string) (int64, error) {
	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" {
		whole = "0"
	}
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return units*100 + cents, nil
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
