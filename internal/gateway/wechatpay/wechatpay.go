// Package wechatpay adapts WeChat Pay checkout and notify callbacks.
//
// Callbacks arrive as JSON with the transaction resource inline; the
// Wechatpay-Signature header carries an HMAC over the raw body against the
// configured webhook secret.
package wechatpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/gateway/domain"
)

const SignatureHeader = "Wechatpay-Signature"

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Channel() billingdomain.Channel {
	return billingdomain.ChannelWechatPay
}

func (a *Adapter) CreatePaymentPayload(ctx context.Context, req domain.CreatePayloadRequest) (any, error) {
	payload := map[string]any{
		"out_trade_no": req.OutTradeNo,
		"total":        req.Amount,
		"currency":     req.Currency,
		"description":  req.Subject,
		"nonce_str":    uuid.NewString(),
	}
	switch req.ClientType {
	case billingdomain.ClientTypeWebPC:
		payload["code_url"] = "weixin://wxpay/bizpayurl?pr=" + req.OutTradeNo
	case billingdomain.ClientTypeWebMobile:
		payload["h5_url"] = "https://wx.tenpay.com/cgi-bin/mmpayweb-bin/checkmweb?out_trade_no=" + req.OutTradeNo
	default:
		payload["prepay_id"] = "wx" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return payload, nil
}

type notifyBody struct {
	ID         string `json:"id"`
	OutTradeNo string `json:"out_trade_no"`
	TxnID      string `json:"transaction_id"`
	TradeState string `json:"trade_state"`
	Amount     *struct {
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
	SuccessTime string `json:"success_time"`
}

func (a *Adapter) NormalizeWebhook(ctx context.Context, body []byte, headers map[string]string) (billingdomain.WebhookInput, error) {
	var notify notifyBody
	if err := json.Unmarshal(body, &notify); err != nil {
		return billingdomain.WebhookInput{}, domain.ErrUnrecognizedPayload
	}

	input := billingdomain.WebhookInput{
		Channel:         billingdomain.ChannelWechatPay,
		EventID:         strings.TrimSpace(notify.ID),
		OutTradeNo:      strings.TrimSpace(notify.OutTradeNo),
		ProviderTradeNo: strings.TrimSpace(notify.TxnID),
		Status:          mapTradeState(notify.TradeState),
		VerifyStatus:    a.verify(body, headers),
		RawBody:         string(body),
		Headers:         headers,
	}

	if notify.Amount != nil {
		total := notify.Amount.Total
		input.Amount = &total
		input.Currency = strings.ToUpper(strings.TrimSpace(notify.Amount.Currency))
	}

	if raw := strings.TrimSpace(notify.SuccessTime); raw != "" {
		if paidAt, err := time.Parse(time.RFC3339, raw); err == nil {
			utc := paidAt.UTC()
			input.PaidAt = &utc
		}
	}

	return input, nil
}

func (a *Adapter) verify(body []byte, headers map[string]string) billingdomain.VerifyStatus {
	signature := strings.TrimSpace(headerValue(headers, SignatureHeader))
	if signature == "" {
		return billingdomain.VerifyStatusFail
	}
	if a.webhookSecret == "" {
		return billingdomain.VerifyStatusPass
	}
	if hmac.Equal([]byte(signature), []byte(Sign(a.webhookSecret, body))) {
		return billingdomain.VerifyStatusPass
	}
	return billingdomain.VerifyStatusFail
}

// Sign computes the HMAC-SHA256 signature over the raw notify body.
// Exported so tests can build valid callbacks.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for key, v := range headers {
		if strings.EqualFold(key, name) {
			return v
		}
	}
	return ""
}

func mapTradeState(raw string) billingdomain.WebhookStatus {
	switch strings.TrimSpace(raw) {
	case "SUCCESS":
		return billingdomain.WebhookStatusSuccess
	case "CLOSED", "REVOKED":
		return billingdomain.WebhookStatusClosed
	case "PAYERROR":
		return billingdomain.WebhookStatusFailed
	default:
		return ""
	}
}
