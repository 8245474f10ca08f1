package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/pagehub/billing/internal/config"
)

const keyWebhook = "webhook:%s:%s"

// WebhookLimiter throttles inbound payment webhooks per channel and source
// address. A nil limiter (no redis configured) allows everything; providers
// retry aggressively and the dedup index makes repeats harmless, so the
// limiter only shields the database from floods.
type WebhookLimiter struct {
	bucket *TokenBucket

	rate  float64
	burst int
}

func NewWebhookLimiter(cfg config.Config) (*WebhookLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &WebhookLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.WebhookRateLimit,
		burst:  cfg.WebhookRateBurst,
	}, nil
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WebhookLimiter) Allow(ctx context.Context, channel, remoteIP string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyWebhook, strings.ToUpper(strings.TrimSpace(channel)), strings.TrimSpace(remoteIP))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
