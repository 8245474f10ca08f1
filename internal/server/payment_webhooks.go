package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	gatewaydomain "github.com/pagehub/billing/internal/gateway/domain"
)

// HandlePaymentWebhook ingests one provider callback. Reconciliation
// outcomes, processed or ignored, both answer 200 so the provider stops
// retrying; only infrastructure failures return 5xx and trigger a retry.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	channel := c.Param("channel")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.Request.Header.Get(name)
	}

	result, err := s.billingSvc.HandleWebhook(c.Request.Context(), channel, body, headers)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrChannelNotSupported) {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		s.log.Error("webhook processing failed",
			zap.String("channel", channel),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.webhookLimiter.Enabled() {
			c.Next()
			return
		}

		allowed, err := s.webhookLimiter.Allow(c.Request.Context(), c.Param("channel"), c.ClientIP())
		if err != nil {
			// Fail open: a broken limiter must not drop provider callbacks.
			s.log.Warn("webhook rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
