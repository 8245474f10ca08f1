package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderTenant    = "X-Tenant-Id"
	HeaderActor     = "X-Actor-Id"
	HeaderRequestID = "X-Request-Id"
)

// RequestLogger assigns a request id and emits one structured line per
// request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	l := log.Named("http.access")
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)
		c.Set("request_id", requestID)

		start := time.Now()
		c.Next()

		l.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) tenantHeader(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderTenant))
}

func (s *Server) actorHeader(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderActor))
}
