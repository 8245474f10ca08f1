package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
)

type createOrderBody struct {
	PriceID    string `json:"price_id"`
	Channel    string `json:"channel"`
	ClientType string `json:"client_type"`
	ReturnURL  string `json:"return_url"`
}

const headerIdempotencyKey = "Idempotency-Key"

func (s *Server) CreateOrder(c *gin.Context) {
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.CreateOrder(c.Request.Context(), billingdomain.CreateOrderRequest{
		TenantID:       s.tenantHeader(c),
		ActorUserID:    s.actorHeader(c),
		PriceID:        body.PriceID,
		Channel:        body.Channel,
		ClientType:     body.ClientType,
		ReturnURL:      body.ReturnURL,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Reused {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (s *Server) GetOrder(c *gin.Context) {
	detail, err := s.billingSvc.GetOrder(c.Request.Context(), billingdomain.GetOrderRequest{
		TenantID:    s.tenantHeader(c),
		ActorUserID: s.actorHeader(c),
		OrderID:     c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) CancelOrder(c *gin.Context) {
	order, err := s.billingSvc.CancelOrder(c.Request.Context(), billingdomain.CancelOrderRequest{
		TenantID:    s.tenantHeader(c),
		ActorUserID: s.actorHeader(c),
		OrderID:     c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) ListBills(c *gin.Context) {
	resp, err := s.billingSvc.ListBills(c.Request.Context(), billingdomain.ListBillsRequest{
		TenantID:    s.tenantHeader(c),
		ActorUserID: s.actorHeader(c),
		Skip:        queryInt(c, "skip", 0),
		Take:        queryInt(c, "take", 20),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetSubscription(c *gin.Context) {
	sub, err := s.billingSvc.GetSubscription(c.Request.Context(), billingdomain.GetSubscriptionRequest{
		TenantID:    s.tenantHeader(c),
		ActorUserID: s.actorHeader(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) ListEntitlements(c *gin.Context) {
	var at time.Time
	if raw := strings.TrimSpace(c.Query("at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		at = parsed
	}

	ents, err := s.billingSvc.ListEntitlements(c.Request.Context(), billingdomain.ListEntitlementsRequest{
		TenantID:    s.tenantHeader(c),
		ActorUserID: s.actorHeader(c),
		At:          at,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entitlements": ents})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
