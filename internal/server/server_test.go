package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/config"
	gatewaydomain "github.com/pagehub/billing/internal/gateway/domain"
)

type stubBillingService struct {
	createOrder func(billingdomain.CreateOrderRequest) (billingdomain.CreateOrderResponse, error)
	cancelOrder func(billingdomain.CancelOrderRequest) (billingdomain.Order, error)
	webhook     func(channel string, body []byte) (billingdomain.WebhookResult, error)
}

func (s *stubBillingService) CreateOrder(ctx context.Context, req billingdomain.CreateOrderRequest) (billingdomain.CreateOrderResponse, error) {
	return s.createOrder(req)
}

func (s *stubBillingService) CancelOrder(ctx context.Context, req billingdomain.CancelOrderRequest) (billingdomain.Order, error) {
	return s.cancelOrder(req)
}

func (s *stubBillingService) GetOrder(ctx context.Context, req billingdomain.GetOrderRequest) (billingdomain.OrderDetail, error) {
	return billingdomain.OrderDetail{}, billingdomain.ErrOrderNotFound
}

func (s *stubBillingService) ListBills(ctx context.Context, req billingdomain.ListBillsRequest) (billingdomain.ListBillsResponse, error) {
	return billingdomain.ListBillsResponse{}, nil
}

func (s *stubBillingService) GetSubscription(ctx context.Context, req billingdomain.GetSubscriptionRequest) (billingdomain.Subscription, error) {
	return billingdomain.Subscription{}, billingdomain.ErrSubscriptionNotFound
}

func (s *stubBillingService) ListEntitlements(ctx context.Context, req billingdomain.ListEntitlementsRequest) ([]billingdomain.Entitlement, error) {
	return nil, nil
}

func (s *stubBillingService) HandleWebhook(ctx context.Context, channel string, body []byte, headers map[string]string) (billingdomain.WebhookResult, error) {
	return s.webhook(channel, body)
}

func newTestServer(t *testing.T, svc billingdomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(zap.NewNop(), prometheus.NewRegistry())
	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{},
		Log:        zap.NewNop(),
		BillingSvc: svc,
	})
	registerRoutes(srv)
	return srv
}

func TestHandlePaymentWebhookAlwaysAcks(t *testing.T) {
	svc := &stubBillingService{
		webhook: func(channel string, body []byte) (billingdomain.WebhookResult, error) {
			require.Equal(t, "alipay", channel)
			return billingdomain.Ignored(billingdomain.ReasonDuplicateEvent), nil
		},
	}
	srv := newTestServer(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments/alipay", strings.NewReader("notify_id=evt-1"))
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"kind":"IGNORED"`)
	require.Contains(t, w.Body.String(), `"reason":"DUPLICATE_EVENT"`)
}

func TestHandlePaymentWebhookUnknownChannel(t *testing.T) {
	svc := &stubBillingService{
		webhook: func(channel string, body []byte) (billingdomain.WebhookResult, error) {
			return billingdomain.WebhookResult{}, gatewaydomain.ErrChannelNotSupported
		},
	}
	srv := newTestServer(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments/paypal", strings.NewReader("{}"))
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderEndpoint(t *testing.T) {
	svc := &stubBillingService{
		createOrder: func(req billingdomain.CreateOrderRequest) (billingdomain.CreateOrderResponse, error) {
			require.Equal(t, "90000000000001", req.TenantID)
			require.Equal(t, "90000000000002", req.ActorUserID)
			require.Equal(t, "ik-1", req.IdempotencyKey)
			return billingdomain.CreateOrderResponse{
				OrderID: "1", OrderNo: "B1", Status: billingdomain.OrderStatusPaying,
			}, nil
		},
	}
	srv := newTestServer(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders",
		strings.NewReader(`{"price_id":"PRO_MONTHLY","channel":"ALIPAY"}`))
	req.Header.Set(HeaderTenant, "90000000000001")
	req.Header.Set(HeaderActor, "90000000000002")
	req.Header.Set(headerIdempotencyKey, "ik-1")
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"order_no":"B1"`)
}

func TestCreateOrderReusedReturns200(t *testing.T) {
	svc := &stubBillingService{
		createOrder: func(req billingdomain.CreateOrderRequest) (billingdomain.CreateOrderResponse, error) {
			return billingdomain.CreateOrderResponse{OrderID: "1", Reused: true}, nil
		},
	}
	srv := newTestServer(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(`{"price_id":"PRO_MONTHLY"}`))
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", billingdomain.ErrChannelInvalid, http.StatusBadRequest},
		{"forbidden", billingdomain.ErrPermissionDenied, http.StatusForbidden},
		{"conflict", billingdomain.ErrOrderPaidCannotCancel, http.StatusConflict},
		{"already_closed", billingdomain.ErrOrderAlreadyClosed, http.StatusConflict},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubBillingService{
				cancelOrder: func(req billingdomain.CancelOrderRequest) (billingdomain.Order, error) {
					return billingdomain.Order{}, tc.err
				},
			}
			srv := newTestServer(t, svc)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/orders/123/cancel", nil)
			srv.Engine().ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
		})
	}
}

func TestGetOrderNotFound(t *testing.T) {
	srv := newTestServer(t, &stubBillingService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/orders/123", nil)
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubBillingService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
