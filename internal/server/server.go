package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pagehub/billing/internal/authorization"
	"github.com/pagehub/billing/internal/billing"
	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/catalog"
	"github.com/pagehub/billing/internal/config"
	"github.com/pagehub/billing/internal/gateway"
	obsmetrics "github.com/pagehub/billing/internal/observability/metrics"
	"github.com/pagehub/billing/internal/ratelimit"
)

var Module = fx.Module("http.server",
	catalog.Module,
	gateway.Module,
	authorization.Module,
	obsmetrics.Module,
	ratelimit.Module,
	billing.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	billingSvc     billingdomain.Service
	webhookLimiter *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	BillingSvc     billingdomain.Service
	WebhookLimiter *ratelimit.WebhookLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		billingSvc:     p.BillingSvc,
		webhookLimiter: p.WebhookLimiter,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func registerRoutes(s *Server) {
	s.RegisterBillingRoutes()
	s.RegisterWebhookRoutes()
}

func (s *Server) RegisterBillingRoutes() {
	v1 := s.engine.Group("/v1")

	orders := v1.Group("/orders")
	{
		orders.POST("", s.CreateOrder)
		orders.GET("/:id", s.GetOrder)
		orders.POST("/:id/cancel", s.CancelOrder)
	}

	v1.GET("/bills", s.ListBills)
	v1.GET("/subscription", s.GetSubscription)
	v1.GET("/entitlements", s.ListEntitlements)
}

func (s *Server) RegisterWebhookRoutes() {
	v1 := s.engine.Group("/v1")
	v1.POST("/webhooks/payments/:channel", s.WebhookRateLimit(), s.HandlePaymentWebhook)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
