package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/toolvault/internal/audit"
	auditdomain "github.com/smallbiznis/toolvault/internal/audit/domain"
	"github.com/smallbiznis/toolvault/internal/cart"
	cartdomain "github.com/smallbiznis/toolvault/internal/cart/domain"
	"github.com/smallbiznis/toolvault/internal/catalog"
	catalogdomain "github.com/smallbiznis/toolvault/internal/catalog/domain"
	"github.com/smallbiznis/toolvault/internal/clock"
	"github.com/smallbiznis/toolvault/internal/config"
	"github.com/smallbiznis/toolvault/internal/licensepool"
	pooldomain "github.com/smallbiznis/toolvault/internal/licensepool/domain"
	"github.com/smallbiznis/toolvault/internal/migration"
	"github.com/smallbiznis/toolvault/internal/observability"
	obsmiddleware "github.com/smallbiznis/toolvault/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/toolvault/internal/observability/metrics"
	obstracing "github.com/smallbiznis/toolvault/internal/observability/tracing"
	"github.com/smallbiznis/toolvault/internal/order"
	orderdomain "github.com/smallbiznis/toolvault/internal/order/domain"
	"github.com/smallbiznis/toolvault/internal/payment"
	paymentdomain "github.com/smallbiznis/toolvault/internal/payment/domain"
	"github.com/smallbiznis/toolvault/internal/ratelimit"
	"github.com/smallbiznis/toolvault/internal/renewal"
	renewaldomain "github.com/smallbiznis/toolvault/internal/renewal/domain"
	"github.com/smallbiznis/toolvault/internal/scheduler"
	"github.com/smallbiznis/toolvault/pkg/db"
)

var Module = fx.Module("server",
	config.Module,
	observability.Module,
	db.Module,
	clock.Module,
	migration.Module,

	audit.Module,
	catalog.Module,
	licensepool.Module,
	cart.Module,
	order.Module,
	payment.Module,
	renewal.Module,
	ratelimit.Module,
	scheduler.Module,

	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	catalogSvc catalogdomain.Service
	poolSvc    pooldomain.Service
	cartSvc    cartdomain.Service
	orderSvc   orderdomain.Service
	paymentSvc paymentdomain.Service
	renewalSvc renewaldomain.Service
	auditSvc   auditdomain.Service
	limiter    *ratelimit.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	CatalogSvc catalogdomain.Service
	PoolSvc    pooldomain.Service
	CartSvc    cartdomain.Service
	OrderSvc   orderdomain.Service
	PaymentSvc paymentdomain.Service
	RenewalSvc renewaldomain.Service
	AuditSvc   auditdomain.Service
	Limiter    *ratelimit.TokenBucket `optional:"true"`

	Sweeper *scheduler.Sweeper
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("server"),
		genID:      p.GenID,
		catalogSvc: p.CatalogSvc,
		poolSvc:    p.PoolSvc,
		cartSvc:    p.CartSvc,
		orderSvc:   p.OrderSvc,
		paymentSvc: p.PaymentSvc,
		renewalSvc: p.RenewalSvc,
		auditSvc:   p.AuditSvc,
		limiter:    p.Limiter,
	}

	svc.registerStorefrontRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerStorefrontRoutes() {
	api := s.engine.Group("/api")

	api.GET("/tools", s.ListTools)
	api.GET("/tools/:slug", s.GetToolBySlug)

	authed := api.Group("")
	authed.Use(s.AccountRequired())

	authed.GET("/cart", s.GetCart)
	authed.GET("/cart/count", s.CartItemCount)
	authed.POST("/cart/items", s.cartRateLimit(), s.AddCartItem)
	authed.PATCH("/cart/items/:id", s.cartRateLimit(), s.UpdateCartItem)
	authed.DELETE("/cart/items/:id", s.cartRateLimit(), s.RemoveCartItem)

	authed.POST("/checkout", s.Checkout)
	authed.GET("/orders", s.ListOrders)
	authed.GET("/orders/:id", s.GetOrder)
	authed.POST("/orders/:id/cancel", s.CancelOrder)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/api/payments/webhooks/:provider", s.webhookRateLimit(), s.PaymentWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")
	admin.Use(s.AdminKeyRequired())

	admin.POST("/tools", s.CreateTool)
	admin.POST("/licenses", s.CreateLicense)
	admin.PATCH("/licenses/:id", s.UpdateLicense)

	admin.POST("/license-accounts", s.ProvisionAccount)
	admin.GET("/license-accounts", s.ListAccounts)
	admin.GET("/license-accounts/availability", s.AccountAvailability)
	admin.POST("/license-accounts/:id/release", s.ReleaseAccount)
	admin.GET("/license-accounts/:id/renewals", s.ListAccountRenewals)

	admin.POST("/renewals", s.RenewAccount)

	admin.GET("/orders/:reference", s.GetOrderByReference)
	admin.POST("/orders/:id/allocate", s.RetryAllocation)

	admin.GET("/audit-logs", s.ListAuditLogs)
}
