package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prestadash/internal/controller"
	"prestadash/internal/middleware"
)

// Controllers groups every HTTP handler set.
type Controllers struct {
	Site    *controller.SiteController
	Sync    *controller.SyncController
	Product *controller.ProductController
	Alert   *controller.AlertController
	Webhook *controller.WebhookController
}

// Options carries the middleware knobs.
type Options struct {
	AllowedOrigins []string
	// zero uses the per-action defaults
	ManualSyncCooldown time.Duration
	WebhookLimiter     *middleware.KeyRateLimiter
	SyncLimiter        *middleware.SyncRateLimiter
}

// SetupRouter builds the gin engine with every route registered.
func SetupRouter(ctl *Controllers, opts Options, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger), middleware.CORS(opts.AllowedOrigins))

	if opts.SyncLimiter == nil {
		opts.SyncLimiter = middleware.NewSyncRateLimiter()
	}
	if opts.WebhookLimiter == nil {
		opts.WebhookLimiter = middleware.NewKeyRateLimiter(1, 5)
	}

	InitRoutes(r, ctl, opts)
	return r
}

// InitRoutes registers every route on r.
func InitRoutes(r *gin.Engine, ctl *Controllers, opts Options) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 200, "message": "ok"})
	})

	api := r.Group("/api")
	{
		// store push, authenticated by the site api key
		api.POST("/webhook/products", middleware.WebhookAuth(opts.WebhookLimiter), ctl.Webhook.ReceiveProducts)
	}

	v1 := api.Group("/v1")
	{
		sites := v1.Group("/sites")
		{
			sites.POST("", ctl.Site.CreateSite)
			sites.GET("", ctl.Site.ListSites)
			sites.GET("/:id", ctl.Site.GetSite)
			sites.PUT("/:id", ctl.Site.UpdateSite)
			sites.DELETE("/:id", ctl.Site.DeleteSite)

			sites.POST("/:id/test",
				middleware.SyncRateLimit(opts.SyncLimiter, middleware.SyncTypeConnection, 0),
				ctl.Sync.TestConnection,
			)
			sites.POST("/:id/sync",
				middleware.SyncRateLimit(opts.SyncLimiter, middleware.SyncTypeProducts, opts.ManualSyncCooldown),
				ctl.Sync.Sync,
			)
			sites.POST("/:id/reset", ctl.Sync.Reset)
			sites.GET("/:id/stats", ctl.Sync.GetStats)
			sites.POST("/:id/stats",
				middleware.SyncRateLimit(opts.SyncLimiter, middleware.SyncTypeStats, 0),
				ctl.Sync.FetchStats,
			)

			sites.GET("/:id/logs", ctl.Site.ListLogs)
			sites.DELETE("/:id/logs", ctl.Site.ClearLogs)
		}

		products := v1.Group("/products")
		{
			products.GET("", ctl.Product.ListProducts)
			products.GET("/:id", ctl.Product.GetProduct)
			products.DELETE("/:id", ctl.Product.DeleteProduct)
			products.POST("/:id/price-history/refresh",
				middleware.ProductSyncRateLimit(opts.SyncLimiter, middleware.SyncTypePriceHistory, 0),
				ctl.Product.RefreshPriceHistory,
			)
		}

		alerts := v1.Group("/alerts")
		{
			alerts.GET("", ctl.Alert.ListAlerts)
			alerts.POST("/:id/resolve", ctl.Alert.ResolveAlert)
		}

		v1.POST("/maintenance/orphans", ctl.Sync.SweepOrphans)
	}
}
