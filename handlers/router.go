package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/wholesale_backend/middlewares"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Store  models.Store
	Cart   *workflow.CartService
	Logger *logrus.Logger
}

type RouterOptions struct {
	// AllowOrigins restricts CORS; empty allows every origin.
	AllowOrigins []string
	// RateLimit, when set, runs before authentication on every API route.
	RateLimit gin.HandlerFunc
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.MetricsMiddleware())
	r.Use(customErrorLogger(h.Logger))

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", middlewares.CartSessionHeader,
		middlewares.CorrelationIdHeader, IdempotencyKeyHeader)
	corsConfig.ExposeHeaders = []string{middlewares.CorrelationIdHeader}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/")
	if opts.RateLimit != nil {
		api.Use(opts.RateLimit)
	}
	api.Use(
		middlewares.CorrelationMiddleware(),
		middlewares.AuthMiddleware(),
		middlewares.RequireUser(),
		middlewares.LoaderMiddleware(h.Store),
	)

	cart := api.Group("/cart")
	cart.Use(middlewares.CartSessionMiddleware())
	cart.GET("", h.getCart())
	cart.POST("/items", h.addToCart())
	cart.DELETE("/items/:lineId", h.removeFromCart())
	cart.PUT("/items/:lineId/quantity", h.setQuantity())
	cart.PUT("/items/:lineId/colors", h.setColorAllocation())
	cart.GET("/groups", h.getSupplierGroups())
	cart.GET("/minimums", h.validateMinimums())
	cart.POST("/checkout", h.checkout())

	products := api.Group("/products")
	products.Use(middlewares.RequireRole(RoleAdmin, RoleStaff))
	products.POST("", h.createProduct())
	products.PUT("/:id/pricing", h.updateProductPricing())
	products.PUT("/:id/colors", h.updateColorBreakdown())
	products.POST("/:id/stock-movements", h.applyStockMovement())
	products.GET("/:id/stock-movements", h.listStockMovements())

	api.POST("/query", h.graphqlHandler())

	api.POST("/internal/ops/outbox/replay", middlewares.RequireRole(RoleAdmin), h.outboxReplay())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// customErrorLogger logs errors attached to the gin context.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && logger != nil {
			logger.Error(c.Errors.String())
		}
	}
}
