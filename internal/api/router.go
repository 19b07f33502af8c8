package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/hijabworld/config"
	_ "github.com/d60-Lab/hijabworld/docs"
	"github.com/d60-Lab/hijabworld/internal/api/handler"
	"github.com/d60-Lab/hijabworld/internal/api/middleware"
)

// RouterOptions 路由依赖
type RouterOptions struct {
	Config      *config.Config
	Handler     *handler.Handler
	Tokens      middleware.TokenParser
	RateLimiter *middleware.IPRateLimiter
}

// NewRouter 注册全部路由
func NewRouter(opts RouterOptions) *gin.Engine {
	cfg := opts.Config
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(middleware.Recovery())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.Logger(), middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", middleware.PrometheusHandler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h := opts.Handler
	authed := middleware.Auth(opts.Tokens)

	apiGroup := r.Group("/api")
	if opts.RateLimiter != nil {
		apiGroup.Use(opts.RateLimiter.Middleware())
	}

	auth := apiGroup.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/register", h.Signup)
		auth.POST("/login", h.Login)
		auth.GET("/me", authed, h.Me)
	}

	products := apiGroup.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.GET("/categories", h.ListCategories)
		products.GET("/:id", h.GetProduct)
	}

	orders := apiGroup.Group("/orders")
	{
		orders.POST("/verify-payment", h.VerifyPayment)
		orders.POST("", authed, h.CreateOrder)
		orders.GET("/my-orders", authed, h.ListMyOrders)
		orders.GET("/recent", authed, h.RecentOrders)
		orders.GET("/:id", authed, h.GetOrder)
		orders.PUT("/:id/cancel", authed, h.CancelOrder)
	}

	notifications := apiGroup.Group("/notifications", authed)
	{
		notifications.GET("", h.ListNotifications)
		notifications.GET("/stats", h.NotificationStats)
		notifications.PUT("/read-all", h.MarkAllNotificationsRead)
		notifications.PUT("/:id/read", h.MarkNotificationRead)
		notifications.DELETE("/:id", h.DeleteNotification)
	}

	admin := apiGroup.Group("/admin", authed, middleware.Admin())
	{
		admin.GET("/stats", h.DashboardStats)

		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.PUT("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)

		admin.GET("/orders", h.ListAllOrders)
		admin.PUT("/orders/:id", h.UpdateOrderStatus)

		admin.GET("/products", h.ListAdminProducts)
		admin.POST("/products", h.CreateProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.DELETE("/products/:id", h.DeleteProduct)
	}

	return r
}
