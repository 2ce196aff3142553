package server

import (
	"safe-core/internal/handler"
	"safe-core/internal/handler/response"

	"safe-core/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h *handler.SafeHandler) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		api.GET("/state", h.State)

		wallet := api.Group("/wallet")
		{
			wallet.POST("/connect", h.Connect)
		}

		safe := api.Group("/safe")
		{
			safe.POST("/deploy", h.Deploy)
		}

		tx := api.Group("/transactions")
		{
			tx.GET("", h.History)
			tx.POST("", h.Create)
			tx.POST("/parse", h.Parse)
			tx.POST("/sign", h.Sign)
			tx.POST("/execute", h.Execute)
			tx.POST("/share", h.Share)
			tx.GET("/share/:code", h.Fetch)
		}
	}

	return r
}
