package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/lorg-backend-go/internal/config"
	"github.com/jengzang/lorg-backend-go/internal/handler"
	"github.com/jengzang/lorg-backend-go/internal/middleware"
)

// Handlers 路由用到的全部 handler
type Handlers struct {
	Activity   *handler.ActivityHandler
	Cell       *handler.CellHandler
	Annotation *handler.AnnotationHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Lorg Backend API is running",
		})
	})

	// API 路由组，需要登录
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret))
	if limiter != nil {
		api.Use(middleware.RateLimit(limiter))
	}
	{
		// 活动处理
		activities := api.Group("/activities")
		{
			activities.POST("/process", h.Activity.ProcessActivity)
		}

		// 已访问网格
		cells := api.Group("/cells")
		{
			cells.GET("", h.Cell.GetCells)
			cells.GET("/count", h.Cell.GetCellCount)
		}

		// 活动描述回写
		annotations := api.Group("/annotations")
		{
			annotations.POST("/run", h.Annotation.Run)
		}
	}

	return r
}
