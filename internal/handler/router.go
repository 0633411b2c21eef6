package handler

import (
	"canteen/internal/config"
	"canteen/internal/infrastructure/lock"
	"canteen/internal/notify"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, cfg *config.Config, locker lock.Locker, hub *notify.Hub) *gin.Engine {
	if cfg.Server.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, cfg, locker, hub)

	api := r.Group("/api")
	{
		orders := api.Group("/orders")
		{
			orders.POST("", h.CreateOrder)
			orders.GET("/:id", h.GetOrder)
			orders.PATCH("/:id", h.UpdateOrder)
			orders.PUT("/:id", h.UpdateOrder)
			orders.DELETE("/:id", h.DeleteOrder)
		}

		student := api.Group("/student")
		{
			student.POST("/pay", h.PayOrder)
			student.GET("/:id", h.GetStudent)
			student.GET("/:id/orders", h.ListStudentOrders)
		}

		merchant := api.Group("/merchant")
		{
			merchant.GET("/:id/orders", h.ListMerchantOrders)
			merchant.GET("/:id/stock", h.ListMerchantStock)
		}

		api.GET("/socket", gin.WrapH(notify.NewServer(hub)))
		api.POST("/emit", h.Emit)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
