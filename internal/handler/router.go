package handler

import (
	"github.com/ragav2730/shop-debt-system-sub001/internal/config"
	"github.com/ragav2730/shop-debt-system-sub001/internal/projection"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, cache *projection.Cache) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, cache)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 客户相关
		customer := api.Group("/customer")
		{
			customer.POST("/create", h.CreateCustomer)
			customer.GET("/list", h.ListCustomers)
			customer.GET("/ledger", h.GetLedger)
		}

		// 赊购相关
		purchase := api.Group("/purchase")
		{
			purchase.POST("/create", h.CreatePurchase)
			purchase.GET("/list", h.ListPurchases)
		}

		// 还款相关
		payment := api.Group("/payment")
		{
			payment.POST("/execute", h.ApplyPayment)
			payment.GET("/list", h.ListPayments)
		}

		// 退款相关
		refund := api.Group("/refund")
		{
			refund.POST("/execute", h.ApplyRefund)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
