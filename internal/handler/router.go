package handler

import (
	"homebank/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 用户相关
		user := api.Group("/user")
		{
			user.POST("/create", h.CreateUser)
			user.GET("/detail", h.GetUser)
		}

		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/list", h.ListAccounts)
			account.GET("/balance", h.GetBalance)
		}

		// 转账相关
		transfer := api.Group("/transfer")
		{
			transfer.POST("/execute", h.Transfer)
		}

		// 信用借还
		credit := api.Group("/credit")
		{
			credit.POST("/withdraw", h.CreditWithdraw)
			credit.POST("/pay", h.CreditPay)
			credit.GET("/history", h.ListCreditHistory)
		}

		// 流水查询
		transaction := api.Group("/transaction")
		{
			transaction.GET("/list", h.ListTransactions)
		}

		// 积分兑换
		reward := api.Group("/reward")
		{
			reward.POST("/redeem", h.RedeemReward)
		}

		// 批处理触发
		batch := api.Group("/batch")
		{
			batch.POST("/billing", h.RunBilling)
			batch.POST("/allowance", h.RunAllowance)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
