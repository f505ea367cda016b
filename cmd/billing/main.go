package main

import (
	"context"
	"log"
	"time"

	"homebank/internal/audit"
	"homebank/internal/config"
	"homebank/internal/infrastructure/cache"
	"homebank/internal/infrastructure/database"
	"homebank/internal/service"
	"homebank/pkg/idgen"
)

// 月度账单批处理入口，由 cron 调度。
// 先跑信用周期收口，再对同批用户的储蓄账户计息。
// 收口产生的信用快照事件由 server 进程的 outbox 任务投递。
func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(2)

	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)
	auditLog := audit.NewLogger(cfg.Log.Dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log.Printf("------------------------------------------------------------------")
	log.Printf("Credit Summary -- %s", time.Now().Format("2006-01-02"))
	log.Printf("------------------------------------------------------------------")

	billingService := service.NewBillingService(db, redisClient, &cfg.Credit, cfg.Kafka.Topic.CreditSnapshot, auditLog)
	billing, err := billingService.RunMonthlyBilling(ctx)
	if err != nil {
		log.Fatalf("账单批处理失败: %v", err)
	}

	dueDate := billing.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now()
	}

	savingsService := service.NewSavingsService(db, auditLog)
	if _, err := savingsService.ApplyMonthlyInterest(ctx, dueDate); err != nil {
		log.Fatalf("储蓄计息失败: %v", err)
	}

	log.Printf("------------------------------------------------------------------")
}
