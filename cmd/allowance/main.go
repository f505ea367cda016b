package main

import (
	"context"
	"log"
	"time"

	"homebank/internal/audit"
	"homebank/internal/config"
	"homebank/internal/infrastructure/database"
	"homebank/internal/service"
	"homebank/pkg/idgen"
)

// 每周零花钱发放入口，由 cron 调度。
func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(3)

	db := database.InitMySQL(&cfg.MySQL)
	auditLog := audit.NewLogger(cfg.Log.Dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	allowanceService := service.NewAllowanceService(db, auditLog)
	result, err := allowanceService.GiveAllowance(ctx)
	if err != nil {
		log.Fatalf("零花钱发放失败: %v", err)
	}

	log.Printf("Allowance distribution complete: paid=%d, total=$%.2f", result.Paid, result.TotalOut)
}
