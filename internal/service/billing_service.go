package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"homebank/internal/audit"
	"homebank/internal/config"
	"homebank/internal/infrastructure/lock"
	"homebank/internal/model"
	"homebank/internal/repository"
	"homebank/pkg/idgen"
	"homebank/pkg/money"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// BillingService 月度账单批处理
//
// 扫描全部信用账户，对账单日是今天的账户执行周期收口：
// 核算计分与积分、入账滞纳金和利息、推进账单日、落信用快照。
// 数值逻辑全部在 EvaluateCycle 里，这里只管锁、事务和落库。
type BillingService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.CreditConfig
	topic       string // 信用快照事件的 Kafka topic
	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	historyRepo *repository.CreditHistoryRepository
	outboxRepo  *repository.OutboxRepository
	auditLog    *audit.Logger
}

func NewBillingService(db *gorm.DB, redisClient *redis.Client, cfg *config.CreditConfig, topic string, auditLog *audit.Logger) *BillingService {
	return &BillingService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		topic:       topic,
		userRepo:    repository.NewUserRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		historyRepo: repository.NewCreditHistoryRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		auditLog:    auditLog,
	}
}

// BillingRunResult 一次批处理的汇总
type BillingRunResult struct {
	Scanned   int       `json:"scanned"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	DueDate   time.Time `json:"due_date"` // 最后一个解析成功的账单日，储蓄利息批次据此判断
}

// RunMonthlyBilling 执行一轮账单批处理
//
// 单个账户出错只跳过该账户，不中断整轮。同一天重复触发由
// Redis 日期锁挡掉，避免利息和滞纳金重复入账。
func (s *BillingService) RunMonthlyBilling(ctx context.Context) (*BillingRunResult, error) {
	today := time.Now()
	todayStr := today.Format("2006-01-02")

	if s.redisClient != nil {
		runLock := lock.NewBillingRunLock(s.redisClient, todayStr)
		ok, err := runLock.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("获取账单批处理锁失败: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("今日账单批处理已在执行: %s", todayStr)
		}
		defer runLock.Unlock(ctx)
	}

	credits, err := s.accountRepo.ListByType(ctx, model.AccountTypeCredit)
	if err != nil {
		return nil, fmt.Errorf("扫描信用账户失败: %w", err)
	}

	result := &BillingRunResult{Scanned: len(credits)}

	for _, credit := range credits {
		user, err := s.userRepo.GetByID(ctx, credit.UserID)
		if err != nil {
			log.Printf("[Billing] 跳过账户 %d: 用户缺失: %v", credit.ID, err)
			result.Skipped++
			continue
		}

		dueDate, err := time.ParseInLocation("2006-01-02", credit.DueDate, time.Local)
		if err != nil {
			log.Printf("[Billing] 跳过账户 %d: 账单日格式错误 %q", credit.ID, credit.DueDate)
			result.Skipped++
			continue
		}
		result.DueDate = dueDate

		if todayStr != credit.DueDate {
			result.Skipped++
			continue
		}

		if err := s.closeCycle(ctx, user, credit.ID, dueDate); err != nil {
			log.Printf("[Billing] 账户 %d 周期收口失败: %v", credit.ID, err)
			result.Skipped++
			continue
		}
		result.Processed++
	}

	log.Printf("[Billing] 批处理完成: 扫描=%d, 处理=%d, 跳过=%d", result.Scanned, result.Processed, result.Skipped)
	return result, nil
}

// closeCycle 收口单个信用账户的当前周期
func (s *BillingService) closeCycle(ctx context.Context, user *model.User, creditID int64, dueDate time.Time) error {
	// 账单窗口：[账单日-(周期-1)天 00:00, 账单日 23:59:59.999...]
	cycleStart := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.Local).
		AddDate(0, 0, -(s.cfg.BillingCycleDays - 1))
	cycleEnd := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.Local)

	var (
		events  []audit.Event
		summary string
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		credit, err := s.accountRepo.GetByIDForUpdate(ctx, tx, creditID)
		if err != nil {
			return err
		}

		drawRows, err := s.txRepo.ListDrawsInWindow(ctx, credit.ID, cycleStart, cycleEnd)
		if err != nil {
			return fmt.Errorf("查询周期借款失败: %w", err)
		}
		paymentRows, err := s.txRepo.ListPaymentsInWindow(ctx, credit.ID, cycleStart, cycleEnd)
		if err != nil {
			return fmt.Errorf("查询周期还款失败: %w", err)
		}

		in := CycleInput{
			Balance:      credit.Balance,
			CreditLimit:  credit.CreditLimit,
			InterestRate: credit.InterestRate,
			PastAmt:      credit.PastAmt,
			CreditScore:  user.CreditScore,
			RewardPoints: user.RewardPoints,
			Draws:        toCycleDraws(drawRows),
			Payments:     toCyclePayments(paymentRows),
		}
		out := EvaluateCycle(in, s.cfg)

		// ---------- 滞纳金入账 ----------
		if out.LateFee >= 0.01 {
			postFee := money.Round2(credit.Balance + out.LateFee)
			feeTx := &model.Transaction{
				TransactionNo:  idgen.GenerateTransactionNo(),
				ToAccountID:    &credit.ID,
				ToUserID:       &user.ID,
				Amount:         out.LateFee,
				Kind:           model.TxKindLateFee,
				Description:    model.DefaultDescription(model.TxKindLateFee),
				ToBalanceAfter: f64ptr(postFee),
			}
			if err := s.txRepo.Create(ctx, tx, feeTx); err != nil {
				return fmt.Errorf("记录滞纳金流水失败: %w", err)
			}
			events = append(events, audit.Event{
				Action: audit.ActionPenalty,
				Route:  fmt.Sprintf("Bank → %s", credit.Type),
				Amount: out.LateFee,
				Change: audit.Change(credit.Balance, postFee),
				Reason: model.DefaultDescription(model.TxKindLateFee),
			})
		}

		// ---------- 利息入账 ----------
		if out.Interest >= 0.01 {
			preInterest := money.Round2(out.Balance - out.Interest)
			interestTx := &model.Transaction{
				TransactionNo:  idgen.GenerateTransactionNo(),
				ToAccountID:    &credit.ID,
				ToUserID:       &user.ID,
				Amount:         out.Interest,
				Kind:           model.TxKindCreditInterest,
				Description:    model.DefaultDescription(model.TxKindCreditInterest),
				ToBalanceAfter: f64ptr(out.Balance),
			}
			if err := s.txRepo.Create(ctx, tx, interestTx); err != nil {
				return fmt.Errorf("记录利息流水失败: %w", err)
			}
			events = append(events, audit.Event{
				Action: audit.ActionInterest,
				Route:  fmt.Sprintf("Bank → %s", credit.Type),
				Amount: out.Interest,
				Change: audit.Change(preInterest, out.Balance),
				Reason: model.DefaultDescription(model.TxKindCreditInterest),
			})
		}

		// ---------- 收口回写 ----------
		credit.Balance = out.Balance
		credit.PastAmt = out.Balance // 结转快照记的是计息后的余额
		credit.DueDate = dueDate.AddDate(0, 0, s.cfg.BillingCycleDays).Format("2006-01-02")
		credit.PastDue = credit.PastDue || out.PastDue
		if err := s.accountRepo.SaveCycleClose(ctx, tx, credit); err != nil {
			return fmt.Errorf("周期收口回写失败: %w", err)
		}

		user.CreditScore = out.CreditScore
		user.RewardPoints = out.RewardPoints
		if err := s.userRepo.Save(ctx, tx, user); err != nil {
			return fmt.Errorf("更新信用评分失败: %w", err)
		}

		// ---------- 信用快照：落库 + 事务消息 ----------
		snapshot := &model.CreditHistory{
			UserID:      user.ID,
			Username:    user.Username,
			AccountID:   credit.ID,
			Balance:     credit.Balance,
			CreditLimit: credit.CreditLimit,
			CreditScore: user.CreditScore,
			Timestamp:   time.Now(),
		}
		if err := s.historyRepo.Create(ctx, tx, snapshot); err != nil {
			return fmt.Errorf("写入信用快照失败: %w", err)
		}

		payload, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("序列化信用快照失败: %w", err)
		}
		outboxMsg := &model.OutboxMessage{
			MessageKey: fmt.Sprintf("credit-snapshot-%d-%s", user.ID, credit.DueDate),
			Topic:      s.topic,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入事务消息失败: %w", err)
		}

		summary = formatCycleSummary(user, in, out, cycleStart, cycleEnd)
		return nil
	})
	if err != nil {
		return err
	}

	// 审计落盘在事务提交后执行，日志写失败不回滚账务
	for _, e := range events {
		if err := s.auditLog.LogUser(user.Username, e); err != nil {
			log.Printf("[Billing] 审计日志写入失败: user=%s, err=%v", user.Username, err)
		}
	}
	if err := s.auditLog.LogBillingSummary(summary, true); err != nil {
		log.Printf("[Billing] 账单汇总写入失败: user=%s, err=%v", user.Username, err)
	}

	return nil
}

func toCycleDraws(rows []*model.Transaction) []CycleDraw {
	draws := make([]CycleDraw, 0, len(rows))
	for _, row := range rows {
		draws = append(draws, CycleDraw{Amount: row.Amount, Timestamp: row.Timestamp})
	}
	return draws
}

func toCyclePayments(rows []*model.Transaction) []CyclePayment {
	payments := make([]CyclePayment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, CyclePayment{Amount: row.Amount, Timestamp: row.Timestamp})
	}
	return payments
}

// formatCycleSummary 生成账单周期汇总文本（追加进 interest_history.log）
func formatCycleSummary(user *model.User, in CycleInput, out CycleOutcome, cycleStart, cycleEnd time.Time) string {
	notes := "No change"
	if len(out.Notes) > 0 {
		notes = strings.Join(out.Notes, ", ")
	}
	oldBalance := in.PastAmt

	var b strings.Builder
	fmt.Fprintf(&b, "\nBilling Cycle: %s → %s\n", cycleStart.Format("01-02-2006"), cycleEnd.Format("01-02-2006"))
	fmt.Fprintf(&b, "User: %s\n\n", user.Username)
	b.WriteString(" --------------Account Activity-------------\n")
	fmt.Fprintf(&b, "  Previous Balance : $%.2f\n", oldBalance)
	fmt.Fprintf(&b, "  Draws            : $%.2f\n", out.TotalDraws)
	fmt.Fprintf(&b, "  Persistent Draws : $%.2f\n", out.PersistentDraws)
	fmt.Fprintf(&b, "  Payments         : $%.2f\n", out.TotalPayments)
	fmt.Fprintf(&b, "  Minimum Due      : $%.2f\n", out.MinDue)
	b.WriteString("\n ------------Charges & Adjustments-----------\n")
	fmt.Fprintf(&b, "  Interest         : $%.2f  (%.2f%% APR)\n", out.Interest, in.InterestRate*100)
	fmt.Fprintf(&b, "  Fees             : $%.2f\n", out.LateFee)
	fmt.Fprintf(&b, "  Ending Balance   : $%.2f → $%.2f\n", oldBalance, out.Balance)
	b.WriteString("\n ---------------Credit Impact----------------\n")
	fmt.Fprintf(&b, "  Credit Score     : %d → %d\n", in.CreditScore, out.CreditScore)
	fmt.Fprintf(&b, "  Reward Points    : %d → %d\n", in.RewardPoints, out.RewardPoints)
	fmt.Fprintf(&b, "\n  %s\n", notes)
	return b.String()
}
