package service

import (
	"context"
	"fmt"
	"log"
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

// payCycleWindowDays 还款路径回溯同周期还款的窗口天数。
// 与账单窗口的 BillingCycleDays-1 不同，这是产品原始行为，保持原样。
const payCycleWindowDays = 30

// CreditService 信用账户的借款与还款操作。
// 信用账户只能通过这里变动余额，普通转账端点里信用账户被直接拒绝。
type CreditService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.CreditConfig
	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	auditLog    *audit.Logger
}

func NewCreditService(db *gorm.DB, redisClient *redis.Client, cfg *config.CreditConfig, auditLog *audit.Logger) *CreditService {
	return &CreditService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		userRepo:    repository.NewUserRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		auditLog:    auditLog,
	}
}

type CreditOpResult struct {
	TransactionNo   string  `json:"transaction_no"`
	Amount          float64 `json:"amount"`
	CreditBalance   float64 `json:"credit_balance"`
	SpendingBalance float64 `json:"spending_balance"`
	PastDueCleared  bool    `json:"past_due_cleared,omitempty"`
}

// validateBorrow 借款校验：只要不超过剩余额度就放行
func validateBorrow(credit *model.Account, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > credit.AvailableCredit() {
		return ErrOverCreditLimit
	}
	return nil
}

// validatePay 还款校验：消费账户要够扣，且不能还超过欠款
func validatePay(spending, credit *model.Account, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if spending.Balance < amount {
		return &InsufficientFundsError{Shortfall: money.Round2(amount - spending.Balance)}
	}
	if amount > credit.Balance {
		return ErrOverpayCredit
	}
	return nil
}

// ComputeRemainingMinDue 计算本周期剩余最低还款额
// minDue 按结转余额的固定比例计（结转为负时按 0），再扣掉本周期已还部分
func ComputeRemainingMinDue(pastAmt, alreadyPaid float64, cfg *config.CreditConfig) (minDue, remaining float64) {
	carried := max(pastAmt, 0)
	minDue = money.Round2(cfg.MinPaymentAmt * carried)
	remaining = money.Round2(max(minDue-alreadyPaid, 0))
	return minDue, remaining
}

// Borrow 从信用额度借款到本人消费账户
//
// 信用余额和消费余额同增同减一条事务，流水类型 CREDIT_WITHDRAW。
func (s *CreditService) Borrow(ctx context.Context, userID int64, amount float64) (*CreditOpResult, error) {
	amount = money.Round2(amount)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 同一用户的信用操作串行化，防止并发重复借款超出额度
	creditLock := lock.NewCreditOpLock(s.redisClient, userID)
	if err := creditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer creditLock.Unlock(ctx)

	result := &CreditOpResult{Amount: amount}
	var event audit.Event

	err = s.db.Transaction(func(tx *gorm.DB) error {
		credit, err := s.accountRepo.GetByUserAndTypeForUpdate(ctx, tx, userID, model.AccountTypeCredit)
		if err != nil {
			return err
		}
		spending, err := s.accountRepo.GetByUserAndTypeForUpdate(ctx, tx, userID, model.AccountTypeSpending)
		if err != nil {
			return err
		}

		if err := validateBorrow(credit, amount); err != nil {
			return err
		}

		ogCreditBalance := credit.Balance
		ogSpendingBalance := spending.Balance

		credit.Balance = money.Round2(credit.Balance + amount)
		spending.Balance = money.Round2(spending.Balance + amount)
		if err := s.accountRepo.SaveBalance(ctx, tx, credit); err != nil {
			return fmt.Errorf("更新信用余额失败: %w", err)
		}
		if err := s.accountRepo.SaveBalance(ctx, tx, spending); err != nil {
			return fmt.Errorf("更新消费余额失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo:    idgen.GenerateTransactionNo(),
			FromAccountID:    &credit.ID,
			ToAccountID:      &spending.ID,
			FromUserID:       &userID,
			ToUserID:         &userID,
			Amount:           amount,
			Kind:             model.TxKindCreditWithdraw,
			Description:      model.DefaultDescription(model.TxKindCreditWithdraw),
			FromBalanceAfter: f64ptr(credit.Balance),
			ToBalanceAfter:   f64ptr(spending.Balance),
		}
		if err := s.txRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录借款流水失败: %w", err)
		}

		result.TransactionNo = trans.TransactionNo
		result.CreditBalance = credit.Balance
		result.SpendingBalance = spending.Balance
		event = audit.Event{
			Action: audit.ActionTransfer,
			Route:  fmt.Sprintf("%s → %s", credit.Type, spending.Type),
			Amount: amount,
			Change: audit.DualChange(ogCreditBalance, credit.Balance, ogSpendingBalance, spending.Balance),
			Reason: model.DefaultDescription(model.TxKindCreditWithdraw),
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	if err := s.auditLog.LogUser(user.Username, event); err != nil {
		log.Printf("[CreditService] 审计日志写入失败: user=%s, err=%v", user.Username, err)
	}

	log.Printf("借款成功: user=%d, amount=%.2f, creditBalance=%.2f", userID, amount, result.CreditBalance)
	return result, nil
}

// Pay 用消费账户余额偿还信用欠款
//
// 入账前先按本周期已还金额重算剩余最低还款额，这笔还款把剩余
// 最低还款额压到 0 以下且账户处于逾期状态时，顺手清除逾期标记。
func (s *CreditService) Pay(ctx context.Context, userID int64, amount float64) (*CreditOpResult, error) {
	amount = money.Round2(amount)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	creditLock := lock.NewCreditOpLock(s.redisClient, userID)
	if err := creditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer creditLock.Unlock(ctx)

	result := &CreditOpResult{Amount: amount}
	var event audit.Event

	err = s.db.Transaction(func(tx *gorm.DB) error {
		credit, err := s.accountRepo.GetByUserAndTypeForUpdate(ctx, tx, userID, model.AccountTypeCredit)
		if err != nil {
			return err
		}
		spending, err := s.accountRepo.GetByUserAndTypeForUpdate(ctx, tx, userID, model.AccountTypeSpending)
		if err != nil {
			return err
		}

		if err := validatePay(spending, credit, amount); err != nil {
			return err
		}

		// ---------- 剩余最低还款额与逾期清除 ----------
		if dueDate, perr := time.ParseInLocation("2006-01-02", credit.DueDate, time.Local); perr == nil {
			cycleStart := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.Local).
				AddDate(0, 0, -payCycleWindowDays)
			cycleEnd := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.Local)

			alreadyPaid, err := s.txRepo.SumPaymentsInWindow(ctx, credit.ID, cycleStart, cycleEnd)
			if err != nil {
				return fmt.Errorf("统计周期内还款失败: %w", err)
			}

			_, remaining := ComputeRemainingMinDue(credit.PastAmt, alreadyPaid, s.cfg)
			appliedToMin := min(amount, remaining)
			remaining = money.Round2(remaining - appliedToMin)

			if credit.PastDue && remaining <= 0 {
				if err := s.accountRepo.SavePastDue(ctx, tx, credit.ID, false); err != nil {
					return fmt.Errorf("清除逾期标记失败: %w", err)
				}
				result.PastDueCleared = true
			}
		} else {
			// 账单日损坏只影响逾期清除，不阻塞还款本身
			log.Printf("[CreditService] 账单日解析失败: account=%d, due_date=%q", credit.ID, credit.DueDate)
		}

		ogSpendingBalance := spending.Balance
		ogCreditBalance := credit.Balance

		spending.Balance = money.Round2(spending.Balance - amount)
		credit.Balance = money.Round2(credit.Balance - amount)
		if err := s.accountRepo.SaveBalance(ctx, tx, spending); err != nil {
			return fmt.Errorf("扣款失败: %w", err)
		}
		if err := s.accountRepo.SaveBalance(ctx, tx, credit); err != nil {
			return fmt.Errorf("更新信用余额失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo:    idgen.GenerateTransactionNo(),
			FromAccountID:    &spending.ID,
			ToAccountID:      &credit.ID,
			FromUserID:       &userID,
			ToUserID:         &userID,
			Amount:           amount,
			Kind:             model.TxKindCreditPayment,
			Description:      model.DefaultDescription(model.TxKindCreditPayment),
			FromBalanceAfter: f64ptr(spending.Balance),
			ToBalanceAfter:   f64ptr(credit.Balance),
		}
		if err := s.txRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录还款流水失败: %w", err)
		}

		result.TransactionNo = trans.TransactionNo
		result.CreditBalance = credit.Balance
		result.SpendingBalance = spending.Balance
		event = audit.Event{
			Action: audit.ActionPayment,
			Route:  fmt.Sprintf("%s → %s", spending.Type, credit.Type),
			Amount: amount,
			Change: audit.DualChange(ogSpendingBalance, spending.Balance, ogCreditBalance, credit.Balance),
			Reason: model.DefaultDescription(model.TxKindCreditPayment),
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	if err := s.auditLog.LogUser(user.Username, event); err != nil {
		log.Printf("[CreditService] 审计日志写入失败: user=%s, err=%v", user.Username, err)
	}

	log.Printf("还款成功: user=%d, amount=%.2f, creditBalance=%.2f", userID, amount, result.CreditBalance)
	return result, nil
}
