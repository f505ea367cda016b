package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"homebank/internal/audit"
	"homebank/internal/model"
	"homebank/internal/repository"
	"homebank/pkg/idgen"
	"homebank/pkg/money"

	"gorm.io/gorm"
)

// SavingsService 月度储蓄利息批处理
//
// 跟在账单批处理之后执行：账单批次处理到的账单日是今天时，
// 给每个持有信用账户的用户的储蓄账户按其个人年化利率计一个月利息。
type SavingsService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	auditLog    *audit.Logger
}

func NewSavingsService(db *gorm.DB, auditLog *audit.Logger) *SavingsService {
	return &SavingsService{
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		auditLog:    auditLog,
	}
}

// SavingsRunResult 一轮储蓄计息的汇总
type SavingsRunResult struct {
	Credited int     `json:"credited"`
	TotalOut float64 `json:"total_out"`
}

// ApplyMonthlyInterest 对储蓄账户计一个月利息
//
// dueDate 是账单批次最后处理到的账单日，不是今天则整轮跳过。
// 单月利息 = Round2(余额 × 年化/12)，不足一分钱不入账。
func (s *SavingsService) ApplyMonthlyInterest(ctx context.Context, dueDate time.Time) (*SavingsRunResult, error) {
	result := &SavingsRunResult{}

	if dueDate.Format("2006-01-02") != time.Now().Format("2006-01-02") {
		return result, nil
	}

	creditAccounts, err := s.accountRepo.ListByType(ctx, model.AccountTypeCredit)
	if err != nil {
		return nil, fmt.Errorf("扫描信用账户失败: %w", err)
	}

	for _, credit := range creditAccounts {
		user, err := s.userRepo.GetByID(ctx, credit.UserID)
		if err != nil {
			log.Printf("[Savings] 跳过用户 %d: %v", credit.UserID, err)
			continue
		}

		interest, err := s.creditUserSavings(ctx, user)
		if err != nil {
			log.Printf("[Savings] 用户 %s 计息失败: %v", user.Username, err)
			continue
		}
		if interest > 0 {
			result.Credited++
			result.TotalOut = money.Round2(result.TotalOut + interest)
		}
	}

	log.Printf("[Savings] 计息完成: 入账用户=%d, 利息合计=%.2f", result.Credited, result.TotalOut)
	return result, nil
}

// creditUserSavings 给单个用户的储蓄账户入息，返回入账金额（0 表示未入账）
func (s *SavingsService) creditUserSavings(ctx context.Context, user *model.User) (float64, error) {
	var (
		interest float64
		event    audit.Event
		credited bool
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		savings, err := s.accountRepo.GetByUserAndTypeForUpdate(ctx, tx, user.ID, model.AccountTypeSavings)
		if err != nil {
			return err
		}
		if savings.Balance <= 0 {
			return nil
		}

		interest = money.Round2(savings.Balance * (user.SavingsAPR / 12.0))
		if interest < 0.01 {
			interest = 0
			return nil
		}

		preInterest := savings.Balance
		savings.Balance = money.Round2(savings.Balance + interest)
		if err := s.accountRepo.SaveBalance(ctx, tx, savings); err != nil {
			return fmt.Errorf("更新储蓄余额失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo:  idgen.GenerateTransactionNo(),
			ToAccountID:    &savings.ID,
			ToUserID:       &user.ID,
			Amount:         interest,
			Kind:           model.TxKindSavingsInterest,
			Description:    model.DefaultDescription(model.TxKindSavingsInterest),
			ToBalanceAfter: f64ptr(savings.Balance),
		}
		if err := s.txRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录利息流水失败: %w", err)
		}

		credited = true
		event = audit.Event{
			Action: audit.ActionInterest,
			Route:  fmt.Sprintf("Bank → %s", savings.Type),
			Amount: interest,
			Change: audit.Change(preInterest, savings.Balance),
			Reason: model.DefaultDescription(model.TxKindSavingsInterest),
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !credited {
		return 0, nil
	}

	if err := s.auditLog.LogUser(user.Username, event); err != nil {
		log.Printf("[Savings] 审计日志写入失败: user=%s, err=%v", user.Username, err)
	}
	return interest, nil
}
