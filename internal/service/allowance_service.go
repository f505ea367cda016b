package service

import (
	"context"
	"fmt"
	"log"

	"homebank/internal/audit"
	"homebank/internal/model"
	"homebank/internal/repository"
	"homebank/pkg/idgen"
	"homebank/pkg/money"

	"gorm.io/gorm"
)

const (
	// AdminUsername 系统零花钱发放账户的用户名
	AdminUsername = "Admin"
	// adminSeedBalance Admin 消费账户的初始资金
	adminSeedBalance = 100000.0
)

// AllowanceService 每周零花钱发放
//
// 从系统 Admin 账户向每个 child 用户的消费账户转入其 allowance_rate。
// Admin 用户和账户不存在时现场补建。
type AllowanceService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	auditLog    *audit.Logger
}

func NewAllowanceService(db *gorm.DB, auditLog *audit.Logger) *AllowanceService {
	return &AllowanceService{
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		auditLog:    auditLog,
	}
}

// AllowanceRunResult 一轮发放的汇总
type AllowanceRunResult struct {
	Paid     int     `json:"paid"`
	TotalOut float64 `json:"total_out"`
}

// GiveAllowance 给全部 child 用户发一轮零花钱
//
// 单个用户失败只跳过，不中断整轮。发放额为 0 的用户直接略过。
func (s *AllowanceService) GiveAllowance(ctx context.Context) (*AllowanceRunResult, error) {
	admin, adminAcc, err := s.ensureAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化 Admin 账户失败: %w", err)
	}

	children, err := s.userRepo.ListByRole(ctx, model.RoleChild)
	if err != nil {
		return nil, fmt.Errorf("查询 child 用户失败: %w", err)
	}

	result := &AllowanceRunResult{}
	for _, child := range children {
		if child.AllowanceRate <= 0 {
			continue
		}
		if err := s.payOne(ctx, admin, adminAcc.ID, child); err != nil {
			log.Printf("[Allowance] 用户 %s 发放失败: %v", child.Username, err)
			continue
		}
		result.Paid++
		result.TotalOut = money.Round2(result.TotalOut + child.AllowanceRate)
	}

	log.Printf("[Allowance] 发放完成: 用户=%d, 合计=%.2f", result.Paid, result.TotalOut)
	return result, nil
}

// ensureAdmin 确保系统用户和它的消费账户存在
func (s *AllowanceService) ensureAdmin(ctx context.Context) (*model.User, *model.Account, error) {
	admin, err := s.userRepo.GetByUsername(ctx, AdminUsername)
	if err == repository.ErrUserNotFound {
		admin = &model.User{
			Username:     AdminUsername,
			PasswordHash: "",
			Role:         model.RoleParent,
		}
		if err := s.userRepo.Create(ctx, nil, admin); err != nil {
			return nil, nil, err
		}
		log.Printf("[Allowance] 已创建系统用户 %s", AdminUsername)
	} else if err != nil {
		return nil, nil, err
	}

	acc, err := s.accountRepo.GetByUserAndType(ctx, admin.ID, model.AccountTypeSpending)
	if err == repository.ErrAccountNotFound {
		acc = &model.Account{
			UserID:  admin.ID,
			Type:    model.AccountTypeSpending,
			Balance: adminSeedBalance,
		}
		if err := s.accountRepo.Create(ctx, nil, acc); err != nil {
			return nil, nil, err
		}
		log.Printf("[Allowance] 已创建系统消费账户, balance=%.2f", adminSeedBalance)
	} else if err != nil {
		return nil, nil, err
	}

	return admin, acc, nil
}

// payOne 给单个 child 转一笔零花钱
func (s *AllowanceService) payOne(ctx context.Context, admin *model.User, adminAccID int64, child *model.User) error {
	amount := money.Round2(child.AllowanceRate)
	var adminEvent, childEvent audit.Event

	err := s.db.Transaction(func(tx *gorm.DB) error {
		target, err := s.accountRepo.GetByUserAndType(ctx, child.ID, model.AccountTypeSpending)
		if err != nil {
			return err
		}

		// Admin 账户是全局热点行，按 ID 升序加锁避免和转账交叉死锁
		lockOrder := []int64{adminAccID, target.ID}
		if lockOrder[1] < lockOrder[0] {
			lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
		}
		locked := make(map[int64]*model.Account, 2)
		for _, id := range lockOrder {
			acc, err := s.accountRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = acc
		}
		adminAcc, spending := locked[adminAccID], locked[target.ID]

		ogAdminBalance := adminAcc.Balance
		ogChildBalance := spending.Balance
		adminAcc.Balance = money.Round2(adminAcc.Balance - amount)
		spending.Balance = money.Round2(spending.Balance + amount)
		if err := s.accountRepo.SaveBalance(ctx, tx, adminAcc); err != nil {
			return fmt.Errorf("扣减 Admin 余额失败: %w", err)
		}
		if err := s.accountRepo.SaveBalance(ctx, tx, spending); err != nil {
			return fmt.Errorf("增加消费余额失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo:    idgen.GenerateTransferNo(),
			FromAccountID:    &adminAcc.ID,
			ToAccountID:      &spending.ID,
			FromUserID:       &admin.ID,
			ToUserID:         &child.ID,
			Amount:           amount,
			Kind:             model.TxKindAllowance,
			Description:      model.DefaultDescription(model.TxKindAllowance),
			FromBalanceAfter: f64ptr(adminAcc.Balance),
			ToBalanceAfter:   f64ptr(spending.Balance),
		}
		if err := s.txRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录零花钱流水失败: %w", err)
		}

		adminEvent = audit.Event{
			Action: audit.ActionTransfer,
			Route:  fmt.Sprintf("%s → %s", AdminUsername, child.Username),
			Amount: amount,
			Change: audit.Change(ogAdminBalance, adminAcc.Balance),
			Reason: model.DefaultDescription(model.TxKindAllowance),
		}
		childEvent = audit.Event{
			Action: audit.ActionReceived,
			Route:  fmt.Sprintf("%s → %s", AdminUsername, spending.Type),
			Amount: amount,
			Change: audit.Change(ogChildBalance, spending.Balance),
			Reason: model.DefaultDescription(model.TxKindAllowance),
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.auditLog.LogUser(admin.Username, adminEvent); err != nil {
		log.Printf("[Allowance] 审计日志写入失败: user=%s, err=%v", admin.Username, err)
	}
	if err := s.auditLog.LogUser(child.Username, childEvent); err != nil {
		log.Printf("[Allowance] 审计日志写入失败: user=%s, err=%v", child.Username, err)
	}
	return nil
}
