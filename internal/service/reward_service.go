package service

import (
	"context"
	"fmt"
	"log"

	"homebank/internal/audit"
	"homebank/internal/config"
	"homebank/internal/model"
	"homebank/internal/repository"
	"homebank/pkg/idgen"
	"homebank/pkg/money"

	"gorm.io/gorm"
)

// RewardService 积分兑换
//
// 奖励目录来自配置文件，按所需积分数定位条目。cash 类奖励
// 把金额入到用户消费账户，其余类型只扣积分（线下兑付）。
type RewardService struct {
	db          *gorm.DB
	catalog     []config.RewardConfig
	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	auditLog    *audit.Logger
}

func NewRewardService(db *gorm.DB, catalog []config.RewardConfig, auditLog *audit.Logger) *RewardService {
	return &RewardService{
		db:          db,
		catalog:     catalog,
		userRepo:    repository.NewUserRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		auditLog:    auditLog,
	}
}

type RedeemResult struct {
	Reward          string  `json:"reward"`
	Points          int     `json:"points"`
	CashAmount      float64 `json:"cash_amount,omitempty"`
	PointsRemaining int     `json:"points_remaining"`
}

// findReward 按积分数在目录里定位奖励
func findReward(catalog []config.RewardConfig, points int) (*config.RewardConfig, error) {
	for i := range catalog {
		if catalog[i].Points == points {
			return &catalog[i], nil
		}
	}
	return nil, ErrInvalidReward
}

// Redeem 用积分兑换奖励
func (s *RewardService) Redeem(ctx context.Context, userID int64, points int) (*RedeemResult, error) {
	reward, err := findReward(s.catalog, points)
	if err != nil {
		return nil, err
	}

	var (
		result   RedeemResult
		username string
		event    *audit.Event
	)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		username = user.Username

		if user.RewardPoints < points {
			return ErrNotEnoughPoints
		}

		user.RewardPoints -= points
		if err := s.userRepo.Save(ctx, tx, user); err != nil {
			return fmt.Errorf("扣减积分失败: %w", err)
		}

		result = RedeemResult{
			Reward:          reward.Name,
			Points:          points,
			PointsRemaining: user.RewardPoints,
		}

		if reward.Type != "cash" {
			return nil
		}

		spending, err := s.accountRepo.GetByUserAndTypeForUpdate(ctx, tx, userID, model.AccountTypeSpending)
		if err != nil {
			return err
		}

		ogBalance := spending.Balance
		spending.Balance = money.Round2(spending.Balance + reward.Amount)
		if err := s.accountRepo.SaveBalance(ctx, tx, spending); err != nil {
			return fmt.Errorf("入账奖励金额失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo:  idgen.GenerateTransactionNo(),
			ToAccountID:    &spending.ID,
			ToUserID:       &userID,
			Amount:         reward.Amount,
			Kind:           model.TxKindRewardRedeem,
			Description:    fmt.Sprintf("Redeemed reward: %s", reward.Name),
			ToBalanceAfter: f64ptr(spending.Balance),
		}
		if err := s.txRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录兑换流水失败: %w", err)
		}

		result.CashAmount = reward.Amount
		event = &audit.Event{
			Action: audit.ActionReward,
			Route:  fmt.Sprintf("Bank → %s", spending.Type),
			Amount: reward.Amount,
			Change: audit.Change(ogBalance, spending.Balance),
			Reason: "Redeemed reward points",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		if err := s.auditLog.LogUser(username, *event); err != nil {
			log.Printf("[Reward] 审计日志写入失败: user=%s, err=%v", username, err)
		}
	}
	if err := s.auditLog.LogRewardRedemption(username, reward.Name, points); err != nil {
		log.Printf("[Reward] 兑换历史写入失败: user=%s, err=%v", username, err)
	}

	log.Printf("积分兑换成功: user=%s, reward=%s, points=%d", username, reward.Name, points)
	return &result, nil
}
