package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"homebank/internal/config"
	"homebank/internal/model"
	"homebank/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 新建信用账户的初始参数：零额度零余额，利率固定，
// 首个账单日在一个周期之后。额度由家长后续调整。
const newCreditAPR = 0.022

// UserService 用户开户
//
// 一个用户固定三个账户：消费、储蓄、信用，开户时一并创建。
type UserService struct {
	db          *gorm.DB
	cfg         *config.CreditConfig
	userRepo    *repository.UserRepository
	accountRepo *repository.AccountRepository
}

func NewUserService(db *gorm.DB, cfg *config.CreditConfig) *UserService {
	return &UserService{
		db:          db,
		cfg:         cfg,
		userRepo:    repository.NewUserRepository(db),
		accountRepo: repository.NewAccountRepository(db),
	}
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=80"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=parent child"`
}

type CreateUserResult struct {
	UserID   int64            `json:"user_id"`
	Username string           `json:"username"`
	Role     string           `json:"role"`
	Accounts []*model.Account `json:"accounts"`
}

// CreateUser 创建用户及其三个账户
func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResult, error) {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, repository.ErrUsernameExists
	} else if err != repository.ErrUserNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	result := &CreateUserResult{Username: req.Username, Role: req.Role}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		user := &model.User{
			Username:     req.Username,
			PasswordHash: string(hash),
			Role:         req.Role,
		}
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}
		result.UserID = user.ID

		firstDue := time.Now().AddDate(0, 0, s.cfg.BillingCycleDays).Format("2006-01-02")
		for _, accType := range []string{model.AccountTypeSpending, model.AccountTypeSavings, model.AccountTypeCredit} {
			acc := &model.Account{UserID: user.ID, Type: accType}
			if accType == model.AccountTypeCredit {
				acc.CreditLimit = 0.0
				acc.InterestRate = newCreditAPR
				acc.DueDate = firstDue
			}
			if err := s.accountRepo.Create(ctx, tx, acc); err != nil {
				return fmt.Errorf("创建 %s 账户失败: %w", accType, err)
			}
			result.Accounts = append(result.Accounts, acc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("开户成功: user=%s, role=%s, id=%d", req.Username, req.Role, result.UserID)
	return result, nil
}

// VerifyPassword 校验用户名密码，成功返回用户
func (s *UserService) VerifyPassword(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}
