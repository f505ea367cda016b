package repository

import (
	"context"
	"errors"

	"homebank/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate 行锁读取账户
//
// 【关键点】并发转账同时触达一个账户时必须串行化，
// 否则两个事务各自读旧余额再回写，会互相覆盖（丢失更新）。
// 涉及两个账户时调用方按账户 ID 升序加锁，避免交叉死锁。
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByUserAndType 读取用户某一类型账户（每个用户每类恰好一个）
func (r *AccountRepository) GetByUserAndType(ctx context.Context, userID int64, accType string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, accType).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByUserAndTypeForUpdate 行锁版 GetByUserAndType
func (r *AccountRepository) GetByUserAndTypeForUpdate(ctx context.Context, tx *gorm.DB, userID int64, accType string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND type = ?", userID, accType).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&accounts).Error
	return accounts, err
}

// ListByType 列出某类型全部账户（账单批处理扫描信用账户用）
func (r *AccountRepository) ListByType(ctx context.Context, accType string) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).Where("type = ?", accType).Order("id ASC").Find(&accounts).Error
	return accounts, err
}

// SaveBalance 回写余额（在事务内、持有行锁时调用）
func (r *AccountRepository) SaveBalance(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	return tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", account.ID).
		Update("balance", account.Balance).Error
}

// SaveCycleClose 周期收口回写：余额、结转快照、账单日、逾期标记一次落库
func (r *AccountRepository) SaveCycleClose(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	return tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]interface{}{
			"balance":  account.Balance,
			"past_amt": account.PastAmt,
			"due_date": account.DueDate,
			"past_due": account.PastDue,
		}).Error
}

// SavePastDue 单独回写逾期标记（还款清除逾期时用）
func (r *AccountRepository) SavePastDue(ctx context.Context, tx *gorm.DB, accountID int64, pastDue bool) error {
	return tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Update("past_due", pastDue).Error
}
