package repository

import (
	"context"
	"errors"
	"time"

	"homebank/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 追加一条流水。流水只追加，任何路径都不得更新或删除已有记录。
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	if trans.Timestamp.IsZero() {
		trans.Timestamp = time.Now()
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListDrawsInWindow 账单窗口内某信用账户的借款流水（按时间升序）
func (r *TransactionRepository) ListDrawsInWindow(ctx context.Context, creditAccountID int64, start, end time.Time) ([]*model.Transaction, error) {
	var draws []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("from_account_id = ? AND kind = ? AND timestamp BETWEEN ? AND ?",
			creditAccountID, model.TxKindCreditWithdraw, start, end).
		Order("timestamp ASC").
		Find(&draws).Error
	return draws, err
}

// ListPaymentsInWindow 账单窗口内某信用账户的还款流水（按时间升序）
func (r *TransactionRepository) ListPaymentsInWindow(ctx context.Context, creditAccountID int64, start, end time.Time) ([]*model.Transaction, error) {
	var payments []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("to_account_id = ? AND kind = ? AND timestamp BETWEEN ? AND ?",
			creditAccountID, model.TxKindCreditPayment, start, end).
		Order("timestamp ASC").
		Find(&payments).Error
	return payments, err
}

// SumPaymentsInWindow 窗口内还款合计（还款时计算本周期剩余最低还款额用）
func (r *TransactionRepository) SumPaymentsInWindow(ctx context.Context, creditAccountID int64, start, end time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("to_account_id = ? AND kind = ? AND timestamp BETWEEN ? AND ?",
			creditAccountID, model.TxKindCreditPayment, start, end).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ListByUserID 用户相关流水（作为转出方或转入方），分页倒序
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("timestamp DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
