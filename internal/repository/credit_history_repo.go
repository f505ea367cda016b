package repository

import (
	"context"

	"homebank/internal/model"

	"gorm.io/gorm"
)

type CreditHistoryRepository struct {
	db *gorm.DB
}

func NewCreditHistoryRepository(db *gorm.DB) *CreditHistoryRepository {
	return &CreditHistoryRepository{db: db}
}

// Create 追加一条信用快照（账单收口事务内调用）
func (r *CreditHistoryRepository) Create(ctx context.Context, tx *gorm.DB, snapshot *model.CreditHistory) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(snapshot).Error
}

// ListByUserID 用户的历史快照（图表按时间升序绘制）
func (r *CreditHistoryRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.CreditHistory, error) {
	var snapshots []*model.CreditHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp ASC").
		Find(&snapshots).Error
	return snapshots, err
}
