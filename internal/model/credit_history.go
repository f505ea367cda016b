package model

import (
	"time"
)

// CreditHistory 信用快照表
// 每个信用账户每个账单周期收口时追加一条，供图表视图消费
type CreditHistory struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64     `gorm:"index;not null" json:"user_id"`
	Username    string    `gorm:"type:varchar(80);not null" json:"username"`
	AccountID   int64     `gorm:"index;not null" json:"account_id"`
	Balance     float64   `gorm:"not null" json:"balance"`
	CreditLimit float64   `gorm:"not null" json:"credit_limit"`
	CreditScore int       `gorm:"not null" json:"credit_score"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
}

func (CreditHistory) TableName() string {
	return "credit_history"
}
