package model

import (
	"time"
)

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

const (
	DefaultCreditScore = 575
	DefaultSavingsAPR  = 0.05
)

// User 用户表
// 持有信用分、奖励积分等可变财务属性，账户通过 user_id 归属到用户
type User struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username         string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	PasswordHash     string    `gorm:"type:varchar(200)" json:"-"` // 认证由外部协作方处理，这里只存储
	Role             string    `gorm:"type:varchar(20);not null;default:child" json:"role"`
	CreditScore      int       `gorm:"not null;default:575" json:"credit_score"` // 限定在 [300, 850]
	AllowanceRate    float64   `gorm:"not null;default:0" json:"allowance_rate"` // 每周零用钱金额
	SavingsAPR       float64   `gorm:"not null;default:0.05" json:"savings_apr"`
	RewardPoints     int       `gorm:"not null;default:0" json:"reward_points"`
	TwoFactorEnabled bool      `gorm:"not null;default:false" json:"two_factor_enabled"`
	TOTPSecret       string    `gorm:"type:varchar(32)" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
