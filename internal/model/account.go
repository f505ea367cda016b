package model

import (
	"time"
)

const (
	AccountTypeSpending = "spending"
	AccountTypeSavings  = "savings"
	AccountTypeCredit   = "credit"
)

// Account 资金账户表
// 每个用户固定持有 spending / savings / credit 三类账户，类型创建后不变。
// 信用账户的 balance 表示欠款额，0..credit_limit 都是合法状态；
// 费用可能把余额推过额度，超限是被检测的状态，不在写入时拦截。
type Account struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"index;not null" json:"user_id"`
	Type         string    `gorm:"type:varchar(20);not null" json:"type"`
	Balance      float64   `gorm:"not null;default:0" json:"balance"`
	CreditLimit  float64   `gorm:"not null;default:0" json:"credit_limit"`
	InterestRate float64   `gorm:"not null;default:0" json:"interest_rate"` // 年化利率
	DueDate      string    `gorm:"type:varchar(20)" json:"due_date"`        // ISO 日期，下一个账单日
	PastDue      bool      `gorm:"not null;default:false" json:"past_due"`
	PastAmt      float64   `gorm:"not null;default:0" json:"past_amt"` // 上一账单日结转余额快照
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// IsCredit 是否信用账户
func (a *Account) IsCredit() bool {
	return a.Type == AccountTypeCredit
}

// AvailableCredit 剩余可借额度
func (a *Account) AvailableCredit() float64 {
	return a.CreditLimit - a.Balance
}
