package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================
//
// 原产品用 description 文本做语义过滤，这里拆成独立的 kind 枚举，
// description 只保留给用户看的文案，引擎一律按 kind 过滤。

const (
	TxKindTransfer        = "TRANSFER"         // 普通转账
	TxKindBankDeposit     = "BANK_DEPOSIT"     // 银行 → 账户（仅家长）
	TxKindBankWithdrawal  = "BANK_WITHDRAWAL"  // 账户 → 银行（仅家长）
	TxKindSavingsPenalty  = "SAVINGS_PENALTY"  // 储蓄取款罚金
	TxKindCreditWithdraw  = "CREDIT_WITHDRAW"  // 信用借款
	TxKindCreditPayment   = "CREDIT_PAYMENT"   // 信用还款
	TxKindLateFee         = "LATE_FEE"         // 滞纳金
	TxKindCreditInterest  = "CREDIT_INTEREST"  // 信用利息
	TxKindSavingsInterest = "SAVINGS_INTEREST" // 储蓄利息
	TxKindAllowance       = "ALLOWANCE"        // 每周零用钱
	TxKindRewardRedeem    = "REWARD_REDEEM"    // 积分兑换
)

// DefaultDescription 各交易类型的默认展示文案
func DefaultDescription(kind string) string {
	switch kind {
	case TxKindTransfer:
		return "Transfer"
	case TxKindBankDeposit:
		return "Bank deposit"
	case TxKindBankWithdrawal:
		return "Bank withdrawal"
	case TxKindSavingsPenalty:
		return "Savings withdrawal penalty"
	case TxKindCreditWithdraw:
		return "Credit withdraw"
	case TxKindCreditPayment:
		return "Credit payment"
	case TxKindLateFee:
		return "Late payment fee"
	case TxKindCreditInterest:
		return "Credit interest charge"
	case TxKindSavingsInterest:
		return "Savings interest payment"
	case TxKindAllowance:
		return "Weekly allowance"
	case TxKindRewardRedeem:
		return "Redeemed reward"
	}
	return kind
}

// ============================================================================
// 账本实体
// ============================================================================

// Transaction 交易流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 账单引擎和对账都以它为准
// 2. from/to 账户为空表示"银行"端（奖励、费用、利息、家长存取款）
// 3. 记录交易后双方余额快照 —— 便于校验余额一致性
type Transaction struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	FromAccountID    *int64    `gorm:"index" json:"from_account_id"`
	ToAccountID      *int64    `gorm:"index" json:"to_account_id"`
	FromUserID       *int64    `json:"from_user_id"`
	ToUserID         *int64    `json:"to_user_id"`
	Amount           float64   `gorm:"not null" json:"amount"` // 恒为正数
	Kind             string    `gorm:"type:varchar(32);index;not null" json:"kind"`
	Description      string    `gorm:"type:varchar(200)" json:"description"`
	FromBalanceAfter *float64  `json:"from_balance_after"`
	ToBalanceAfter   *float64  `json:"to_balance_after"`
	Timestamp        time.Time `gorm:"index;not null" json:"timestamp"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
