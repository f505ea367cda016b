package service

import (
	"errors"
	"fmt"
)

// 校验类错误：请求在任何写入发生前被拒绝，不产生状态变更
var (
	ErrInvalidAmount      = errors.New("金额必须大于0")
	ErrSameAccount        = errors.New("不能向同一账户转账")
	ErrBothBank           = errors.New("转出转入不能同时为银行")
	ErrCreditEndpoint     = errors.New("信用账户不能作为转账端点")
	ErrSavingsDestination = errors.New("储蓄账户只能转给本人的消费账户")
	ErrMinSavingsTransfer = errors.New("储蓄转出最低金额为 $1.00")
	ErrOverCreditLimit    = errors.New("借款金额超过剩余信用额度")
	ErrOverpayCredit      = errors.New("还款金额超过当前欠款")
	ErrInvalidReward      = errors.New("奖励项不存在")
	ErrNotEnoughPoints    = errors.New("奖励积分不足")
)

// 授权类错误：与校验错误分开返回，调用方映射到不同的响应码
var (
	ErrBankRequiresParent = errors.New("银行端点仅限家长角色使用")
	ErrNotAccountOwner    = errors.New("无权操作他人账户")
	ErrBadCredentials     = errors.New("用户名或密码错误")
)

// InsufficientFundsError 余额不足
// 带上具体缺口（含罚金时为罚金后的缺口），调用方原样透给用户
type InsufficientFundsError struct {
	Shortfall float64 // 缺口金额
	Penalty   float64 // 其中的罚金部分，普通转账为 0
}

func (e *InsufficientFundsError) Error() string {
	if e.Penalty > 0 {
		return fmt.Sprintf("余额不足，含 $%.2f 罚金共缺 $%.2f", e.Penalty, e.Shortfall)
	}
	return fmt.Sprintf("余额不足，缺 $%.2f", e.Shortfall)
}

// IsInsufficientFunds 判断是否余额不足错误
func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}
