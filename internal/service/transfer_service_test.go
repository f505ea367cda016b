package service

import (
	"errors"
	"testing"

	"homebank/internal/model"
)

func parentUser(id int64) *model.User {
	return &model.User{ID: id, Username: "parent", Role: model.RoleParent}
}

func childUser(id int64) *model.User {
	return &model.User{ID: id, Username: "child", Role: model.RoleChild}
}

func acc(id, userID int64, accType string, balance float64) *model.Account {
	return &model.Account{ID: id, UserID: userID, Type: accType, Balance: balance}
}

// 校验顺序固定：第一个命中的检查生效
func TestValidateTransfer(t *testing.T) {
	child := childUser(1)
	parent := parentUser(2)

	childSpending := acc(10, 1, model.AccountTypeSpending, 100)
	childSavings := acc(11, 1, model.AccountTypeSavings, 50)
	childCredit := acc(12, 1, model.AccountTypeCredit, 0)
	parentSpending := acc(20, 2, model.AccountTypeSpending, 500)

	tests := []struct {
		name    string
		actor   *model.User
		from    *model.Account
		to      *model.Account
		amount  float64
		wantErr error
	}{
		{"双银行端点", parent, nil, nil, 10, ErrBothBank},
		{"双银行端点优先于角色检查", child, nil, nil, 10, ErrBothBank},
		{"child 使用银行端点", child, nil, childSpending, 10, ErrBankRequiresParent},
		{"parent 银行存款", parent, nil, parentSpending, 10, nil},
		{"同一账户", parent, parentSpending, parentSpending, 10, ErrSameAccount},
		{"child 动用他人账户", child, parentSpending, childSpending, 10, ErrNotAccountOwner},
		{"parent 动用他人账户", parent, childSpending, parentSpending, 10, nil},
		{"金额为零", parent, parentSpending, childSpending, 0, ErrInvalidAmount},
		{"金额为负", parent, parentSpending, childSpending, -5, ErrInvalidAmount},
		{"信用账户作转出端", child, childCredit, childSpending, 10, ErrCreditEndpoint},
		{"信用账户作转入端", child, childSpending, childCredit, 10, ErrCreditEndpoint},
		{"储蓄转他人", child, childSavings, parentSpending, 10, ErrSavingsDestination},
		{"储蓄转银行", parent, childSavings, nil, 10, ErrSavingsDestination},
		{"储蓄低于最低额", child, childSavings, childSpending, 0.99, ErrMinSavingsTransfer},
		{"普通转账", child, childSpending, parentSpending, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTransfer(tt.actor, tt.from, tt.to, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// 储蓄转出按含罚金总额预检余额
func TestValidateTransferSavingsPenalty(t *testing.T) {
	child := childUser(1)
	spending := acc(10, 1, model.AccountTypeSpending, 0)

	// $1.00 + 10% 罚金 = $1.10，余额刚好够
	savings := acc(11, 1, model.AccountTypeSavings, 1.10)
	if err := validateTransfer(child, savings, spending, 1.00); err != nil {
		t.Errorf("余额刚好覆盖含罚金总额应放行: %v", err)
	}

	// 差一分钱
	savings.Balance = 1.09
	err := validateTransfer(child, savings, spending, 1.00)
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("应返回余额不足: %v", err)
	}
	if insufficient.Shortfall != 0.01 {
		t.Errorf("缺口错误: got %v, want 0.01", insufficient.Shortfall)
	}
	if insufficient.Penalty != 0.10 {
		t.Errorf("罚金错误: got %v, want 0.10", insufficient.Penalty)
	}
}

func TestValidateTransferInsufficientFunds(t *testing.T) {
	child := childUser(1)
	from := acc(10, 1, model.AccountTypeSpending, 5)
	to := acc(20, 2, model.AccountTypeSpending, 0)

	err := validateTransfer(child, from, to, 10)
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("应返回余额不足: %v", err)
	}
	if insufficient.Shortfall != 5 {
		t.Errorf("缺口错误: got %v, want 5", insufficient.Shortfall)
	}
	if insufficient.Penalty != 0 {
		t.Errorf("普通转账不应有罚金: got %v", insufficient.Penalty)
	}
}

// 端点形态决定流水类型
func TestTransferKind(t *testing.T) {
	spending := acc(10, 1, model.AccountTypeSpending, 0)
	savings := acc(11, 1, model.AccountTypeSavings, 0)

	if got := transferKind(nil, spending); got != model.TxKindBankDeposit {
		t.Errorf("银行转入: got %q", got)
	}
	if got := transferKind(spending, nil); got != model.TxKindBankWithdrawal {
		t.Errorf("银行转出: got %q", got)
	}
	if got := transferKind(savings, spending); got != model.TxKindTransfer {
		t.Errorf("普通转账: got %q", got)
	}
}
