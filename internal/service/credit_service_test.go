package service

import (
	"errors"
	"testing"

	"homebank/internal/config"
	"homebank/internal/model"
)

func TestValidateBorrow(t *testing.T) {
	credit := &model.Account{Type: model.AccountTypeCredit, Balance: 300, CreditLimit: 500}

	if err := validateBorrow(credit, 200); err != nil {
		t.Errorf("额度内借款应放行: %v", err)
	}
	if err := validateBorrow(credit, 200.01); !errors.Is(err, ErrOverCreditLimit) {
		t.Errorf("超额借款: got %v, want ErrOverCreditLimit", err)
	}
	if err := validateBorrow(credit, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("零金额: got %v, want ErrInvalidAmount", err)
	}
	if err := validateBorrow(credit, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("负金额: got %v, want ErrInvalidAmount", err)
	}
}

func TestValidatePay(t *testing.T) {
	spending := &model.Account{Type: model.AccountTypeSpending, Balance: 100}
	credit := &model.Account{Type: model.AccountTypeCredit, Balance: 80, CreditLimit: 500}

	if err := validatePay(spending, credit, 80); err != nil {
		t.Errorf("正常还款应放行: %v", err)
	}
	if err := validatePay(spending, credit, 80.01); !errors.Is(err, ErrOverpayCredit) {
		t.Errorf("超额还款: got %v, want ErrOverpayCredit", err)
	}
	if err := validatePay(spending, credit, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("零金额: got %v, want ErrInvalidAmount", err)
	}

	// 消费余额不够扣
	spending.Balance = 50
	err := validatePay(spending, credit, 80)
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("应返回余额不足: %v", err)
	}
	if insufficient.Shortfall != 30 {
		t.Errorf("缺口错误: got %v, want 30", insufficient.Shortfall)
	}
}

func TestComputeRemainingMinDue(t *testing.T) {
	cfg := config.DefaultCreditConfig()

	tests := []struct {
		name          string
		pastAmt       float64
		alreadyPaid   float64
		wantMinDue    float64
		wantRemaining float64
	}{
		{"周期内未还款", 200, 0, 16, 16},
		{"已还部分", 200, 10, 16, 6},
		{"已还够最低额", 200, 16, 16, 0},
		{"超额还款不出负数", 200, 100, 16, 0},
		{"负结转按零计", -50, 0, 0, 0},
		{"零结转", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minDue, remaining := ComputeRemainingMinDue(tt.pastAmt, tt.alreadyPaid, cfg)
			if minDue != tt.wantMinDue {
				t.Errorf("minDue: got %v, want %v", minDue, tt.wantMinDue)
			}
			if remaining != tt.wantRemaining {
				t.Errorf("remaining: got %v, want %v", remaining, tt.wantRemaining)
			}
		})
	}
}

func TestFindReward(t *testing.T) {
	catalog := []config.RewardConfig{
		{Name: "$5 Cash", Points: 500, Type: "cash", Amount: 5},
		{Name: "Movie Night", Points: 300, Type: "perk"},
	}

	reward, err := findReward(catalog, 500)
	if err != nil || reward.Name != "$5 Cash" {
		t.Errorf("got %v, %v", reward, err)
	}
	if _, err := findReward(catalog, 999); !errors.Is(err, ErrInvalidReward) {
		t.Errorf("未知积分档: got %v, want ErrInvalidReward", err)
	}
}
