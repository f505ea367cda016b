package money

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.234, 1.23},
		{1.236, 1.24},
		{10.0, 10.0},
		{-1.234, -1.23},
		{0.1 + 0.2, 0.3}, // 浮点误差被取整吸收
		{99.996, 100.0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRound6(t *testing.T) {
	// 月利率 = 年化 / 12 后保留六位
	if got := Round6(0.022 / 12); got != 0.001833 {
		t.Errorf("Round6(0.022/12) = %v, want 0.001833", got)
	}
	if got := Round6(0.24 / 12); got != 0.02 {
		t.Errorf("Round6(0.24/12) = %v, want 0.02", got)
	}
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{2.4, 2},
		{2.6, 3},
		{-2.6, -3},
		{0, 0},
	}
	for _, tt := range tests {
		if got := RoundScore(tt.in); got != tt.want {
			t.Errorf("RoundScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
