package service

import (
	"math"
	"strings"
	"testing"
	"time"

	"homebank/internal/config"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func hasNote(notes []string, substr string) bool {
	for _, n := range notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

// 一笔还款先冲最早的借款，剩余部分顺延到下一笔
func TestMatchDrawsFIFO(t *testing.T) {
	draws := []CycleDraw{
		{Amount: 100, Timestamp: day(0)},
		{Amount: 50, Timestamp: day(2)},
	}
	payments := []CyclePayment{
		{Amount: 120, Timestamp: day(3)},
	}

	matched := MatchDrawsFIFO(draws, payments)
	if len(matched) != 2 {
		t.Fatalf("撮合结果数量错误: got %d", len(matched))
	}

	if !almostEqual(matched[0].Remaining, 0) {
		t.Errorf("第一笔借款应被还清, remaining=%v", matched[0].Remaining)
	}
	if matched[0].RepaidAt == nil || !matched[0].RepaidAt.Equal(day(3)) {
		t.Errorf("第一笔借款的还清时间应是还款时间: %v", matched[0].RepaidAt)
	}
	if !almostEqual(matched[1].Remaining, 30) {
		t.Errorf("第二笔借款剩余错误: got %v, want 30", matched[1].Remaining)
	}
	if matched[1].RepaidAt != nil {
		t.Errorf("第二笔借款未还清不应有还清时间")
	}
}

func TestPersistentDrawAmount(t *testing.T) {
	draws := []CycleDraw{
		{Amount: 100, Timestamp: day(0)},
		{Amount: 50, Timestamp: day(2)},
	}
	payments := []CyclePayment{
		{Amount: 120, Timestamp: day(3)},
	}
	matched := MatchDrawsFIFO(draws, payments)

	// 第一笔 3 天内还清，低于 5 天门槛不计入；第二笔按剩余 30 计
	if got := persistentDrawAmount(matched, 0, 5); !almostEqual(got, 30) {
		t.Errorf("门槛 5 天: got %v, want 30", got)
	}

	// 门槛降到 3 天时，已还清的第一笔按原始金额计入
	if got := persistentDrawAmount(matched, 0, 3); !almostEqual(got, 130) {
		t.Errorf("门槛 3 天: got %v, want 130", got)
	}

	// 上周期结转作为基数累加，负数结转按 0 处理
	if got := persistentDrawAmount(matched, 200, 5); !almostEqual(got, 230) {
		t.Errorf("含结转: got %v, want 230", got)
	}
	if got := persistentDrawAmount(matched, -10, 5); !almostEqual(got, 30) {
		t.Errorf("负结转: got %v, want 30", got)
	}
}

// 无新借款、结转全额还清：满额计分 + 满额积分 + 低使用率奖励
func TestEvaluateCycleFullPayoff(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:     0,
		CreditLimit: 1000,
		PastAmt:     200,
		CreditScore: 575,
		Payments:    []CyclePayment{{Amount: 200, Timestamp: day(5)}},
	}, cfg)

	if out.CreditScore != 607 {
		t.Errorf("信用分错误: got %d, want 607", out.CreditScore)
	}
	if out.RewardPoints != 88 {
		t.Errorf("积分错误: got %d, want 88", out.RewardPoints)
	}
	if !almostEqual(out.Balance, 0) || out.PastDue || out.LateFee != 0 || out.Interest != 0 {
		t.Errorf("全额还清不应产生费用: %+v", out)
	}
	if !hasNote(out.Notes, "(Full payment; Score: +20; Points: +80)") {
		t.Errorf("缺少全额还款备注: %v", out.Notes)
	}
}

// 结转余额还款不足最低额：罚分、滞纳金、逾期置位，滞纳金参与计息
func TestEvaluateCycleInsufficientPayment(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:      200,
		CreditLimit:  1000,
		InterestRate: 0.022,
		PastAmt:      200,
		CreditScore:  575,
		Payments:     []CyclePayment{{Amount: 10, Timestamp: day(5)}},
	}, cfg)

	if !almostEqual(out.MinDue, 16) {
		t.Errorf("最低还款额错误: got %v, want 16", out.MinDue)
	}
	if !almostEqual(out.RemainingMinDue, 6) {
		t.Errorf("剩余最低还款额错误: got %v, want 6", out.RemainingMinDue)
	}
	if !out.PastDue {
		t.Error("应置逾期标记")
	}
	if !almostEqual(out.LateFee, 5) {
		t.Errorf("滞纳金错误: got %v, want 5", out.LateFee)
	}
	// 205 * round6(0.022/12) = 205 * 0.001833 = 0.38
	if !almostEqual(out.Interest, 0.38) {
		t.Errorf("利息错误: got %v, want 0.38", out.Interest)
	}
	if !almostEqual(out.Balance, 205.38) {
		t.Errorf("期末余额错误: got %v, want 205.38", out.Balance)
	}
	// -20 罚分 +12 低使用率
	if out.CreditScore != 567 {
		t.Errorf("信用分错误: got %d, want 567", out.CreditScore)
	}
	// 剩余最低还款额未清，不给低使用率积分
	if out.RewardPoints != 0 {
		t.Errorf("积分错误: got %d, want 0", out.RewardPoints)
	}
	if !hasNote(out.Notes, "Carried balance with insufficient payment") {
		t.Errorf("缺少还款不足备注: %v", out.Notes)
	}
}

// 本周期有借款且连同结转全部还清
func TestEvaluateCycleDrawsFullyRepaid(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:     0,
		CreditLimit: 500,
		PastAmt:     50,
		CreditScore: 575,
		Draws:       []CycleDraw{{Amount: 100, Timestamp: day(1)}},
		Payments:    []CyclePayment{{Amount: 150, Timestamp: day(5)}},
	}, cfg)

	if out.CreditScore != 607 {
		t.Errorf("信用分错误: got %d, want 607", out.CreditScore)
	}
	if out.RewardPoints != 88 {
		t.Errorf("积分错误: got %d, want 88", out.RewardPoints)
	}
	if out.PastDue || out.LateFee != 0 {
		t.Errorf("全额还清不应计费: %+v", out)
	}
}

// 借款未还且还款不足：罚分按持久借款占比缩放（占比封顶 1 即全额罚分）
func TestEvaluateCycleDrawsUnderpaid(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:     150,
		CreditLimit: 1000,
		PastAmt:     100,
		CreditScore: 575,
		Draws:       []CycleDraw{{Amount: 50, Timestamp: day(0)}},
	}, cfg)

	if !almostEqual(out.PersistentDraws, 150) {
		t.Errorf("持久借款错误: got %v, want 150", out.PersistentDraws)
	}
	if !out.PastDue {
		t.Error("应置逾期标记")
	}
	if !almostEqual(out.LateFee, 5) || !almostEqual(out.Balance, 155) {
		t.Errorf("计费错误: fee=%v balance=%v", out.LateFee, out.Balance)
	}
	// -20 罚分 +12 低使用率（低使用率奖励不看逾期状态）
	if out.CreditScore != 567 {
		t.Errorf("信用分错误: got %d, want 567", out.CreditScore)
	}
	if !hasNote(out.Notes, "(Late payment; Score: -20; Fee: $5.00)") {
		t.Errorf("缺少逾期备注: %v", out.Notes)
	}
}

// 部分还款：还款力度超过中值基准时罚分转为奖励，积分按力度折算
func TestEvaluateCyclePartialPayment(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:     90,
		CreditLimit: 1000,
		PastAmt:     100,
		CreditScore: 575,
		Draws:       []CycleDraw{{Amount: 50, Timestamp: day(0)}},
		Payments:    []CyclePayment{{Amount: 60, Timestamp: day(1)}},
	}, cfg)

	// fraction = 60 / ((100+8)/2) ≈ 1.11 → 罚分 round(20*(1-1.11)) = -2（奖励）
	// 积分 min(80, round(80*1.11)) = 80；低使用率 +12 且最低额已清 +8
	if out.CreditScore != 589 {
		t.Errorf("信用分错误: got %d, want 589", out.CreditScore)
	}
	if out.RewardPoints != 88 {
		t.Errorf("积分错误: got %d, want 88", out.RewardPoints)
	}
	if out.PastDue || out.LateFee != 0 {
		t.Errorf("部分还款达标不应计费: %+v", out)
	}
	if !hasNote(out.Notes, "(Partial payment; Score: +2; Points: +80)") {
		t.Errorf("缺少部分还款备注: %v", out.Notes)
	}
}

// 超限、还款不足和高使用率在同一周期内叠加
func TestEvaluateCycleOverLimitHighUtilization(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:      1200,
		CreditLimit:  1000,
		InterestRate: 0.24,
		PastAmt:      100,
		CreditScore:  575,
	}, cfg)

	// -10 超限 -20 还款不足 -10 高使用率
	if out.CreditScore != 535 {
		t.Errorf("信用分错误: got %d, want 535", out.CreditScore)
	}
	if !out.PastDue {
		t.Error("应置逾期标记")
	}
	// (1200+5) * 0.02 = 24.10
	if !almostEqual(out.Interest, 24.10) {
		t.Errorf("利息错误: got %v, want 24.10", out.Interest)
	}
	if !almostEqual(out.Balance, 1229.10) {
		t.Errorf("期末余额错误: got %v, want 1229.10", out.Balance)
	}
	if !hasNote(out.Notes, "Over limit") || !hasNote(out.Notes, "High utilization") {
		t.Errorf("备注缺失: %v", out.Notes)
	}
}

// 每次调整后立即压回分数上限
func TestEvaluateCycleScoreClamp(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:     0,
		CreditLimit: 1000,
		PastAmt:     200,
		CreditScore: 845,
		Payments:    []CyclePayment{{Amount: 200, Timestamp: day(5)}},
	}, cfg)

	if out.CreditScore != cfg.MaxScore {
		t.Errorf("信用分应压到上限: got %d, want %d", out.CreditScore, cfg.MaxScore)
	}
}

// 整周期无任何活动：分数不动，不计费不计息
func TestEvaluateCycleNoActivity(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:      0,
		CreditLimit:  1000,
		InterestRate: 0.022,
		CreditScore:  575,
	}, cfg)

	if out.CreditScore != 575 {
		t.Errorf("信用分不应变化: got %d", out.CreditScore)
	}
	if out.PastDue || out.LateFee != 0 || out.Interest != 0 || !almostEqual(out.Balance, 0) {
		t.Errorf("无活动不应产生变更: %+v", out)
	}
	if !hasNote(out.Notes, "No utilization") {
		t.Errorf("缺少零使用备注: %v", out.Notes)
	}
}

// 利息不足一分钱不入账
func TestEvaluateCycleInterestFloor(t *testing.T) {
	cfg := config.DefaultCreditConfig()
	out := EvaluateCycle(CycleInput{
		Balance:      2,
		CreditLimit:  1000,
		InterestRate: 0.022,
		PastAmt:      2,
		CreditScore:  575,
		Payments:     []CyclePayment{{Amount: 2, Timestamp: day(5)}},
	}, cfg)

	// 2 * 0.001833 ≈ 0.004，不足 0.01
	if out.Interest != 0 {
		t.Errorf("微额利息不应入账: got %v", out.Interest)
	}
	if !almostEqual(out.Balance, 2) {
		t.Errorf("余额不应变化: got %v", out.Balance)
	}
}
