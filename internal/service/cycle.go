package service

import (
	"fmt"
	"time"

	"homebank/internal/config"
	"homebank/pkg/money"
)

// ============================================================================
// 账单周期核算引擎（纯计算部分）
// ============================================================================
//
// 本文件不碰数据库：输入是一个周期窗口内的借款/还款流水和账户现状，
// 输出是这个周期应发生的全部变更（计分、积分、费用、利息、余额）。
// 数据库读写由 BillingService 负责，这样数值逻辑可以脱离 MySQL 测试。

// CycleDraw 周期窗口内的一笔借款
type CycleDraw struct {
	Amount    float64
	Timestamp time.Time
}

// CyclePayment 周期窗口内的一笔还款
type CyclePayment struct {
	Amount    float64
	Timestamp time.Time
}

// MatchedDraw FIFO 撮合后的借款状态
type MatchedDraw struct {
	Original  float64
	Remaining float64
	Timestamp time.Time
	RepaidAt  *time.Time // 被完全还清时，还清那笔还款的时间
}

// CycleInput 单个信用账户的周期核算输入
type CycleInput struct {
	Balance      float64 // 当前信用余额（欠款）
	CreditLimit  float64
	InterestRate float64 // 年化利率
	PastAmt      float64 // 上周期收口时的结转余额
	CreditScore  int
	RewardPoints int
	Draws        []CycleDraw
	Payments     []CyclePayment
}

// CycleOutcome 周期核算结果
// Balance 为计费、计息之后的余额；PastDue 只会置位，清除走还款路径
type CycleOutcome struct {
	CreditScore     int
	RewardPoints    int
	Balance         float64
	LateFee         float64
	Interest        float64
	PastDue         bool
	MinDue          float64
	RemainingMinDue float64
	TotalDraws      float64
	TotalPayments   float64
	PersistentDraws float64
	Notes           []string
}

// MatchDrawsFIFO 把还款按时间顺序逐笔冲抵借款
//
// 每笔还款从最早未结清的借款开始消耗 min(借款余额, 还款余额)，
// 借款被冲平时记录还清时间。金额每一步都取两位小数。
func MatchDrawsFIFO(draws []CycleDraw, payments []CyclePayment) []MatchedDraw {
	matched := make([]MatchedDraw, len(draws))
	for i, d := range draws {
		matched[i] = MatchedDraw{
			Original:  d.Amount,
			Remaining: d.Amount,
			Timestamp: d.Timestamp,
		}
	}

	for _, p := range payments {
		remaining := p.Amount
		for i := range matched {
			if remaining <= 0 {
				break
			}
			if matched[i].Remaining <= 0 {
				continue
			}
			applied := money.Round2(min(matched[i].Remaining, remaining))
			matched[i].Remaining = money.Round2(matched[i].Remaining - applied)
			remaining = money.Round2(remaining - applied)
			if matched[i].Remaining == 0 && matched[i].RepaidAt == nil {
				repaidAt := p.Timestamp
				matched[i].RepaidAt = &repaidAt
			}
		}
	}

	return matched
}

// persistentDrawAmount 持久借款总额
//
// 以上周期结转为基数：未还清的借款按剩余额累加；
// 已还清但在外天数达到阈值的，按原始金额累加——
// 当天借当天还视为低影响，欠着好几天才还的即使还清也计入持久额。
func persistentDrawAmount(matched []MatchedDraw, pastAmt float64, minDays int) float64 {
	amount := pastAmt
	if amount < 0 {
		amount = 0
	}
	for _, d := range matched {
		if d.Remaining > 0 {
			amount = money.Round2(amount + d.Remaining)
			continue
		}
		if d.RepaidAt != nil {
			if daysBetween(d.Timestamp, *d.RepaidAt) >= minDays {
				amount = money.Round2(amount + d.Original)
			}
		}
	}
	return amount
}

// daysBetween 按日历日计算天数差（忽略一天内的时刻）
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// clampScore 每次调整后立即把信用分压回 [MinScore, MaxScore]
func clampScore(score int, cfg *config.CreditConfig) int {
	if score < cfg.MinScore {
		return cfg.MinScore
	}
	if score > cfg.MaxScore {
		return cfg.MaxScore
	}
	return score
}

// EvaluateCycle 核算一个信用账户的完整账单周期
//
// 分支结构与计算顺序固定：超限检查 → 按"本周期是否有借款"分流的
// 计分/积分分支（滞纳金在这里入账）→ 使用率检查 → 计息。
// 滞纳金必须先于使用率检查入账，使用率读的是计费后的余额。
func EvaluateCycle(in CycleInput, cfg *config.CreditConfig) CycleOutcome {
	out := CycleOutcome{
		CreditScore:  in.CreditScore,
		RewardPoints: in.RewardPoints,
		Balance:      in.Balance,
	}

	totalDraws := 0.0
	for _, d := range in.Draws {
		totalDraws += d.Amount
	}
	totalDraws = money.Round2(totalDraws)

	totalPayments := 0.0
	for _, p := range in.Payments {
		totalPayments += p.Amount
	}
	totalPayments = money.Round2(totalPayments)

	out.TotalDraws = totalDraws
	out.TotalPayments = totalPayments

	oldBalance := in.PastAmt
	carriedBalance := oldBalance > 0

	// ---------- FIFO 撮合与持久借款 ----------
	matched := MatchDrawsFIFO(in.Draws, in.Payments)
	out.PersistentDraws = persistentDrawAmount(matched, in.PastAmt, cfg.MinDaysOutstandingForFullPoints)

	persistentFraction := 0.0
	if totalDraws > 0 {
		persistentFraction = out.PersistentDraws / totalDraws
		if persistentFraction > 1 {
			persistentFraction = 1
		}
	}

	// ---------- 最低还款额 ----------
	// 基数是结转进本周期的余额，不是当前滚动余额
	out.MinDue = money.Round2(cfg.MinPaymentAmt * oldBalance)
	paidTowardMinDue := min(totalPayments, out.MinDue)
	out.RemainingMinDue = money.Round2(max(out.MinDue-paidTowardMinDue, 0))

	// ---------- 超限检查 ----------
	if in.CreditLimit > 0 && out.Balance > in.CreditLimit {
		out.CreditScore = clampScore(out.CreditScore-cfg.OverLimitPenalty, cfg)
		out.Notes = append(out.Notes, fmt.Sprintf("(Over limit; Score: -%d)", cfg.OverLimitPenalty))
	}

	// ---------- 计分与积分 ----------
	if totalDraws > 0 {
		switch {
		case carriedBalance && (totalPayments-totalDraws) >= oldBalance:
			// 新借款加上结转余额全部还清
			utilizationFactor := min(in.CreditLimit/totalDraws, 1)
			scoreGain := money.RoundScore(float64(cfg.OnTimePaymentReward) * utilizationFactor)
			out.CreditScore = clampScore(out.CreditScore+scoreGain, cfg)
			out.RewardPoints += cfg.MaxPoints
			out.Notes = append(out.Notes, fmt.Sprintf("(Full payment; Score: +%d; Points: +%d)", scoreGain, cfg.MaxPoints))

		case carriedBalance && totalPayments < out.MinDue:
			// 未达最低还款额：按持久借款占比缩放罚分，占比为 0 时退回全额罚分
			penalty := cfg.NoPaymentPenalty
			if persistentFraction > 0 {
				penalty = money.RoundScore(float64(cfg.NoPaymentPenalty) * persistentFraction)
			}
			out.CreditScore = clampScore(out.CreditScore-penalty, cfg)
			out.LateFee = cfg.NoPaymentFee
			out.Balance = money.Round2(out.Balance + cfg.NoPaymentFee)
			out.PastDue = true
			out.Notes = append(out.Notes, fmt.Sprintf("(Late payment; Score: -%d; Fee: $%.2f)", penalty, cfg.NoPaymentFee))

		case carriedBalance && totalPayments > 0:
			out.applyPartialPayment(oldBalance, totalPayments, cfg)
		}
	} else {
		switch {
		case carriedBalance && totalPayments >= oldBalance:
			scoreGain := money.RoundScore(float64(cfg.OnTimePaymentReward) * min(in.CreditLimit/totalPayments, 1))
			out.CreditScore = clampScore(out.CreditScore+scoreGain, cfg)
			out.RewardPoints += cfg.MaxPoints
			out.Notes = append(out.Notes, fmt.Sprintf("(Full payment; Score: +%d; Points: +%d)", scoreGain, cfg.MaxPoints))

		case carriedBalance && totalPayments >= out.MinDue:
			out.applyPartialPayment(oldBalance, totalPayments, cfg)

		case carriedBalance && totalPayments < out.MinDue:
			out.CreditScore = clampScore(out.CreditScore-cfg.NoPaymentPenalty, cfg)
			out.LateFee = cfg.NoPaymentFee
			out.Balance = money.Round2(out.Balance + cfg.NoPaymentFee)
			out.PastDue = true
			out.Notes = append(out.Notes, fmt.Sprintf("(Carried balance with insufficient payment; Score: -%d; Fee: $%.2f)", cfg.NoPaymentPenalty, cfg.NoPaymentFee))
		}
	}

	// ---------- 使用率 ----------
	if in.CreditLimit > 0 {
		utilization := out.Balance / in.CreditLimit

		if utilization > 0.8 {
			out.CreditScore = clampScore(out.CreditScore-cfg.HighUtilizationPenalty, cfg)
			out.Notes = append(out.Notes, fmt.Sprintf("(High utilization; Score: -%d)", cfg.HighUtilizationPenalty))
		} else if utilization < 0.3 && (totalDraws > 0 || carriedBalance) {
			out.CreditScore = clampScore(out.CreditScore+cfg.LowUtilizationReward, cfg)
			points := 0
			if out.RemainingMinDue <= 0 {
				points = cfg.UtilizationRewardExponent
				out.RewardPoints += points
			}
			out.Notes = append(out.Notes, fmt.Sprintf("(Low utilization; Score: +%d; Points: +%d)", cfg.LowUtilizationReward, points))
		}

		// 零使用分支：基准配置下罚分为 0，保留分支等配置调参
		if totalDraws == 0 && !carriedBalance {
			out.CreditScore = clampScore(out.CreditScore-cfg.NoUtilizationPenalty, cfg)
			out.Notes = append(out.Notes, fmt.Sprintf("(No utilization; Score: -%d)", cfg.NoUtilizationPenalty))
		}
	}

	// ---------- 计息 ----------
	monthlyRate := money.Round6(in.InterestRate / 12.0)
	if out.Balance > 0 {
		interest := money.Round2(out.Balance * monthlyRate)
		if interest >= 0.01 {
			out.Interest = interest
			out.Balance = money.Round2(out.Balance + interest)
		}
	}

	return out
}

// applyPartialPayment 部分还款分支：按"还款额 / (结转余额与最低还款额的中值)"
// 折算还款力度，力度超过 1 时罚分为负（变成奖励），上限 2
func (out *CycleOutcome) applyPartialPayment(oldBalance, totalPayments float64, cfg *config.CreditConfig) {
	fractionPaid := totalPayments / ((oldBalance + out.MinDue) / 2)
	fractionPaid = max(0, min(2, fractionPaid))

	penalty := money.RoundScore(float64(cfg.NoPaymentPenalty) * (1 - fractionPaid))
	out.CreditScore = clampScore(out.CreditScore-penalty, cfg)

	points := min(cfg.MaxPoints, money.RoundScore(float64(cfg.MaxPoints)*fractionPaid))
	out.RewardPoints += points

	if penalty < 0 {
		out.Notes = append(out.Notes, fmt.Sprintf("(Partial payment; Score: +%d; Points: +%d)", -penalty, points))
	} else {
		out.Notes = append(out.Notes, fmt.Sprintf("(Partial payment; Score: -%d; Points: +%d)", penalty, points))
	}
}
