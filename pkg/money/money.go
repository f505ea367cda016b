package money

import (
	"math"
)

// Round2 金额保留两位小数
//
// 【重要】所有会被持久化或参与比较的金额，必须在每一步运算后立刻取整，
// 而不是最后统一取整。大量小额转账下逐步取整才能避免浮点漂移，
// 取整顺序不同会产生不同的分位结果。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round6 利率保留六位小数（月利率 = 年利率/12 后取整）
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// RoundScore 计分取整（四舍五入到整数）
func RoundScore(v float64) int {
	return int(math.Round(v))
}
