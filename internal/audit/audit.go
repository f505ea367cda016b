package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// 账务事件审计日志
// ============================================================================
//
// 每一笔影响余额的事件都会生成一条 Event，由统一的序列化器渲染成
// 固定列宽文本，追加到按用户分文件的审计日志。账单批处理另外
// 维护一份月度汇总日志。两类日志只给管理端查看器消费，引擎不回读。

const (
	ActionTransfer = "TRANSFER"
	ActionReceived = "RECEIVED"
	ActionPayment  = "PAYMENT"
	ActionPenalty  = "PENALTY"
	ActionInterest = "INTEREST"
	ActionReward   = "REWARD"
	ActionModified = "MODIFIED"
)

// Event 单条账务审计事件
type Event struct {
	Action string  // 动作标签（TRANSFER / PENALTY / ...）
	Route  string  // 资金路径描述，如 "spending → credit"、"Bank → savings"
	Amount float64 // 本次变动金额
	Change string  // 余额变化描述，用 Change / DualChange 构造
	Reason string  // 自由文本备注，可为空
}

// Change 单侧余额变化描述
func Change(before, after float64) string {
	return fmt.Sprintf("$%.2f → $%.2f", before, after)
}

// DualChange 双侧余额变化描述（同一用户账户间转账时两侧并列展示）
func DualChange(fromBefore, fromAfter, toBefore, toAfter float64) string {
	return fmt.Sprintf("$%.2f → $%.2f ≡ $%.2f → $%.2f", fromBefore, fromAfter, toBefore, toAfter)
}

// Format 渲染固定列宽行（不含时间戳，时间戳由写入方统一加）
func (e Event) Format() string {
	line := fmt.Sprintf("%-8s | %-20s | %-8s | %-41s",
		e.Action,
		e.Route,
		fmt.Sprintf("$%.2f", e.Amount),
		e.Change,
	)
	if e.Reason != "" {
		line += " | " + e.Reason
	}
	return line
}

const userLogHeader = "TIMESTAMP           | ACTION   | ROUTE                | AMOUNT   | CHANGE                                   | REASON\n"

// Logger 按用户分文件的审计日志
type Logger struct {
	mu  sync.Mutex
	dir string
}

// NewLogger dir 为日志根目录，用户日志写入 dir/transactions/<username>
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir}
}

// LogUser 追加一条用户审计记录，文件不存在时先写表头
func (l *Logger) LogUser(username string, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logDir := filepath.Join(l.dir, "transactions")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("创建审计日志目录失败: %w", err)
	}

	logFile := filepath.Join(logDir, username)
	writeHeader := false
	if info, err := os.Stat(logFile); err != nil || info.Size() == 0 {
		writeHeader = true
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开审计日志失败: %w", err)
	}
	defer f.Close()

	if writeHeader {
		if _, err := f.WriteString(userLogHeader + strings.Repeat("-", 135) + "\n"); err != nil {
			return err
		}
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, err = fmt.Fprintf(f, "%s | %s\n", timestamp, e.Format())
	return err
}

// LogBillingSummary 追加账单周期汇总，newCycle 为真时先写分隔头
func (l *Logger) LogBillingSummary(message string, newCycle bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(l.dir, "interest_history.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开账单汇总日志失败: %w", err)
	}
	defer f.Close()

	if newCycle {
		dateStr := time.Now().UTC().Format("01-02-2006")
		header := "\n" + strings.Repeat("=", 72) + "\n" +
			fmt.Sprintf("MONTHLY_BILLING_SUMMARY | DATE: %s\n", dateStr) +
			strings.Repeat("=", 72) + "\n"
		if _, err := f.WriteString(header); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(f, "%s\n", strings.TrimSpace(message))
	return err
}

// LogRewardRedemption 追加一条积分兑换记录
func (l *Logger) LogRewardRedemption(username, reward string, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(l.dir, "rewards_history.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开兑换历史日志失败: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "\n============ %s =============\n User      : %s\n Reward    : %s\n Points    : %d points\n",
		time.Now().Format("01-02-2006 15:04"), username, reward, points)
	return err
}
