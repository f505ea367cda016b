package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEventFormat(t *testing.T) {
	e := Event{
		Action: ActionTransfer,
		Route:  "savings → spending",
		Amount: 25,
		Change: Change(100, 75),
		Reason: "Transfer",
	}

	got := e.Format()
	want := "TRANSFER | savings → spending   | $25.00   | $100.00 → $75.00                          | Transfer"
	if got != want {
		t.Errorf("Format() 列宽不符:\ngot  %q\nwant %q", got, want)
	}
}

func TestEventFormatNoReason(t *testing.T) {
	e := Event{Action: ActionInterest, Route: "Bank → savings", Amount: 1.5, Change: Change(10, 11.5)}
	if got := e.Format(); strings.HasSuffix(got, "| ") || strings.Contains(got, "|  |") {
		t.Errorf("无备注时不应有尾随分隔: %q", got)
	}
}

func TestDualChange(t *testing.T) {
	got := DualChange(100, 90, 0, 10)
	want := "$100.00 → $90.00 ≡ $0.00 → $10.00"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// 首次写入带表头，后续追加不重复表头
func TestLogUserHeader(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)

	e := Event{Action: ActionReceived, Route: "Admin → spending", Amount: 10, Change: Change(0, 10), Reason: "Weekly allowance"}
	if err := l.LogUser("alice", e); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := l.LogUser("alice", e); err != nil {
		t.Fatalf("二次写入失败: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "transactions", "alice"))
	if err != nil {
		t.Fatalf("读取日志失败: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "TIMESTAMP") {
		t.Errorf("缺少表头: %q", content[:40])
	}
	if strings.Count(content, "TIMESTAMP") != 1 {
		t.Errorf("表头只应写一次")
	}
	if strings.Count(content, "Weekly allowance") != 2 {
		t.Errorf("应有两条记录")
	}
}

func TestLogBillingSummaryHeader(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)

	if err := l.LogBillingSummary("User: bob\nEnding Balance: $10.00", true); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "interest_history.log"))
	if err != nil {
		t.Fatalf("读取日志失败: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "MONTHLY_BILLING_SUMMARY | DATE:") {
		t.Errorf("缺少周期分隔头: %q", content)
	}
	if !strings.Contains(content, "User: bob") {
		t.Errorf("缺少汇总内容: %q", content)
	}
}
