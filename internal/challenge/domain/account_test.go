package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testTemplate() *ChallengeTemplate {
	return &ChallengeTemplate{
		TemplateID:          "TPL-1",
		Name:                "Starter 5K",
		Tier:                "starter",
		InitialBalance:      d("5000"),
		MaxDailyLossPercent: d("5"),
		MaxDrawdownPercent:  d("10"),
		ProfitTargetPercent: d("10"),
		Price:               d("499"),
		IsActive:            true,
	}
}

func testAccount(t *testing.T) *ChallengeAccount {
	t.Helper()
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	return NewChallengeAccount("CHA-1", "USR-1", testTemplate(), now)
}

func TestNewChallengeAccountDerivedLimits(t *testing.T) {
	acc := testAccount(t)

	assert.Equal(t, AccountStatusActive, acc.Status)
	assert.True(t, acc.DailyLossLimit.Equal(d("250")), "daily loss limit = 5000 * 5%%, got %s", acc.DailyLossLimit)
	assert.True(t, acc.MaxDrawdownLimit.Equal(d("500")))
	assert.True(t, acc.ProfitTarget.Equal(d("500")))
	assert.True(t, acc.Equity.Equal(d("5000")))
	assert.True(t, acc.PeakBalance.Equal(d("5000")))
	assert.True(t, acc.DailyLoss.IsZero())
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), acc.CurrentDay)
	assert.Nil(t, acc.CompletedAt)
}

func TestApplyEquityDailyLossAccumulates(t *testing.T) {
	// 同一日内连续变动 [-50, +30, -20]：亏损累加、盈利不冲减，最终 70 而非 40。
	acc := testAccount(t)
	asOf := acc.StartedAt

	acc.ApplyEquity(acc.Equity.Sub(d("50")), asOf)
	acc.ApplyEquity(acc.Equity.Add(d("30")), asOf.Add(time.Minute))
	acc.ApplyEquity(acc.Equity.Sub(d("20")), asOf.Add(2*time.Minute))

	assert.True(t, acc.DailyLoss.Equal(d("70")), "daily loss = 70, got %s", acc.DailyLoss)
	assert.True(t, acc.Equity.Equal(d("4960")))
}

func TestApplyEquityPeakTracksMaximumOverTime(t *testing.T) {
	acc := testAccount(t)
	asOf := acc.StartedAt

	steps := []struct {
		equity string
		peak   string
	}{
		{"5100", "5100"},
		{"4900", "5100"},
		{"5300", "5300"},
		{"5050", "5300"},
	}
	for _, s := range steps {
		acc.ApplyEquity(d(s.equity), asOf)
		assert.True(t, acc.PeakBalance.Equal(d(s.peak)), "equity %s: peak = %s, got %s", s.equity, s.peak, acc.PeakBalance)
	}
}

func TestApplyEquityDayRolloverResetsBeforeDelta(t *testing.T) {
	acc := testAccount(t)
	day1 := acc.StartedAt

	acc.ApplyEquity(acc.Equity.Sub(d("240")), day1)
	require.True(t, acc.DailyLoss.Equal(d("240")))

	// 次日第一笔亏损只计入新窗口，不叠加昨日的 240。
	day2 := day1.Add(24 * time.Hour)
	acc.ApplyEquity(acc.Equity.Sub(d("100")), day2)

	assert.Equal(t, DateOf(day2), acc.CurrentDay)
	assert.True(t, acc.DailyLoss.Equal(d("100")), "daily loss = 100 after rollover, got %s", acc.DailyLoss)
}

func TestRollOver(t *testing.T) {
	acc := testAccount(t)
	acc.DailyLoss = d("240")

	assert.False(t, acc.RollOver(acc.StartedAt), "same day must not roll over")
	assert.True(t, acc.DailyLoss.Equal(d("240")))

	assert.True(t, acc.RollOver(acc.StartedAt.Add(24*time.Hour)))
	assert.True(t, acc.DailyLoss.IsZero())
}

func TestReserveInsufficientFunds(t *testing.T) {
	acc := testAccount(t)

	err := acc.Reserve(d("5000.01"), acc.StartedAt)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, acc.Equity.Equal(d("5000")), "failed reserve must not touch equity")

	require.NoError(t, acc.Reserve(d("5000"), acc.StartedAt))
	assert.True(t, acc.Equity.IsZero())
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	// 同价开平仓：pnl = 0，权益精确恢复，冻结/释放算术无泄漏。
	acc := testAccount(t)
	asOf := acc.StartedAt
	notional := d("1234.56")

	require.NoError(t, acc.Reserve(notional, asOf))
	require.NoError(t, acc.Release(notional, decimal.Zero, asOf))

	assert.True(t, acc.Equity.Equal(d("5000")), "equity restored exactly, got %s", acc.Equity)
	assert.True(t, acc.CurrentBalance.Equal(d("5000")))
}

func TestReserveReleaseLossAccounting(t *testing.T) {
	// 冻结/归还是资金挪移，不计入日亏；只有已实现亏损进入计数器。
	acc := testAccount(t)
	asOf := acc.StartedAt

	require.NoError(t, acc.Reserve(d("1000"), asOf))
	assert.True(t, acc.DailyLoss.IsZero(), "reserve is not a loss, got %s", acc.DailyLoss)

	require.NoError(t, acc.Release(d("1000"), d("-260"), asOf))
	assert.True(t, acc.DailyLoss.Equal(d("260")), "realized loss accrues, got %s", acc.DailyLoss)
	assert.True(t, acc.Equity.Equal(d("4740")))

	// 盈利平仓不冲减当日已累计亏损。
	require.NoError(t, acc.Reserve(d("500"), asOf))
	require.NoError(t, acc.Release(d("500"), d("100"), asOf))
	assert.True(t, acc.DailyLoss.Equal(d("260")))
}

func TestReleaseMayDriveEquityNegative(t *testing.T) {
	acc := testAccount(t)
	asOf := acc.StartedAt

	require.NoError(t, acc.Reserve(d("4000"), asOf))
	require.NoError(t, acc.Release(d("4000"), d("-9500"), asOf))

	assert.True(t, acc.Equity.Equal(d("-4500")), "negative equity is a failing condition, not an error")
}

func TestLedgerRejectsTerminalAccount(t *testing.T) {
	acc := testAccount(t)
	require.True(t, acc.MarkCompleted(AccountStatusFailed, acc.StartedAt))

	assert.ErrorIs(t, acc.Reserve(d("100"), acc.StartedAt), ErrAccountNotActive)
	assert.ErrorIs(t, acc.Release(d("100"), decimal.Zero, acc.StartedAt), ErrAccountNotActive)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	acc := testAccount(t)
	first := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	require.True(t, acc.MarkCompleted(AccountStatusPassed, first))
	require.NotNil(t, acc.CompletedAt)
	assert.Equal(t, first, *acc.CompletedAt)

	// 重复迁移：状态与 CompletedAt 均保持不变。
	assert.False(t, acc.MarkCompleted(AccountStatusPassed, first.Add(time.Hour)))
	assert.False(t, acc.MarkCompleted(AccountStatusFailed, first.Add(time.Hour)))
	assert.Equal(t, AccountStatusPassed, acc.Status)
	assert.Equal(t, first, *acc.CompletedAt)
}

func TestForceStatusReopensTerminalAccount(t *testing.T) {
	acc := testAccount(t)
	now := acc.StartedAt
	require.True(t, acc.MarkCompleted(AccountStatusFailed, now))

	acc.ForceStatus(AccountStatusActive, now.Add(time.Hour))

	assert.Equal(t, AccountStatusActive, acc.Status)
	assert.Nil(t, acc.CompletedAt)
}
