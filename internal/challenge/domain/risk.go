package domain

import "github.com/shopspring/decimal"

// 风控裁决原因，与下游展示文案保持一致。
const (
	ReasonProfitTarget   = "profit target achieved"
	ReasonDailyLossLimit = "daily loss limit exceeded"
	ReasonMaxDrawdown    = "maximum drawdown exceeded"
	ReasonEquityDepleted = "account equity depleted"
)

// Verdict 风控裁决结果
type Verdict struct {
	Status AccountStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// RiskMetrics 账户风险指标只读投影，仅用于展示。
type RiskMetrics struct {
	Profit             decimal.Decimal `json:"profit"`
	ProfitPercent      decimal.Decimal `json:"profit_percent"`
	Drawdown           decimal.Decimal `json:"drawdown"`
	DrawdownPercent    decimal.Decimal `json:"drawdown_percent"`
	DailyLoss          decimal.Decimal `json:"daily_loss"`
	DailyLossPercent   decimal.Decimal `json:"daily_loss_percent"`
	RemainingDailyLoss decimal.Decimal `json:"remaining_daily_loss"`
}

// RiskEvaluator 纯函数式的风控评估器：对账户快照做裁决，从不修改状态。
type RiskEvaluator struct{}

func NewRiskEvaluator() *RiskEvaluator {
	return &RiskEvaluator{}
}

// Evaluate 按固定优先级评估账户。单个账户可能同时满足多条规则，
// 业务策略为盈利优先、其后才是资金保护类失败，因此首条命中即返回：
//  1. 盈利达标 -> passed
//  2. 当日亏损触限（>=，含相等）-> failed
//  3. 回撤触限 -> failed
//  4. 权益耗尽（<= 0）-> failed
//  5. 其余情况维持 active
//
// 终态账户直接维持原状态（幂等跳过），永远不会被评估回 active。
func (e *RiskEvaluator) Evaluate(a *ChallengeAccount) Verdict {
	if a.IsTerminal() {
		return Verdict{Status: a.Status}
	}

	profit := a.Equity.Sub(a.InitialBalance)
	if profit.GreaterThanOrEqual(a.ProfitTarget) {
		return Verdict{Status: AccountStatusPassed, Reason: ReasonProfitTarget}
	}

	if a.DailyLoss.GreaterThanOrEqual(a.DailyLossLimit) {
		return Verdict{Status: AccountStatusFailed, Reason: ReasonDailyLossLimit}
	}

	drawdown := a.PeakBalance.Sub(a.Equity)
	if drawdown.GreaterThanOrEqual(a.MaxDrawdownLimit) {
		return Verdict{Status: AccountStatusFailed, Reason: ReasonMaxDrawdown}
	}

	if a.Equity.LessThanOrEqual(decimal.Zero) {
		return Verdict{Status: AccountStatusFailed, Reason: ReasonEquityDepleted}
	}

	return Verdict{Status: AccountStatusActive}
}

// Metrics 计算账户风险指标。分母可能为零的比率一律回退为 0。
func (e *RiskEvaluator) Metrics(a *ChallengeAccount) RiskMetrics {
	profit := a.Equity.Sub(a.InitialBalance)
	drawdown := a.PeakBalance.Sub(a.Equity)

	m := RiskMetrics{
		Profit:             profit,
		Drawdown:           drawdown,
		DailyLoss:          a.DailyLoss,
		RemainingDailyLoss: a.DailyLossLimit.Sub(a.DailyLoss),
	}
	if a.InitialBalance.IsPositive() {
		m.ProfitPercent = profit.Div(a.InitialBalance).Mul(hundred)
	}
	if a.PeakBalance.IsPositive() {
		m.DrawdownPercent = drawdown.Div(a.PeakBalance).Mul(hundred)
	}
	if a.DailyLossLimit.IsPositive() {
		m.DailyLossPercent = a.DailyLoss.Div(a.DailyLossLimit).Mul(hundred)
	}
	return m
}
