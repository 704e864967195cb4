package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountStatus 挑战账户状态
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusPassed AccountStatus = "passed"
	AccountStatusFailed AccountStatus = "failed"
)

var hundred = decimal.NewFromInt(100)

// DateOf 返回时间戳对应的 UTC 日历日（当日零点）。
// 日亏损窗口按 UTC 日切分。
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ChallengeAccount 挑战账户实体（权益台账）。
// 一个账户对应一次挑战实例，是风控评估的最小单位。
// 货币字段全部使用 decimal，派生限额在创建时一次性计算，之后不再重算。
//
// 并发约束：同一账户的读-改-写必须串行化（仓储层 SELECT ... FOR UPDATE），
// 不同账户之间相互独立。
type ChallengeAccount struct {
	gorm.Model
	// 账户 ID (业务主键)
	AccountID string `gorm:"column:account_id;type:varchar(32);uniqueIndex;not null" json:"account_id"`
	// 所属用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 来源模板 ID
	TemplateID string `gorm:"column:template_id;type:varchar(32);index;not null" json:"template_id"`
	// 账户状态（active / passed / failed，后两者为终态）
	Status AccountStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// 初始资金
	InitialBalance decimal.Decimal `gorm:"column:initial_balance;type:decimal(20,2);not null" json:"initial_balance"`
	// 当前余额（本模型中与权益同步更新）
	CurrentBalance decimal.Decimal `gorm:"column:current_balance;type:decimal(20,2);not null" json:"current_balance"`
	// 当前权益，含未平仓冻结名义金额
	Equity decimal.Decimal `gorm:"column:equity;type:decimal(20,2);not null" json:"equity"`
	// 历史权益峰值，用于回撤计算
	PeakBalance decimal.Decimal `gorm:"column:peak_balance;type:decimal(20,2);not null" json:"peak_balance"`
	// 单日亏损限额 = 初始资金 × 单日亏损百分比
	DailyLossLimit decimal.Decimal `gorm:"column:daily_loss_limit;type:decimal(20,2);not null" json:"daily_loss_limit"`
	// 最大回撤限额 = 初始资金 × 最大回撤百分比
	MaxDrawdownLimit decimal.Decimal `gorm:"column:max_drawdown_limit;type:decimal(20,2);not null" json:"max_drawdown_limit"`
	// 盈利目标 = 初始资金 × 盈利目标百分比
	ProfitTarget decimal.Decimal `gorm:"column:profit_target;type:decimal(20,2);not null" json:"profit_target"`
	// 当日累计亏损，恒 >= 0，日切时清零
	DailyLoss decimal.Decimal `gorm:"column:daily_loss;type:decimal(20,2);not null;default:0" json:"daily_loss"`
	// 挑战开始时间
	StartedAt time.Time `gorm:"column:started_at;not null" json:"started_at"`
	// 挑战结束时间，进入终态时设置且仅设置一次
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	// 日亏损窗口对应的日历日（UTC 零点）
	CurrentDay time.Time `gorm:"column:current_day;type:date;not null" json:"current_day"`
}

func (ChallengeAccount) TableName() string {
	return "challenge_accounts"
}

// NewChallengeAccount 从模板派生一个新的挑战账户。
// 派生限额在此一次性计算，之后模板变动不影响已有账户。
func NewChallengeAccount(accountID, userID string, tpl *ChallengeTemplate, now time.Time) *ChallengeAccount {
	return &ChallengeAccount{
		AccountID:        accountID,
		UserID:           userID,
		TemplateID:       tpl.TemplateID,
		Status:           AccountStatusActive,
		InitialBalance:   tpl.InitialBalance,
		CurrentBalance:   tpl.InitialBalance,
		Equity:           tpl.InitialBalance,
		PeakBalance:      tpl.InitialBalance,
		DailyLossLimit:   tpl.InitialBalance.Mul(tpl.MaxDailyLossPercent).Div(hundred),
		MaxDrawdownLimit: tpl.InitialBalance.Mul(tpl.MaxDrawdownPercent).Div(hundred),
		ProfitTarget:     tpl.InitialBalance.Mul(tpl.ProfitTargetPercent).Div(hundred),
		DailyLoss:        decimal.Zero,
		StartedAt:        now,
		CurrentDay:       DateOf(now),
	}
}

// IsTerminal 是否已进入终态（passed / failed）
func (a *ChallengeAccount) IsTerminal() bool {
	return a.Status == AccountStatusPassed || a.Status == AccountStatusFailed
}

// Reserve 开仓冻结：从权益中扣除名义金额。
// 冻结金额超过当前权益时返回 ErrInsufficientFunds。
// 冻结是资金挪移而非亏损，不计入 DailyLoss。
func (a *ChallengeAccount) Reserve(amount decimal.Decimal, asOf time.Time) error {
	if a.IsTerminal() {
		return ErrAccountNotActive
	}
	if amount.GreaterThan(a.Equity) {
		return ErrInsufficientFunds
	}
	a.RollOver(asOf)
	a.setEquity(a.Equity.Sub(amount))
	return nil
}

// Release 平仓释放：归还冻结名义金额并结算盈亏，已实现亏损计入 DailyLoss。
// 算术上永远成功；亏损超过冻结额导致权益为负是合法的失败条件，不是错误。
func (a *ChallengeAccount) Release(amount, pnl decimal.Decimal, asOf time.Time) error {
	if a.IsTerminal() {
		return ErrAccountNotActive
	}
	a.RollOver(asOf)
	if pnl.IsNegative() {
		a.DailyLoss = a.DailyLoss.Add(pnl.Neg())
	}
	a.setEquity(a.Equity.Add(amount).Add(pnl))
	return nil
}

// ApplyEquity 外部权益重估（市值刷新）的入口：
//  1. 若 asOf 已跨日，先切换日亏损窗口并清零 DailyLoss（必须先于差额计算）；
//  2. 负向差额累加进 DailyLoss，正向差额不冲减当日已累计亏损；
//  3. 同步权益与余额；
//  4. 维护权益峰值。
//
// 整个方法相对同一账户的并发变更必须作为一个原子单元执行。
func (a *ChallengeAccount) ApplyEquity(newEquity decimal.Decimal, asOf time.Time) {
	a.RollOver(asOf)

	delta := newEquity.Sub(a.Equity)
	if delta.IsNegative() {
		a.DailyLoss = a.DailyLoss.Add(delta.Neg())
	}

	a.setEquity(newEquity)
}

func (a *ChallengeAccount) setEquity(newEquity decimal.Decimal) {
	a.Equity = newEquity
	a.CurrentBalance = newEquity
	if newEquity.GreaterThan(a.PeakBalance) {
		a.PeakBalance = newEquity
	}
}

// RollOver 日切：当 asOf 所在日历日晚于当前窗口时，推进窗口并清零当日亏损。
// 返回是否发生了日切。
func (a *ChallengeAccount) RollOver(asOf time.Time) bool {
	day := DateOf(asOf)
	if !day.After(DateOf(a.CurrentDay)) {
		return false
	}
	a.CurrentDay = day
	a.DailyLoss = decimal.Zero
	return true
}

// MarkCompleted 自动路径的状态迁移：active -> passed/failed。
// 幂等：已处于终态时不做任何修改（CompletedAt 只设置一次），返回 false。
func (a *ChallengeAccount) MarkCompleted(status AccountStatus, at time.Time) bool {
	if a.IsTerminal() {
		return false
	}
	if status != AccountStatusPassed && status != AccountStatusFailed {
		return false
	}
	a.Status = status
	t := at
	a.CompletedAt = &t
	return true
}

// ForceStatus 管理员强制迁移，绕过风控评估与终态保护。
// 迁回 active 时清空 CompletedAt；迁入终态时若未设置则补记结束时间。
func (a *ChallengeAccount) ForceStatus(status AccountStatus, at time.Time) {
	a.Status = status
	switch status {
	case AccountStatusActive:
		a.CompletedAt = nil
	case AccountStatusPassed, AccountStatusFailed:
		if a.CompletedAt == nil {
			t := at
			a.CompletedAt = &t
		}
	}
}

// AccountRepository 挑战账户仓储接口。
// UpdateWithLock 是单账户读-改-写的串行化原语：实现必须在事务内
// 以行级锁加载账户，执行 fn 后保存；fn 收到的 ctx 携带事务句柄，
// 供同事务内的其他仓储操作复用。
type AccountRepository interface {
	// Save 保存或更新账户
	Save(ctx context.Context, account *ChallengeAccount) error
	// Get 根据账户 ID 获取账户，不存在时返回 (nil, nil)
	Get(ctx context.Context, accountID string) (*ChallengeAccount, error)
	// GetActiveByUser 获取用户当前 active 状态的账户，不存在时返回 (nil, nil)
	GetActiveByUser(ctx context.Context, userID string) (*ChallengeAccount, error)
	// ListByUser 获取用户的全部挑战账户
	ListByUser(ctx context.Context, userID string) ([]*ChallengeAccount, error)
	// ListActiveIDs 获取所有 active 账户的 ID，供周期性风控扫描使用
	ListActiveIDs(ctx context.Context) ([]string, error)
	// UpdateWithLock 在行级锁保护下对单个账户执行读-改-写
	UpdateWithLock(ctx context.Context, accountID string, fn func(txCtx context.Context, account *ChallengeAccount) error) error
}
