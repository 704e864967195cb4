package application

import (
	"time"

	"github.com/wyfcoding/propfirm/internal/challenge/domain"
)

// AccountDTO 挑战账户传输对象，货币字段以字符串承载避免精度丢失。
type AccountDTO struct {
	AccountID        string     `json:"account_id"`
	UserID           string     `json:"user_id"`
	TemplateID       string     `json:"template_id"`
	Status           string     `json:"status"`
	InitialBalance   string     `json:"initial_balance"`
	CurrentBalance   string     `json:"current_balance"`
	Equity           string     `json:"equity"`
	PeakBalance      string     `json:"peak_balance"`
	DailyLossLimit   string     `json:"daily_loss_limit"`
	MaxDrawdownLimit string     `json:"max_drawdown_limit"`
	ProfitTarget     string     `json:"profit_target"`
	DailyLoss        string     `json:"daily_loss"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CurrentDay       string     `json:"current_day"`
}

// TradeDTO 交易传输对象
type TradeDTO struct {
	TradeID    string     `json:"trade_id"`
	AccountID  string     `json:"account_id"`
	UserID     string     `json:"user_id"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	Quantity   string     `json:"quantity"`
	EntryPrice string     `json:"entry_price"`
	ExitPrice  string     `json:"exit_price,omitempty"`
	StopLoss   string     `json:"stop_loss,omitempty"`
	TakeProfit string     `json:"take_profit,omitempty"`
	Pnl        string     `json:"pnl"`
	Status     string     `json:"status"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// TemplateDTO 挑战模板传输对象
type TemplateDTO struct {
	TemplateID          string `json:"template_id"`
	Name                string `json:"name"`
	Tier                string `json:"tier"`
	InitialBalance      string `json:"initial_balance"`
	MaxDailyLossPercent string `json:"max_daily_loss_percent"`
	MaxDrawdownPercent  string `json:"max_drawdown_percent"`
	ProfitTargetPercent string `json:"profit_target_percent"`
	Price               string `json:"price"`
	IsActive            bool   `json:"is_active"`
}

// RiskMetricsDTO 风险指标传输对象
type RiskMetricsDTO struct {
	Profit             string `json:"profit"`
	ProfitPercent      string `json:"profit_percent"`
	Drawdown           string `json:"drawdown"`
	DrawdownPercent    string `json:"drawdown_percent"`
	DailyLoss          string `json:"daily_loss"`
	DailyLossPercent   string `json:"daily_loss_percent"`
	RemainingDailyLoss string `json:"remaining_daily_loss"`
}

func toAccountDTO(a *domain.ChallengeAccount) *AccountDTO {
	return &AccountDTO{
		AccountID:        a.AccountID,
		UserID:           a.UserID,
		TemplateID:       a.TemplateID,
		Status:           string(a.Status),
		InitialBalance:   a.InitialBalance.String(),
		CurrentBalance:   a.CurrentBalance.String(),
		Equity:           a.Equity.String(),
		PeakBalance:      a.PeakBalance.String(),
		DailyLossLimit:   a.DailyLossLimit.String(),
		MaxDrawdownLimit: a.MaxDrawdownLimit.String(),
		ProfitTarget:     a.ProfitTarget.String(),
		DailyLoss:        a.DailyLoss.String(),
		StartedAt:        a.StartedAt,
		CompletedAt:      a.CompletedAt,
		CurrentDay:       a.CurrentDay.Format("2006-01-02"),
	}
}

func toTradeDTO(t *domain.Trade) *TradeDTO {
	dto := &TradeDTO{
		TradeID:    t.TradeID,
		AccountID:  t.AccountID,
		UserID:     t.UserID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Quantity:   t.Quantity.String(),
		EntryPrice: t.EntryPrice.String(),
		Pnl:        t.Pnl.String(),
		Status:     string(t.Status),
		OpenedAt:   t.OpenedAt,
		ClosedAt:   t.ClosedAt,
	}
	if t.Status == domain.TradeStatusClosed {
		dto.ExitPrice = t.ExitPrice.String()
	}
	if t.StopLoss.Valid {
		dto.StopLoss = t.StopLoss.Decimal.String()
	}
	if t.TakeProfit.Valid {
		dto.TakeProfit = t.TakeProfit.Decimal.String()
	}
	return dto
}

func toTemplateDTO(tpl *domain.ChallengeTemplate) *TemplateDTO {
	return &TemplateDTO{
		TemplateID:          tpl.TemplateID,
		Name:                tpl.Name,
		Tier:                tpl.Tier,
		InitialBalance:      tpl.InitialBalance.String(),
		MaxDailyLossPercent: tpl.MaxDailyLossPercent.String(),
		MaxDrawdownPercent:  tpl.MaxDrawdownPercent.String(),
		ProfitTargetPercent: tpl.ProfitTargetPercent.String(),
		Price:               tpl.Price.String(),
		IsActive:            tpl.IsActive,
	}
}

func toRiskMetricsDTO(m domain.RiskMetrics) *RiskMetricsDTO {
	return &RiskMetricsDTO{
		Profit:             m.Profit.String(),
		ProfitPercent:      m.ProfitPercent.String(),
		Drawdown:           m.Drawdown.String(),
		DrawdownPercent:    m.DrawdownPercent.String(),
		DailyLoss:          m.DailyLoss.String(),
		DailyLossPercent:   m.DailyLossPercent.String(),
		RemainingDailyLoss: m.RemainingDailyLoss.String(),
	}
}
