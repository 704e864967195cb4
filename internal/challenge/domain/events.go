package domain

import "time"

// 集成事件主题
const (
	TopicAccountCreated     = "propfirm.account.created"
	TopicTradeOpened        = "propfirm.trade.opened"
	TopicTradeClosed        = "propfirm.trade.closed"
	TopicChallengeCompleted = "propfirm.challenge.completed"
)

// AccountCreatedEvent 挑战账户创建事件
type AccountCreatedEvent struct {
	AccountID      string    `json:"account_id"`
	UserID         string    `json:"user_id"`
	TemplateID     string    `json:"template_id"`
	InitialBalance string    `json:"initial_balance"`
	OccurredOn     time.Time `json:"occurred_on"`
}

// TradeOpenedEvent 开仓事件
type TradeOpenedEvent struct {
	TradeID    string    `json:"trade_id"`
	AccountID  string    `json:"account_id"`
	UserID     string    `json:"user_id"`
	Symbol     string    `json:"symbol"`
	Quantity   string    `json:"quantity"`
	EntryPrice string    `json:"entry_price"`
	OccurredOn time.Time `json:"occurred_on"`
}

// TradeClosedEvent 平仓事件
type TradeClosedEvent struct {
	TradeID    string    `json:"trade_id"`
	AccountID  string    `json:"account_id"`
	UserID     string    `json:"user_id"`
	Symbol     string    `json:"symbol"`
	ExitPrice  string    `json:"exit_price"`
	Pnl        string    `json:"pnl"`
	OccurredOn time.Time `json:"occurred_on"`
}

// ChallengeCompletedEvent 挑战结束事件（通过或失败，含管理员强制迁移）。
// 下游排行榜与通知服务消费。
type ChallengeCompletedEvent struct {
	AccountID  string    `json:"account_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	Equity     string    `json:"equity"`
	OccurredOn time.Time `json:"occurred_on"`
}
