package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeStatus 交易状态
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// TradeSide 交易方向。当前模型只支持先买入后卖出平仓的多头交易。
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade 交易实体，归属且仅归属一个挑战账户。
// 持仓期间名义金额（entry × qty）从账户权益中冻结，平仓时连同盈亏一并返还。
type Trade struct {
	gorm.Model
	// 交易 ID (业务主键)
	TradeID string `gorm:"column:trade_id;type:varchar(32);uniqueIndex;not null" json:"trade_id"`
	// 所属挑战账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);index;not null" json:"account_id"`
	// 所属用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 交易符号
	Symbol string `gorm:"column:symbol;type:varchar(50);index;not null" json:"symbol"`
	// 买卖方向
	Side TradeSide `gorm:"column:side;type:varchar(10);not null" json:"side"`
	// 数量，恒为正
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null" json:"quantity"`
	// 开仓价格
	EntryPrice decimal.Decimal `gorm:"column:entry_price;type:decimal(20,8);not null" json:"entry_price"`
	// 平仓价格，平仓前为零值
	ExitPrice decimal.Decimal `gorm:"column:exit_price;type:decimal(20,8);not null;default:0" json:"exit_price"`
	// 止损价，仅作展示参考，引擎不强制执行
	StopLoss decimal.NullDecimal `gorm:"column:stop_loss;type:decimal(20,8)" json:"stop_loss"`
	// 止盈价，仅作展示参考，引擎不强制执行
	TakeProfit decimal.NullDecimal `gorm:"column:take_profit;type:decimal(20,8)" json:"take_profit"`
	// 已实现盈亏，平仓时定格
	Pnl decimal.Decimal `gorm:"column:pnl;type:decimal(20,2);not null;default:0" json:"pnl"`
	// 交易状态
	Status TradeStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// 开仓时间
	OpenedAt time.Time `gorm:"column:opened_at;not null" json:"opened_at"`
	// 平仓时间
	ClosedAt *time.Time `gorm:"column:closed_at" json:"closed_at"`
}

func (Trade) TableName() string {
	return "trades"
}

// NewTrade 创建一笔开仓交易
func NewTrade(tradeID, accountID, userID, symbol string, quantity, entryPrice decimal.Decimal, stopLoss, takeProfit decimal.NullDecimal, now time.Time) *Trade {
	return &Trade{
		TradeID:    tradeID,
		AccountID:  accountID,
		UserID:     userID,
		Symbol:     symbol,
		Side:       TradeSideBuy,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Pnl:        decimal.Zero,
		Status:     TradeStatusOpen,
		OpenedAt:   now,
	}
}

// Notional 开仓冻结的名义金额（entry × qty）
func (t *Trade) Notional() decimal.Decimal {
	return t.EntryPrice.Mul(t.Quantity)
}

// Close 按平仓价结算并定格盈亏。多头交易 pnl = (exit - entry) × qty。
// 已平仓交易返回 ErrTradeAlreadyClosed。
func (t *Trade) Close(exitPrice decimal.Decimal, at time.Time) error {
	if t.Status != TradeStatusOpen {
		return ErrTradeAlreadyClosed
	}
	t.ExitPrice = exitPrice
	t.Pnl = exitPrice.Sub(t.EntryPrice).Mul(t.Quantity)
	t.Status = TradeStatusClosed
	closedAt := at
	t.ClosedAt = &closedAt
	return nil
}

// TradeFilter 交易列表查询条件
type TradeFilter struct {
	AccountID string
	UserID    string
	Status    TradeStatus
	Symbol    string
	Limit     int
}

// TradeRepository 交易仓储接口
type TradeRepository interface {
	// Save 保存或更新交易
	Save(ctx context.Context, trade *Trade) error
	// Get 根据交易 ID 获取交易，不存在时返回 (nil, nil)
	Get(ctx context.Context, tradeID string) (*Trade, error)
	// List 按条件查询交易，按开仓时间倒序
	List(ctx context.Context, filter TradeFilter) ([]*Trade, error)
}
