package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote 行情快照值对象
type PriceQuote struct {
	Symbol string
	Price  decimal.Decimal
	AsOf   time.Time
}

// PriceOracle 行情协作方端口。
// GetPrice 必须在有界超时内返回：行情不可用时返回 ErrPriceUnavailable，
// 绝不允许无限阻塞交易路径。RefreshAll 由周期扫描触发，刷新底层行情缓存。
type PriceOracle interface {
	GetPrice(ctx context.Context, symbol string) (*PriceQuote, error)
	RefreshAll(ctx context.Context) error
}
