// Package domain 包含行情服务的领域模型与仓储接口。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrQuoteNotFound 请求的标的没有可用行情。
var ErrQuoteNotFound = errors.New("quote not found")

// Quote 行情快照实体
// 代表某个标的在某个时刻的最新成交信息。
type Quote struct {
	// 标的代码（如 AAPL）
	Symbol string `json:"symbol"`
	// 最新成交价
	LastPrice decimal.Decimal `json:"last_price"`
	// 当日涨跌幅（百分比）
	ChangePercent decimal.Decimal `json:"change_percent"`
	// 成交量
	Volume decimal.Decimal `json:"volume"`
	// 快照时间
	AsOf time.Time `json:"as_of"`
	// 数据来源
	Source string `json:"source"`
}

// NewQuote 创建行情快照
func NewQuote(symbol string, lastPrice, changePercent, volume decimal.Decimal, asOf time.Time, source string) *Quote {
	return &Quote{
		Symbol:        symbol,
		LastPrice:     lastPrice,
		ChangePercent: changePercent,
		Volume:        volume,
		AsOf:          asOf,
		Source:        source,
	}
}

// IsStale 判断快照是否超过给定的新鲜度窗口。maxAge <= 0 表示不做新鲜度约束。
func (q *Quote) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(q.AsOf) > maxAge
}

// QuoteRepository 行情快照仓储接口
type QuoteRepository interface {
	// 批量保存最新行情
	SaveBatch(ctx context.Context, quotes []*Quote) error
	// 获取某标的的最新行情，不存在时返回 (nil, nil)
	GetLatest(ctx context.Context, symbol string) (*Quote, error)
	// 列出当前跟踪的全部标的代码
	ListSymbols(ctx context.Context) ([]string, error)
}

// QuoteFeed 上游行情源接口：一次抓取整板最新行情。
type QuoteFeed interface {
	FetchAll(ctx context.Context) ([]*Quote, error)
}
