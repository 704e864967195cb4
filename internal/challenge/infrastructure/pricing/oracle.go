// Package pricing 将行情服务适配为挑战服务的价格预言机。
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	challengedomain "github.com/wyfcoding/propfirm/internal/challenge/domain"
	"github.com/wyfcoding/propfirm/internal/marketdata/application"
	marketdomain "github.com/wyfcoding/propfirm/internal/marketdata/domain"
)

const defaultOracleTimeout = 5 * time.Second

// MarketDataOracle 基于行情读模型的价格预言机。
// 所有调用都有界超时，慢行情源在这里失败而不是挂起交易。
type MarketDataOracle struct {
	market  *application.MarketDataService
	timeout time.Duration
}

// NewMarketDataOracle 创建价格预言机。timeout <= 0 时使用默认超时。
func NewMarketDataOracle(market *application.MarketDataService, timeout time.Duration) *MarketDataOracle {
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &MarketDataOracle{market: market, timeout: timeout}
}

// GetPrice 获取标的最新可用价格。缺失或过期行情映射为 ErrPriceUnavailable。
func (o *MarketDataOracle) GetPrice(ctx context.Context, symbol string) (*challengedomain.PriceQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	quote, err := o.market.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, marketdomain.ErrQuoteNotFound) {
			return nil, fmt.Errorf("%s: %w", symbol, challengedomain.ErrPriceUnavailable)
		}
		return nil, err
	}
	return &challengedomain.PriceQuote{
		Symbol: quote.Symbol,
		Price:  quote.LastPrice,
		AsOf:   quote.AsOf,
	}, nil
}

// RefreshAll 触发行情整板刷新。
func (o *MarketDataOracle) RefreshAll(ctx context.Context) error {
	return o.market.RefreshAll(ctx)
}
