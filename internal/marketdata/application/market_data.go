// Package application 行情服务的应用层。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/propfirm/internal/marketdata/domain"
)

// QuoteDTO 行情传输对象，价格字段以字符串承载。
type QuoteDTO struct {
	Symbol        string    `json:"symbol"`
	LastPrice     string    `json:"last_price"`
	ChangePercent string    `json:"change_percent"`
	Volume        string    `json:"volume"`
	AsOf          time.Time `json:"as_of"`
	Source        string    `json:"source"`
}

func toQuoteDTO(q *domain.Quote) *QuoteDTO {
	return &QuoteDTO{
		Symbol:        q.Symbol,
		LastPrice:     q.LastPrice.String(),
		ChangePercent: q.ChangePercent.String(),
		Volume:        q.Volume.String(),
		AsOf:          q.AsOf,
		Source:        q.Source,
	}
}

// MarketDataService 行情应用服务：整板刷新与单标的查询。
type MarketDataService struct {
	feed   domain.QuoteFeed
	quotes domain.QuoteRepository
	logger *slog.Logger
	maxAge time.Duration
	now    func() time.Time
}

// NewMarketDataService 创建行情应用服务。maxAge 为行情可用的最长快照年龄。
func NewMarketDataService(feed domain.QuoteFeed, quotes domain.QuoteRepository, logger *slog.Logger, maxAge time.Duration) *MarketDataService {
	return &MarketDataService{
		feed:   feed,
		quotes: quotes,
		logger: logger,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// RefreshAll 整板刷新：从上游抓取最新行情并写入读模型。
func (s *MarketDataService) RefreshAll(ctx context.Context) error {
	quotes, err := s.feed.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh market data: %w", err)
	}
	if len(quotes) == 0 {
		s.logger.WarnContext(ctx, "screener returned no quotes")
		return nil
	}
	if err := s.quotes.SaveBatch(ctx, quotes); err != nil {
		return fmt.Errorf("failed to store quotes: %w", err)
	}
	s.logger.DebugContext(ctx, "market data refreshed", "quotes", len(quotes))
	return nil
}

// GetQuote 获取单标的最新行情。缺失或超过新鲜度窗口时返回 ErrQuoteNotFound。
func (s *MarketDataService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if symbol == "" {
		return nil, domain.ErrQuoteNotFound
	}
	quote, err := s.quotes.GetLatest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrQuoteNotFound)
	}
	if quote.IsStale(s.now(), s.maxAge) {
		return nil, fmt.Errorf("%s: stale quote: %w", symbol, domain.ErrQuoteNotFound)
	}
	return quote, nil
}

// ListQuotes 列出全部跟踪标的的最新行情（展示用，过期快照一并返回）。
func (s *MarketDataService) ListQuotes(ctx context.Context) ([]*QuoteDTO, error) {
	symbols, err := s.quotes.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]*QuoteDTO, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.quotes.GetLatest(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if quote == nil {
			continue
		}
		dtos = append(dtos, toQuoteDTO(quote))
	}
	return dtos, nil
}
