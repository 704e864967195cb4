// Package feed 对接上游行情源。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/propfirm/internal/marketdata/domain"
)

const defaultTimeout = 10 * time.Second

// ScreenerClient 从行情筛选器接口整板拉取最新报价。
// 上游返回一个 JSON 数组，每个元素携带标的代码、最新价、涨跌幅与成交量。
type ScreenerClient struct {
	baseURL string
	source  string
	client  *http.Client
	now     func() time.Time
}

type screenerRow struct {
	Symbol        string      `json:"symbol"`
	Price         json.Number `json:"price"`
	ChangePercent json.Number `json:"change_percent"`
	Volume        json.Number `json:"volume"`
}

// NewScreenerClient 创建行情筛选器客户端。timeout <= 0 时使用默认超时。
func NewScreenerClient(baseURL, source string, timeout time.Duration) *ScreenerClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ScreenerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		source:  source,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// FetchAll 拉取整板最新行情。单行解析失败时跳过该行，不中断整批。
func (c *ScreenerClient) FetchAll(ctx context.Context) ([]*domain.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build screener request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch screener data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screener returned status %d", resp.StatusCode)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	var rows []screenerRow
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode screener payload: %w", err)
	}

	asOf := c.now()
	quotes := make([]*domain.Quote, 0, len(rows))
	for _, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" {
			continue
		}
		price, err := decimal.NewFromString(row.Price.String())
		if err != nil || !price.IsPositive() {
			continue
		}
		changePercent, _ := decimal.NewFromString(row.ChangePercent.String())
		volume, _ := decimal.NewFromString(row.Volume.String())
		quotes = append(quotes, domain.NewQuote(symbol, price, changePercent, volume, asOf, c.source))
	}
	return quotes, nil
}
