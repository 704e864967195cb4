package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/propfirm/internal/marketdata/domain"
)

type QuoteRedisRepository struct {
	client redis.UniversalClient
	prefix string
	setKey string
	ttl    time.Duration
}

// NewQuoteRedisRepository 创建一个新的基于 Redis 的行情读模型仓储。
func NewQuoteRedisRepository(client redis.UniversalClient) *QuoteRedisRepository {
	return &QuoteRedisRepository{
		client: client,
		prefix: "marketdata:quote:",
		setKey: "marketdata:symbols",
		ttl:    24 * time.Hour,
	}
}

func (r *QuoteRedisRepository) SaveBatch(ctx context.Context, quotes []*domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, quote := range quotes {
		if quote == nil || quote.Symbol == "" {
			continue
		}
		data, err := json.Marshal(quote)
		if err != nil {
			return fmt.Errorf("failed to marshal quote: %w", err)
		}
		pipe.Set(ctx, r.prefix+quote.Symbol, data, r.ttl)
		pipe.SAdd(ctx, r.setKey, quote.Symbol)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save quotes to redis: %w", err)
	}
	return nil
}

func (r *QuoteRedisRepository) GetLatest(ctx context.Context, symbol string) (*domain.Quote, error) {
	data, err := r.client.Get(ctx, r.prefix+symbol).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quote from redis: %w", err)
	}

	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &quote, nil
}

func (r *QuoteRedisRepository) ListSymbols(ctx context.Context) ([]string, error) {
	symbols, err := r.client.SMembers(ctx, r.setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols from redis: %w", err)
	}
	return symbols, nil
}
