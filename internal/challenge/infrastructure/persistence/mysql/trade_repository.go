package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/propfirm/internal/challenge/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultTradeLimit = 100

// tradeRepository 交易仓储实现
type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository 创建交易仓储实例
func NewTradeRepository(db *gorm.DB) domain.TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Save 保存交易（按 trade_id 幂等更新）
func (r *tradeRepository) Save(ctx context.Context, trade *domain.Trade) error {
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		UpdateAll: true,
	}).Create(trade).Error
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", wrapConflict(err))
	}
	return nil
}

// Get 按交易 ID 查询，不存在时返回 (nil, nil)
func (r *tradeRepository) Get(ctx context.Context, tradeID string) (*domain.Trade, error) {
	var trade domain.Trade
	if err := r.getDB(ctx).Where("trade_id = ?", tradeID).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return &trade, nil
}

// List 按条件查询交易，按开仓时间倒序
func (r *tradeRepository) List(ctx context.Context, filter domain.TradeFilter) ([]*domain.Trade, error) {
	db := r.getDB(ctx).Model(&domain.Trade{})
	if filter.AccountID != "" {
		db = db.Where("account_id = ?", filter.AccountID)
	}
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Symbol != "" {
		db = db.Where("symbol = ?", filter.Symbol)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTradeLimit
	}

	var trades []*domain.Trade
	if err := db.Order("opened_at desc").Limit(limit).Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}
