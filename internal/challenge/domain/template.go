// Package domain 包含模拟资金挑战（prop-firm challenge）服务的领域模型：
// 挑战模板、挑战账户（权益台账）、交易以及风控评估规则。
package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChallengeTemplate 挑战模板实体。
// 发布后不可变，账户创建时从模板复制参数；下架（IsActive=false）后不再派生新账户。
type ChallengeTemplate struct {
	gorm.Model
	// 模板 ID (业务主键)
	TemplateID string `gorm:"column:template_id;type:varchar(32);uniqueIndex;not null" json:"template_id"`
	// 模板名称
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	// 等级（starter, pro, elite）
	Tier string `gorm:"column:tier;type:varchar(50);not null" json:"tier"`
	// 初始资金
	InitialBalance decimal.Decimal `gorm:"column:initial_balance;type:decimal(20,2);not null" json:"initial_balance"`
	// 单日最大亏损百分比
	MaxDailyLossPercent decimal.Decimal `gorm:"column:max_daily_loss_percent;type:decimal(8,2);not null" json:"max_daily_loss_percent"`
	// 最大回撤百分比
	MaxDrawdownPercent decimal.Decimal `gorm:"column:max_drawdown_percent;type:decimal(8,2);not null" json:"max_drawdown_percent"`
	// 盈利目标百分比
	ProfitTargetPercent decimal.Decimal `gorm:"column:profit_target_percent;type:decimal(8,2);not null" json:"profit_target_percent"`
	// 购买价格
	Price decimal.Decimal `gorm:"column:price;type:decimal(20,2);not null" json:"price"`
	// 是否上架
	IsActive bool `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

func (ChallengeTemplate) TableName() string {
	return "challenge_templates"
}

// TemplateRepository 挑战模板仓储接口
type TemplateRepository interface {
	// Save 保存或更新模板
	Save(ctx context.Context, tpl *ChallengeTemplate) error
	// Get 根据模板 ID 获取模板，不存在时返回 (nil, nil)
	Get(ctx context.Context, templateID string) (*ChallengeTemplate, error)
	// List 获取模板列表，onlyActive 为 true 时仅返回上架模板
	List(ctx context.Context, onlyActive bool) ([]*ChallengeTemplate, error)
}
