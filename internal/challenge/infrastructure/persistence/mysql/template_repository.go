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

// templateRepository 挑战模板仓储实现
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建挑战模板仓储实例
func NewTemplateRepository(db *gorm.DB) domain.TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Save 保存模板（按 template_id 幂等更新）
func (r *templateRepository) Save(ctx context.Context, tpl *domain.ChallengeTemplate) error {
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "template_id"}},
		UpdateAll: true,
	}).Create(tpl).Error
	if err != nil {
		return fmt.Errorf("failed to save challenge template: %w", err)
	}
	return nil
}

// Get 按模板 ID 查询，不存在时返回 (nil, nil)
func (r *templateRepository) Get(ctx context.Context, templateID string) (*domain.ChallengeTemplate, error) {
	var tpl domain.ChallengeTemplate
	if err := r.getDB(ctx).Where("template_id = ?", templateID).First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get challenge template: %w", err)
	}
	return &tpl, nil
}

// List 查询模板列表，onlyActive 为真时只返回在售模板
func (r *templateRepository) List(ctx context.Context, onlyActive bool) ([]*domain.ChallengeTemplate, error) {
	db := r.getDB(ctx).Model(&domain.ChallengeTemplate{})
	if onlyActive {
		db = db.Where("is_active = ?", true)
	}

	var templates []*domain.ChallengeTemplate
	if err := db.Order("initial_balance asc").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list challenge templates: %w", err)
	}
	return templates, nil
}
