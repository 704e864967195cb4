// Package mysql 提供了挑战服务仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/propfirm/internal/challenge/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQL 死锁与锁等待超时错误码，映射为可重试的写冲突。
const (
	mysqlErrDeadlock    = 1213
	mysqlErrLockTimeout = 1205
)

// wrapConflict 将底层并发写冲突映射为 domain.ErrPersistenceConflict，
// 供应用层做有限重试；其余错误原样返回。
func wrapConflict(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) && (mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockTimeout) {
		return fmt.Errorf("%v: %w", err, domain.ErrPersistenceConflict)
	}
	return err
}

// accountRepository 挑战账户仓储实现
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建挑战账户仓储实例
func NewAccountRepository(db *gorm.DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Save 保存挑战账户（按 account_id 幂等更新）
func (r *accountRepository) Save(ctx context.Context, account *domain.ChallengeAccount) error {
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Create(account).Error
	if err != nil {
		return fmt.Errorf("failed to save challenge account: %w", wrapConflict(err))
	}
	return nil
}

// Get 按账户 ID 查询，不存在时返回 (nil, nil)
func (r *accountRepository) Get(ctx context.Context, accountID string) (*domain.ChallengeAccount, error) {
	var account domain.ChallengeAccount
	if err := r.getDB(ctx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get challenge account: %w", err)
	}
	return &account, nil
}

// GetActiveByUser 查询用户当前进行中的挑战账户
func (r *accountRepository) GetActiveByUser(ctx context.Context, userID string) (*domain.ChallengeAccount, error) {
	var account domain.ChallengeAccount
	err := r.getDB(ctx).
		Where("user_id = ? AND status = ?", userID, domain.AccountStatusActive).
		Order("created_at desc").
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active challenge account: %w", err)
	}
	return &account, nil
}

// ListByUser 查询用户的全部挑战账户
func (r *accountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.ChallengeAccount, error) {
	var accounts []*domain.ChallengeAccount
	err := r.getDB(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list challenge accounts: %w", err)
	}
	return accounts, nil
}

// ListActiveIDs 列出全部进行中账户的 ID，供周期扫描使用
func (r *accountRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.getDB(ctx).
		Model(&domain.ChallengeAccount{}).
		Where("status = ?", domain.AccountStatusActive).
		Order("id asc").
		Pluck("account_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active account ids: %w", err)
	}
	return ids, nil
}

// UpdateWithLock 在事务内以行级锁加载账户，执行 fn 后保存。
// fn 收到的 ctx 携带事务句柄，同事务内的其它仓储操作通过它复用连接。
func (r *accountRepository) UpdateWithLock(ctx context.Context, accountID string, fn func(txCtx context.Context, account *domain.ChallengeAccount) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account domain.ChallengeAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).
			First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("failed to lock challenge account: %w", err)
		}

		txCtx := contextx.WithTx(ctx, tx)
		if err := fn(txCtx, &account); err != nil {
			return err
		}
		return tx.Save(&account).Error
	})
	return wrapConflict(err)
}
