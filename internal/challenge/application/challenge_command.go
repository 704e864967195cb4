package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/retry"
	"github.com/wyfcoding/propfirm/internal/challenge/domain"
)

// CreateAccountCommand 开启挑战命令
type CreateAccountCommand struct {
	UserID     string
	TemplateID string
}

// OpenTradeCommand 开仓命令。AccountID 为空时使用用户当前 active 账户。
type OpenTradeCommand struct {
	UserID     string
	AccountID  string
	Symbol     string
	Quantity   decimal.Decimal
	StopLoss   decimal.NullDecimal
	TakeProfit decimal.NullDecimal
}

// CloseTradeCommand 平仓命令
type CloseTradeCommand struct {
	UserID  string
	TradeID string
}

// CreateTemplateCommand 创建挑战模板命令（管理员）
type CreateTemplateCommand struct {
	Name                string
	Tier                string
	InitialBalance      decimal.Decimal
	MaxDailyLossPercent decimal.Decimal
	MaxDrawdownPercent  decimal.Decimal
	ProfitTargetPercent decimal.Decimal
	Price               decimal.Decimal
}

// ChallengeCommandService 处理挑战账户相关的写操作。
// 所有涉及单账户资金/状态的变更都在仓储的行级锁内完成，
// 评估器看到的永远是本次变更提交后的快照。
type ChallengeCommandService struct {
	accounts  domain.AccountRepository
	trades    domain.TradeRepository
	templates domain.TemplateRepository
	oracle    domain.PriceOracle
	evaluator *domain.RiskEvaluator
	publisher domain.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewChallengeCommandService(
	accounts domain.AccountRepository,
	trades domain.TradeRepository,
	templates domain.TemplateRepository,
	oracle domain.PriceOracle,
	evaluator *domain.RiskEvaluator,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *ChallengeCommandService {
	return &ChallengeCommandService{
		accounts:  accounts,
		trades:    trades,
		templates: templates,
		oracle:    oracle,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// conflictRetry 包装单账户写操作：并发写冲突（死锁/锁等待超时）做有限重试，
// 业务错误一律直接返回。
func (s *ChallengeCommandService) conflictRetry(ctx context.Context, fn func() error) error {
	return retry.If(ctx, fn, func(err error) bool {
		return errors.Is(err, domain.ErrPersistenceConflict)
	}, retry.Config{
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		Multiplier:     2,
		MaxRetries:     3,
	})
}

// CreateAccount 从模板派生新的挑战账户。
// 模板不存在或已下架时返回 ErrTemplateNotFound。
func (s *ChallengeCommandService) CreateAccount(ctx context.Context, cmd CreateAccountCommand) (*AccountDTO, error) {
	tpl, err := s.templates.Get(ctx, cmd.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil || !tpl.IsActive {
		return nil, domain.ErrTemplateNotFound
	}

	now := s.now()
	account := domain.NewChallengeAccount(fmt.Sprintf("CHA-%d", idgen.GenID()), cmd.UserID, tpl, now)

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishInTx(ctx, contextx.GetTx(ctx), domain.TopicAccountCreated, account.AccountID, domain.AccountCreatedEvent{
		AccountID:      account.AccountID,
		UserID:         account.UserID,
		TemplateID:     account.TemplateID,
		InitialBalance: account.InitialBalance.String(),
		OccurredOn:     now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account created event", "account_id", account.AccountID, "error", err)
	}

	return toAccountDTO(account), nil
}

// OpenTrade 开仓：校验数量与价格，冻结名义金额，落库交易，随后立刻重跑风控。
// 行情获取在锁外完成，锁内不做任何远程 I/O。
func (s *ChallengeCommandService) OpenTrade(ctx context.Context, cmd OpenTradeCommand) (*TradeDTO, *AccountDTO, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, nil, domain.ErrInvalidQuantity
	}

	accountID := cmd.AccountID
	if accountID == "" {
		acc, err := s.accounts.GetActiveByUser(ctx, cmd.UserID)
		if err != nil {
			return nil, nil, err
		}
		if acc == nil {
			return nil, nil, domain.ErrAccountNotFound
		}
		accountID = acc.AccountID
	}

	quote, err := s.oracle.GetPrice(ctx, cmd.Symbol)
	if err != nil {
		return nil, nil, err
	}

	var (
		trade    *domain.Trade
		snapshot *AccountDTO
	)
	err = s.conflictRetry(ctx, func() error {
		return s.accounts.UpdateWithLock(ctx, accountID, func(txCtx context.Context, account *domain.ChallengeAccount) error {
			if cmd.UserID != "" && account.UserID != cmd.UserID {
				return domain.ErrAccountNotFound
			}
			if account.Status != domain.AccountStatusActive {
				return domain.ErrAccountNotActive
			}

			now := s.now()
			trade = domain.NewTrade(
				fmt.Sprintf("TRD-%d", idgen.GenID()),
				account.AccountID, account.UserID, cmd.Symbol,
				cmd.Quantity, quote.Price, cmd.StopLoss, cmd.TakeProfit, now,
			)

			if err := account.Reserve(trade.Notional(), now); err != nil {
				return err
			}
			if err := s.trades.Save(txCtx, trade); err != nil {
				return err
			}

			if err := s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.TopicTradeOpened, trade.TradeID, domain.TradeOpenedEvent{
				TradeID:    trade.TradeID,
				AccountID:  account.AccountID,
				UserID:     account.UserID,
				Symbol:     trade.Symbol,
				Quantity:   trade.Quantity.String(),
				EntryPrice: trade.EntryPrice.String(),
				OccurredOn: now,
			}); err != nil {
				return err
			}

			if err := s.applyVerdictLocked(txCtx, account); err != nil {
				return err
			}
			snapshot = toAccountDTO(account)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	return toTradeDTO(trade), snapshot, nil
}

// CloseTrade 平仓：按当前行情结算盈亏并释放冻结金额，随后立刻重跑风控。
// 所属账户已进入终态时严格拒绝（挑战结束即冻结所有未平仓交易）。
func (s *ChallengeCommandService) CloseTrade(ctx context.Context, cmd CloseTradeCommand) (*TradeDTO, *AccountDTO, error) {
	existing, err := s.trades.Get(ctx, cmd.TradeID)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		return nil, nil, domain.ErrTradeNotFound
	}
	if cmd.UserID != "" && existing.UserID != cmd.UserID {
		return nil, nil, domain.ErrTradeNotFound
	}
	if existing.Status != domain.TradeStatusOpen {
		return nil, nil, domain.ErrTradeAlreadyClosed
	}

	quote, err := s.oracle.GetPrice(ctx, existing.Symbol)
	if err != nil {
		return nil, nil, err
	}

	var (
		trade    *domain.Trade
		snapshot *AccountDTO
	)
	err = s.conflictRetry(ctx, func() error {
		return s.accounts.UpdateWithLock(ctx, existing.AccountID, func(txCtx context.Context, account *domain.ChallengeAccount) error {
			if account.Status != domain.AccountStatusActive {
				return domain.ErrAccountNotActive
			}

			// 锁内重读，防止与并发平仓竞争。
			var err error
			trade, err = s.trades.Get(txCtx, cmd.TradeID)
			if err != nil {
				return err
			}
			if trade == nil {
				return domain.ErrTradeNotFound
			}

			now := s.now()
			notional := trade.Notional()
			if err := trade.Close(quote.Price, now); err != nil {
				return err
			}
			if err := s.trades.Save(txCtx, trade); err != nil {
				return err
			}
			if err := account.Release(notional, trade.Pnl, now); err != nil {
				return err
			}

			if err := s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.TopicTradeClosed, trade.TradeID, domain.TradeClosedEvent{
				TradeID:    trade.TradeID,
				AccountID:  account.AccountID,
				UserID:     account.UserID,
				Symbol:     trade.Symbol,
				ExitPrice:  trade.ExitPrice.String(),
				Pnl:        trade.Pnl.String(),
				OccurredOn: now,
			}); err != nil {
				return err
			}

			if err := s.applyVerdictLocked(txCtx, account); err != nil {
				return err
			}
			snapshot = toAccountDTO(account)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	return toTradeDTO(trade), snapshot, nil
}

// Transition 将评估裁决落实为状态迁移。幂等：已终态账户不做任何修改。
func (s *ChallengeCommandService) Transition(ctx context.Context, accountID string, verdict domain.Verdict) error {
	if verdict.Status == domain.AccountStatusActive {
		return nil
	}
	return s.conflictRetry(ctx, func() error {
		return s.accounts.UpdateWithLock(ctx, accountID, func(txCtx context.Context, account *domain.ChallengeAccount) error {
			if !account.MarkCompleted(verdict.Status, s.now()) {
				return nil
			}
			return s.publishCompleted(txCtx, account, verdict.Reason)
		})
	})
}

// Sweep 周期扫描对单账户执行的完整步骤：先日切，再评估，必要时迁移状态。
// 终态账户直接跳过。
func (s *ChallengeCommandService) Sweep(ctx context.Context, accountID string) error {
	return s.conflictRetry(ctx, func() error {
		return s.accounts.UpdateWithLock(ctx, accountID, func(txCtx context.Context, account *domain.ChallengeAccount) error {
			if account.IsTerminal() {
				return nil
			}
			account.RollOver(s.now())
			return s.applyVerdictLocked(txCtx, account)
		})
	})
}

// AdminOverride 管理员强制迁移，绕过风控评估与终态保护。
// 这是显式的人工修正入口，调用边界必须做角色鉴权。
func (s *ChallengeCommandService) AdminOverride(ctx context.Context, accountID string, status domain.AccountStatus, reason string) (*AccountDTO, error) {
	var snapshot *AccountDTO
	err := s.conflictRetry(ctx, func() error {
		return s.accounts.UpdateWithLock(ctx, accountID, func(txCtx context.Context, account *domain.ChallengeAccount) error {
			account.ForceStatus(status, s.now())
			s.logger.WarnContext(txCtx, "challenge status overridden by admin",
				"account_id", account.AccountID, "status", status, "reason", reason)
			if account.IsTerminal() {
				if err := s.publishCompleted(txCtx, account, reason); err != nil {
					return err
				}
			}
			snapshot = toAccountDTO(account)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// CreateTemplate 创建挑战模板（管理员）
func (s *ChallengeCommandService) CreateTemplate(ctx context.Context, cmd CreateTemplateCommand) (*TemplateDTO, error) {
	tpl := &domain.ChallengeTemplate{
		TemplateID:          fmt.Sprintf("TPL-%d", idgen.GenID()),
		Name:                cmd.Name,
		Tier:                cmd.Tier,
		InitialBalance:      cmd.InitialBalance,
		MaxDailyLossPercent: cmd.MaxDailyLossPercent,
		MaxDrawdownPercent:  cmd.MaxDrawdownPercent,
		ProfitTargetPercent: cmd.ProfitTargetPercent,
		Price:               cmd.Price,
		IsActive:            true,
	}
	if err := s.templates.Save(ctx, tpl); err != nil {
		return nil, err
	}
	return toTemplateDTO(tpl), nil
}

// DeactivateTemplate 下架模板：已有账户不受影响，仅阻止派生新账户。
func (s *ChallengeCommandService) DeactivateTemplate(ctx context.Context, templateID string) error {
	tpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return err
	}
	if tpl == nil {
		return domain.ErrTemplateNotFound
	}
	tpl.IsActive = false
	return s.templates.Save(ctx, tpl)
}

// applyVerdictLocked 在持锁状态下评估账户并落实迁移。
// 评估器观察到的必然是本次变更后的最新快照。
func (s *ChallengeCommandService) applyVerdictLocked(txCtx context.Context, account *domain.ChallengeAccount) error {
	verdict := s.evaluator.Evaluate(account)
	if verdict.Status == domain.AccountStatusActive {
		return nil
	}
	if !account.MarkCompleted(verdict.Status, s.now()) {
		return nil
	}
	s.logger.InfoContext(txCtx, "challenge completed",
		"account_id", account.AccountID, "status", verdict.Status, "reason", verdict.Reason)
	return s.publishCompleted(txCtx, account, verdict.Reason)
}

func (s *ChallengeCommandService) publishCompleted(txCtx context.Context, account *domain.ChallengeAccount, reason string) error {
	return s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.TopicChallengeCompleted, account.AccountID, domain.ChallengeCompletedEvent{
		AccountID:  account.AccountID,
		UserID:     account.UserID,
		Status:     string(account.Status),
		Reason:     reason,
		Equity:     account.Equity.String(),
		OccurredOn: s.now(),
	})
}
