package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/pkg/scheduler"
	"github.com/wyfcoding/propfirm/internal/challenge/domain"
)

// EvaluationSweeper 周期性风控扫描器：刷新行情后逐一评估所有进行中的账户。
// 单账户失败只记录日志，不中断整轮扫描。
type EvaluationSweeper struct {
	accounts domain.AccountRepository
	commands *ChallengeCommandService
	oracle   domain.PriceOracle
	logger   *slog.Logger
}

func NewEvaluationSweeper(
	accounts domain.AccountRepository,
	commands *ChallengeCommandService,
	oracle domain.PriceOracle,
	logger *slog.Logger,
) *EvaluationSweeper {
	return &EvaluationSweeper{
		accounts: accounts,
		commands: commands,
		oracle:   oracle,
		logger:   logger,
	}
}

// RunCycle 执行一轮完整扫描。行情刷新失败时继续用上一次的快照评估。
func (s *EvaluationSweeper) RunCycle(ctx context.Context) error {
	if err := s.oracle.RefreshAll(ctx); err != nil {
		s.logger.WarnContext(ctx, "market data refresh failed, evaluating with stale quotes", "error", err)
	}

	ids, err := s.accounts.ListActiveIDs(ctx)
	if err != nil {
		return err
	}

	for _, accountID := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.commands.Sweep(ctx, accountID); err != nil {
			s.logger.ErrorContext(ctx, "account sweep failed", "account_id", accountID, "error", err)
		}
	}
	return nil
}

// Register 将扫描任务挂载到调度器。
func (s *EvaluationSweeper) Register(sched *scheduler.Scheduler, interval time.Duration) error {
	return sched.AddJob(scheduler.JobConfig{
		Name:       "challenge.risk_sweep",
		Interval:   interval,
		Timeout:    interval,
		RunOnStart: true,
		Enabled:    true,
	}, s.RunCycle)
}
