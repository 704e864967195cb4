package application

import (
	"context"

	"github.com/wyfcoding/propfirm/internal/challenge/domain"
)

// ChallengeQueryService 处理挑战账户相关的只读查询。
type ChallengeQueryService struct {
	accounts  domain.AccountRepository
	trades    domain.TradeRepository
	templates domain.TemplateRepository
	evaluator *domain.RiskEvaluator
}

func NewChallengeQueryService(
	accounts domain.AccountRepository,
	trades domain.TradeRepository,
	templates domain.TemplateRepository,
	evaluator *domain.RiskEvaluator,
) *ChallengeQueryService {
	return &ChallengeQueryService{
		accounts:  accounts,
		trades:    trades,
		templates: templates,
		evaluator: evaluator,
	}
}

// GetAccount 按账户 ID 查询
func (s *ChallengeQueryService) GetAccount(ctx context.Context, accountID string) (*AccountDTO, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return toAccountDTO(account), nil
}

// GetActiveAccount 查询用户当前进行中的挑战
func (s *ChallengeQueryService) GetActiveAccount(ctx context.Context, userID string) (*AccountDTO, error) {
	account, err := s.accounts.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return toAccountDTO(account), nil
}

// ListAccounts 查询用户的全部挑战历史
func (s *ChallengeQueryService) ListAccounts(ctx context.Context, userID string) ([]*AccountDTO, error) {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}
	return dtos, nil
}

// RiskMetrics 查询账户风险指标投影
func (s *ChallengeQueryService) RiskMetrics(ctx context.Context, accountID string) (*RiskMetricsDTO, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return toRiskMetricsDTO(s.evaluator.Metrics(account)), nil
}

// GetTrade 按交易 ID 查询
func (s *ChallengeQueryService) GetTrade(ctx context.Context, tradeID string) (*TradeDTO, error) {
	trade, err := s.trades.Get(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, domain.ErrTradeNotFound
	}
	return toTradeDTO(trade), nil
}

// ListTrades 按条件查询交易列表
func (s *ChallengeQueryService) ListTrades(ctx context.Context, filter domain.TradeFilter) ([]*TradeDTO, error) {
	trades, err := s.trades.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	dtos := make([]*TradeDTO, 0, len(trades))
	for _, t := range trades {
		dtos = append(dtos, toTradeDTO(t))
	}
	return dtos, nil
}

// ListTemplates 查询挑战模板列表
func (s *ChallengeQueryService) ListTemplates(ctx context.Context, onlyActive bool) ([]*TemplateDTO, error) {
	templates, err := s.templates.List(ctx, onlyActive)
	if err != nil {
		return nil, err
	}
	dtos := make([]*TemplateDTO, 0, len(templates))
	for _, tpl := range templates {
		dtos = append(dtos, toTemplateDTO(tpl))
	}
	return dtos, nil
}
