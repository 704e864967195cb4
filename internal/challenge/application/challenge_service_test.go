package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/propfirm/internal/challenge/domain"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ---- 内存仓储与桩 ----

type memAccountRepo struct {
	mu        sync.Mutex
	accounts  map[string]*domain.ChallengeAccount
	conflicts int              // 前 N 次 UpdateWithLock 注入写冲突
	updateErr map[string]error // 指定账户的 UpdateWithLock 恒定失败
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: map[string]*domain.ChallengeAccount{}}
}

func cloneAccount(a *domain.ChallengeAccount) *domain.ChallengeAccount {
	cp := *a
	if a.CompletedAt != nil {
		at := *a.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func (r *memAccountRepo) Save(_ context.Context, account *domain.ChallengeAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.AccountID] = cloneAccount(account)
	return nil
}

func (r *memAccountRepo) Get(_ context.Context, accountID string) (*domain.ChallengeAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[accountID]; ok {
		return cloneAccount(a), nil
	}
	return nil, nil
}

func (r *memAccountRepo) GetActiveByUser(_ context.Context, userID string) (*domain.ChallengeAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.Status == domain.AccountStatusActive {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) ListByUser(_ context.Context, userID string) ([]*domain.ChallengeAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ChallengeAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (r *memAccountRepo) ListActiveIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, a := range r.accounts {
		if a.Status == domain.AccountStatusActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// UpdateWithLock 以复制-提交的方式模拟事务：fn 返回错误时丢弃副本。
func (r *memAccountRepo) UpdateWithLock(ctx context.Context, accountID string, fn func(txCtx context.Context, account *domain.ChallengeAccount) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.updateErr[accountID]; ok {
		return err
	}
	if r.conflicts > 0 {
		r.conflicts--
		return fmt.Errorf("mem repo: %w", domain.ErrPersistenceConflict)
	}
	stored, ok := r.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	work := cloneAccount(stored)
	if err := fn(ctx, work); err != nil {
		return err
	}
	r.accounts[accountID] = work
	return nil
}

type memTradeRepo struct {
	mu     sync.Mutex
	trades map[string]*domain.Trade
}

func newMemTradeRepo() *memTradeRepo {
	return &memTradeRepo{trades: map[string]*domain.Trade{}}
}

func cloneTrade(t *domain.Trade) *domain.Trade {
	cp := *t
	if t.ClosedAt != nil {
		at := *t.ClosedAt
		cp.ClosedAt = &at
	}
	return &cp
}

func (r *memTradeRepo) Save(_ context.Context, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades[trade.TradeID] = cloneTrade(trade)
	return nil
}

func (r *memTradeRepo) Get(_ context.Context, tradeID string) (*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trades[tradeID]; ok {
		return cloneTrade(t), nil
	}
	return nil, nil
}

func (r *memTradeRepo) List(_ context.Context, filter domain.TradeFilter) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Trade
	for _, t := range r.trades {
		if filter.AccountID != "" && t.AccountID != filter.AccountID {
			continue
		}
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Symbol != "" && t.Symbol != filter.Symbol {
			continue
		}
		out = append(out, cloneTrade(t))
	}
	return out, nil
}

type memTemplateRepo struct {
	mu        sync.Mutex
	templates map[string]*domain.ChallengeTemplate
}

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{templates: map[string]*domain.ChallengeTemplate{}}
}

func (r *memTemplateRepo) Save(_ context.Context, tpl *domain.ChallengeTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tpl
	r.templates[tpl.TemplateID] = &cp
	return nil
}

func (r *memTemplateRepo) Get(_ context.Context, templateID string) (*domain.ChallengeTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.templates[templateID]; ok {
		cp := *tpl
		return &cp, nil
	}
	return nil, nil
}

func (r *memTemplateRepo) List(_ context.Context, onlyActive bool) ([]*domain.ChallengeTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ChallengeTemplate
	for _, tpl := range r.templates {
		if onlyActive && !tpl.IsActive {
			continue
		}
		cp := *tpl
		out = append(out, &cp)
	}
	return out, nil
}

type fakeOracle struct {
	mu         sync.Mutex
	prices     map[string]decimal.Decimal
	refreshErr error
	refreshed  int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{prices: map[string]decimal.Decimal{}}
}

func (o *fakeOracle) setPrice(symbol string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = price
}

func (o *fakeOracle) GetPrice(_ context.Context, symbol string) (*domain.PriceQuote, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	price, ok := o.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrPriceUnavailable)
	}
	return &domain.PriceQuote{Symbol: symbol, Price: price, AsOf: time.Now()}, nil
}

func (o *fakeOracle) RefreshAll(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshed++
	return o.refreshErr
}

type publishedEvent struct {
	Topic string
	Key   string
	Event any
}

type recordPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordPublisher) PublishInTx(_ context.Context, _ any, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *recordPublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// ---- 测试装配 ----

type testEnv struct {
	accounts  *memAccountRepo
	trades    *memTradeRepo
	templates *memTemplateRepo
	oracle    *fakeOracle
	publisher *recordPublisher
	commands  *ChallengeCommandService
	queries   *ChallengeQueryService
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts:  newMemAccountRepo(),
		trades:    newMemTradeRepo(),
		templates: newMemTemplateRepo(),
		oracle:    newFakeOracle(),
		publisher: &recordPublisher{},
		now:       time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evaluator := domain.NewRiskEvaluator()
	env.commands = NewChallengeCommandService(env.accounts, env.trades, env.templates, env.oracle, evaluator, env.publisher, logger)
	env.commands.now = func() time.Time { return env.now }
	env.queries = NewChallengeQueryService(env.accounts, env.trades, env.templates, evaluator)

	require.NoError(t, env.templates.Save(context.Background(), &domain.ChallengeTemplate{
		TemplateID:          "TPL-1",
		Name:                "Starter 5K",
		Tier:                "starter",
		InitialBalance:      d("5000"),
		MaxDailyLossPercent: d("5"),
		MaxDrawdownPercent:  d("10"),
		ProfitTargetPercent: d("10"),
		Price:               d("499"),
		IsActive:            true,
	}))
	return env
}

func (env *testEnv) createAccount(t *testing.T, userID string) *AccountDTO {
	t.Helper()
	acc, err := env.commands.CreateAccount(context.Background(), CreateAccountCommand{UserID: userID, TemplateID: "TPL-1"})
	require.NoError(t, err)
	return acc
}

// ---- 命令服务 ----

func TestCreateAccountFromTemplate(t *testing.T) {
	env := newTestEnv(t)

	acc := env.createAccount(t, "USR-1")

	assert.Equal(t, string(domain.AccountStatusActive), acc.Status)
	assert.Equal(t, "5000", acc.Equity)
	assert.Equal(t, "250", acc.DailyLossLimit)
	assert.Equal(t, "500", acc.MaxDrawdownLimit)
	assert.Equal(t, "500", acc.ProfitTarget)
	assert.Equal(t, "2026-03-10", acc.CurrentDay)

	created := env.publisher.byTopic(domain.TopicAccountCreated)
	require.Len(t, created, 1)
	assert.Equal(t, acc.AccountID, created[0].Key)
}

func TestCreateAccountInactiveTemplate(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.commands.DeactivateTemplate(context.Background(), "TPL-1"))

	_, err := env.commands.CreateAccount(context.Background(), CreateAccountCommand{UserID: "USR-1", TemplateID: "TPL-1"})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestOpenTradeReservesNotional(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))

	trade, snapshot, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("3"),
	})
	require.NoError(t, err)

	assert.Equal(t, acc.AccountID, trade.AccountID)
	assert.Equal(t, "100", trade.EntryPrice)
	assert.Equal(t, string(domain.TradeStatusOpen), trade.Status)
	assert.Equal(t, "4700", snapshot.Equity)
	assert.Equal(t, string(domain.AccountStatusActive), snapshot.Status)
	assert.Equal(t, "0", snapshot.DailyLoss, "reserve is not a loss")

	opened := env.publisher.byTopic(domain.TopicTradeOpened)
	require.Len(t, opened, 1)
}

func TestOpenTradeRejectsInvalidQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))

	_, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("0"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestOpenTradePriceUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "USR-1")

	_, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "UNLISTED", Quantity: d("1"),
	})
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestOpenTradeInsufficientEquity(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))

	_, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("51"), // 名义 5100 > 权益 5000
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// 失败的开仓不留痕：权益不变，交易未落库。
	stored, err := env.accounts.Get(context.Background(), acc.AccountID)
	require.NoError(t, err)
	assert.True(t, stored.Equity.Equal(d("5000")))
	trades, err := env.trades.List(context.Background(), domain.TradeFilter{AccountID: acc.AccountID})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestCloseTradeRoundTripFlat(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))

	trade, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("3"),
	})
	require.NoError(t, err)

	closed, snapshot, err := env.commands.CloseTrade(context.Background(), CloseTradeCommand{UserID: "USR-1", TradeID: trade.TradeID})
	require.NoError(t, err)

	assert.Equal(t, "0", closed.Pnl)
	assert.Equal(t, "5000", snapshot.Equity)
	assert.Equal(t, "0", snapshot.DailyLoss)
	assert.Equal(t, string(domain.AccountStatusActive), snapshot.Status)
	_ = acc
}

func TestCloseTradeLossBreachesDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("75"))

	trade, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("4"),
	})
	require.NoError(t, err)

	// (10-75)*4 = -260，超过 250 的日亏上限。
	env.oracle.setPrice("AAPL", d("10"))
	closed, snapshot, err := env.commands.CloseTrade(context.Background(), CloseTradeCommand{UserID: "USR-1", TradeID: trade.TradeID})
	require.NoError(t, err)

	assert.Equal(t, "-260", closed.Pnl)
	assert.Equal(t, "4740", snapshot.Equity)
	assert.Equal(t, "260", snapshot.DailyLoss)
	assert.Equal(t, string(domain.AccountStatusFailed), snapshot.Status)
	require.NotNil(t, snapshot.CompletedAt)

	completed := env.publisher.byTopic(domain.TopicChallengeCompleted)
	require.Len(t, completed, 1)
	evt, ok := completed[0].Event.(domain.ChallengeCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonDailyLossLimit, evt.Reason)
}

func TestCloseTradeProfitHitsTarget(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("75"))

	trade, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("4"),
	})
	require.NoError(t, err)

	// (205-75)*4 = +520，权益 5520 达到 5500 的目标。
	env.oracle.setPrice("AAPL", d("205"))
	_, snapshot, err := env.commands.CloseTrade(context.Background(), CloseTradeCommand{UserID: "USR-1", TradeID: trade.TradeID})
	require.NoError(t, err)

	assert.Equal(t, "5520", snapshot.Equity)
	assert.Equal(t, string(domain.AccountStatusPassed), snapshot.Status)

	completed := env.publisher.byTopic(domain.TopicChallengeCompleted)
	require.Len(t, completed, 1)
	evt := completed[0].Event.(domain.ChallengeCompletedEvent)
	assert.Equal(t, domain.ReasonProfitTarget, evt.Reason)
}

func TestCloseTradeOnTerminalAccountRejected(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))

	trade, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("2"),
	})
	require.NoError(t, err)

	_, err = env.commands.AdminOverride(context.Background(), acc.AccountID, domain.AccountStatusFailed, "manual review")
	require.NoError(t, err)

	_, _, err = env.commands.CloseTrade(context.Background(), CloseTradeCommand{UserID: "USR-1", TradeID: trade.TradeID})
	assert.ErrorIs(t, err, domain.ErrAccountNotActive)

	// 交易保持挂起，等待人工处置。
	stored, err := env.trades.Get(context.Background(), trade.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusOpen, stored.Status)
}

func TestCloseTradeTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))

	trade, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("2"),
	})
	require.NoError(t, err)

	_, _, err = env.commands.CloseTrade(context.Background(), CloseTradeCommand{UserID: "USR-1", TradeID: trade.TradeID})
	require.NoError(t, err)

	_, _, err = env.commands.CloseTrade(context.Background(), CloseTradeCommand{UserID: "USR-1", TradeID: trade.TradeID})
	assert.ErrorIs(t, err, domain.ErrTradeAlreadyClosed)
}

func TestOpenTradeRetriesOnConflict(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))
	env.accounts.conflicts = 2

	_, snapshot, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("3"),
	})
	require.NoError(t, err)
	assert.Equal(t, "4700", snapshot.Equity)
	assert.Zero(t, env.accounts.conflicts)

	// 冲突重试不会重复发布事件。
	assert.Len(t, env.publisher.byTopic(domain.TopicTradeOpened), 1)
}

func TestAdminOverrideReopensTerminalAccount(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")

	failed, err := env.commands.AdminOverride(context.Background(), acc.AccountID, domain.AccountStatusFailed, "rule violation")
	require.NoError(t, err)
	assert.Equal(t, string(domain.AccountStatusFailed), failed.Status)
	require.NotNil(t, failed.CompletedAt)

	reopened, err := env.commands.AdminOverride(context.Background(), acc.AccountID, domain.AccountStatusActive, "appeal accepted")
	require.NoError(t, err)
	assert.Equal(t, string(domain.AccountStatusActive), reopened.Status)
	assert.Nil(t, reopened.CompletedAt)
}

// ---- 查询服务 ----

func TestQueryRiskMetrics(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))

	trade, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{
		UserID: "USR-1", Symbol: "AAPL", Quantity: d("2"),
	})
	require.NoError(t, err)
	env.oracle.setPrice("AAPL", d("50"))
	_, _, err = env.commands.CloseTrade(context.Background(), CloseTradeCommand{UserID: "USR-1", TradeID: trade.TradeID})
	require.NoError(t, err)

	metrics, err := env.queries.RiskMetrics(context.Background(), acc.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "-100", metrics.Profit)
	assert.Equal(t, "100", metrics.DailyLoss)
	assert.Equal(t, "150", metrics.RemainingDailyLoss)
	assert.Equal(t, "100", metrics.Drawdown)
}

func TestQueryNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.queries.GetAccount(context.Background(), "CHA-missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = env.queries.GetActiveAccount(context.Background(), "USR-nobody")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = env.queries.GetTrade(context.Background(), "TRD-missing")
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
}

func TestQueryListTrades(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")
	env.oracle.setPrice("AAPL", d("100"))
	env.oracle.setPrice("TSLA", d("200"))

	_, _, err := env.commands.OpenTrade(context.Background(), OpenTradeCommand{UserID: "USR-1", Symbol: "AAPL", Quantity: d("1")})
	require.NoError(t, err)
	_, _, err = env.commands.OpenTrade(context.Background(), OpenTradeCommand{UserID: "USR-1", Symbol: "TSLA", Quantity: d("1")})
	require.NoError(t, err)

	all, err := env.queries.ListTrades(context.Background(), domain.TradeFilter{AccountID: acc.AccountID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tsla, err := env.queries.ListTrades(context.Background(), domain.TradeFilter{AccountID: acc.AccountID, Symbol: "TSLA"})
	require.NoError(t, err)
	require.Len(t, tsla, 1)
	assert.Equal(t, "TSLA", tsla[0].Symbol)
}

// ---- 周期扫描 ----

func newTestSweeper(env *testEnv) *EvaluationSweeper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvaluationSweeper(env.accounts, env.commands, env.oracle, logger)
}

func TestSweeperRollsOverStaleDailyLoss(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")

	// 人为构造昨日遗留的日亏计数：240 接近上限但未触发。
	require.NoError(t, env.accounts.UpdateWithLock(context.Background(), acc.AccountID, func(_ context.Context, a *domain.ChallengeAccount) error {
		a.DailyLoss = d("240")
		a.CurrentDay = env.now.AddDate(0, 0, -1)
		return nil
	}))

	sweeper := newTestSweeper(env)
	require.NoError(t, sweeper.RunCycle(context.Background()))

	stored, err := env.accounts.Get(context.Background(), acc.AccountID)
	require.NoError(t, err)
	assert.True(t, stored.DailyLoss.IsZero(), "stale counter reset on day boundary, got %s", stored.DailyLoss)
	assert.Equal(t, domain.AccountStatusActive, stored.Status)
	assert.Equal(t, 1, env.oracle.refreshed)
}

func TestSweeperFailsBreachedAccount(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")

	// 当日已亏 260，扫描应将账户判负。
	require.NoError(t, env.accounts.UpdateWithLock(context.Background(), acc.AccountID, func(_ context.Context, a *domain.ChallengeAccount) error {
		a.DailyLoss = d("260")
		return nil
	}))

	sweeper := newTestSweeper(env)
	require.NoError(t, sweeper.RunCycle(context.Background()))

	stored, err := env.accounts.Get(context.Background(), acc.AccountID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusFailed, stored.Status)

	completed := env.publisher.byTopic(domain.TopicChallengeCompleted)
	require.Len(t, completed, 1)
	evt := completed[0].Event.(domain.ChallengeCompletedEvent)
	assert.Equal(t, domain.ReasonDailyLossLimit, evt.Reason)
}

func TestSweeperIsolatesPerAccountFailures(t *testing.T) {
	env := newTestEnv(t)
	bad := env.createAccount(t, "USR-1")
	good := env.createAccount(t, "USR-2")

	require.NoError(t, env.accounts.UpdateWithLock(context.Background(), good.AccountID, func(_ context.Context, a *domain.ChallengeAccount) error {
		a.DailyLoss = d("300")
		return nil
	}))
	env.accounts.updateErr = map[string]error{bad.AccountID: fmt.Errorf("boom")}

	sweeper := newTestSweeper(env)
	require.NoError(t, sweeper.RunCycle(context.Background()), "one broken account must not abort the cycle")

	stored, err := env.accounts.Get(context.Background(), good.AccountID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusFailed, stored.Status)
}

func TestSweeperContinuesWhenRefreshFails(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "USR-1")
	env.oracle.refreshErr = fmt.Errorf("feed down")

	require.NoError(t, env.accounts.UpdateWithLock(context.Background(), acc.AccountID, func(_ context.Context, a *domain.ChallengeAccount) error {
		a.DailyLoss = d("260")
		return nil
	}))

	sweeper := newTestSweeper(env)
	require.NoError(t, sweeper.RunCycle(context.Background()))

	stored, err := env.accounts.Get(context.Background(), acc.AccountID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusFailed, stored.Status, "evaluation proceeds on stale quotes")
}
