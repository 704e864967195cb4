package domain

import "errors"

// 领域错误分类。除 ErrPersistenceConflict 外均为业务规则错误，
// 直接透传给调用方，不做内部重试。
var (
	// ErrTemplateNotFound 挑战模板不存在或已下架
	ErrTemplateNotFound = errors.New("challenge template not found")
	// ErrAccountNotFound 挑战账户不存在
	ErrAccountNotFound = errors.New("challenge account not found")
	// ErrAccountNotActive 挑战账户非 active 状态，禁止资金变动
	ErrAccountNotActive = errors.New("challenge account is not active")
	// ErrTradeNotFound 交易不存在
	ErrTradeNotFound = errors.New("trade not found")
	// ErrTradeAlreadyClosed 交易已平仓，不可重复平仓
	ErrTradeAlreadyClosed = errors.New("trade already closed")
	// ErrInsufficientFunds 可用权益不足以冻结开仓名义金额
	ErrInsufficientFunds = errors.New("insufficient equity")
	// ErrPriceUnavailable 行情源无法提供该符号的最新价格
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInvalidQuantity 交易数量必须为正数
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrPersistenceConflict 并发写冲突（死锁/锁等待超时），由应用层有限重试
	ErrPersistenceConflict = errors.New("persistence conflict")
)
