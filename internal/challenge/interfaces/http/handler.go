// Package http 提供挑战服务的 HTTP 接口层。
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
	"github.com/wyfcoding/propfirm/internal/challenge/application"
	"github.com/wyfcoding/propfirm/internal/challenge/domain"
)

// ChallengeHandler 挑战服务 HTTP 处理器
type ChallengeHandler struct {
	service *application.ChallengeService
}

// NewChallengeHandler 创建 HTTP 处理器
func NewChallengeHandler(service *application.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{service: service}
}

// RegisterRoutes 注册路由。admin 分组的调用边界必须先做角色鉴权。
func (h *ChallengeHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/challenge")
	{
		api.POST("/accounts", h.CreateAccount)
		api.GET("/accounts", h.ListAccounts)
		api.GET("/accounts/active", h.GetActiveAccount)
		api.GET("/accounts/:id", h.GetAccount)
		api.GET("/accounts/:id/metrics", h.GetRiskMetrics)

		api.POST("/trades/buy", h.OpenTrade)
		api.POST("/trades/sell", h.CloseTrade)
		api.GET("/trades", h.ListTrades)
		api.GET("/trades/:id", h.GetTrade)

		api.GET("/templates", h.ListTemplates)
	}

	admin := router.Group("/api/v1/challenge/admin")
	{
		admin.POST("/templates", h.CreateTemplate)
		admin.POST("/templates/:id/deactivate", h.DeactivateTemplate)
		admin.POST("/accounts/:id/status", h.OverrideStatus)
	}
}

// statusOf 将业务错误映射为 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrTemplateNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrTradeAlreadyClosed),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPersistenceConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CreateAccountRequest 开启挑战请求
type CreateAccountRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	TemplateID string `json:"template_id" binding:"required"`
}

// CreateAccount 开启挑战
func (h *ChallengeHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	account, err := h.service.Command.CreateAccount(c.Request.Context(), application.CreateAccountCommand{
		UserID:     req.UserID,
		TemplateID: req.TemplateID,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create challenge account", "user_id", req.UserID, "error", err)
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "challenge account created", account)
}

// GetAccount 查询账户详情
func (h *ChallengeHandler) GetAccount(c *gin.Context) {
	account, err := h.service.Query.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// GetActiveAccount 查询用户当前进行中的挑战
func (h *ChallengeHandler) GetActiveAccount(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "user_id is required", "")
		return
	}

	account, err := h.service.Query.GetActiveAccount(c.Request.Context(), userID)
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// ListAccounts 查询用户的挑战历史
func (h *ChallengeHandler) ListAccounts(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "user_id is required", "")
		return
	}

	accounts, err := h.service.Query.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, accounts)
}

// GetRiskMetrics 查询账户风险指标
func (h *ChallengeHandler) GetRiskMetrics(c *gin.Context) {
	metrics, err := h.service.Query.RiskMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, metrics)
}

// OpenTradeRequest 开仓请求
type OpenTradeRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	AccountID  string `json:"account_id"`
	Symbol     string `json:"symbol" binding:"required"`
	Quantity   string `json:"quantity" binding:"required"`
	StopLoss   string `json:"stop_loss"`
	TakeProfit string `json:"take_profit"`
}

// OpenTrade 开仓
func (h *ChallengeHandler) OpenTrade(c *gin.Context) {
	var req OpenTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid quantity", "")
		return
	}
	stopLoss, err := parseNullDecimal(req.StopLoss)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid stop_loss", "")
		return
	}
	takeProfit, err := parseNullDecimal(req.TakeProfit)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid take_profit", "")
		return
	}

	trade, account, err := h.service.Command.OpenTrade(c.Request.Context(), application.OpenTradeCommand{
		UserID:     req.UserID,
		AccountID:  req.AccountID,
		Symbol:     req.Symbol,
		Quantity:   quantity,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to open trade", "user_id", req.UserID, "symbol", req.Symbol, "error", err)
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"trade":   trade,
		"account": account,
	})
}

// CloseTradeRequest 平仓请求
type CloseTradeRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	TradeID string `json:"trade_id" binding:"required"`
}

// CloseTrade 平仓
func (h *ChallengeHandler) CloseTrade(c *gin.Context) {
	var req CloseTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	trade, account, err := h.service.Command.CloseTrade(c.Request.Context(), application.CloseTradeCommand{
		UserID:  req.UserID,
		TradeID: req.TradeID,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to close trade", "trade_id", req.TradeID, "error", err)
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trade":   trade,
		"account": account,
	})
}

// ListTrades 查询交易列表
func (h *ChallengeHandler) ListTrades(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = v
	}

	trades, err := h.service.Query.ListTrades(c.Request.Context(), domain.TradeFilter{
		AccountID: c.Query("account_id"),
		UserID:    c.Query("user_id"),
		Status:    domain.TradeStatus(c.Query("status")),
		Symbol:    c.Query("symbol"),
		Limit:     limit,
	})
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, trades)
}

// GetTrade 查询交易详情
func (h *ChallengeHandler) GetTrade(c *gin.Context) {
	trade, err := h.service.Query.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, trade)
}

// ListTemplates 查询挑战模板列表
func (h *ChallengeHandler) ListTemplates(c *gin.Context) {
	onlyActive := c.DefaultQuery("all", "false") != "true"
	templates, err := h.service.Query.ListTemplates(c.Request.Context(), onlyActive)
	if err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, templates)
}

// CreateTemplateRequest 创建模板请求（管理员）
type CreateTemplateRequest struct {
	Name                string `json:"name" binding:"required"`
	Tier                string `json:"tier" binding:"required"`
	InitialBalance      string `json:"initial_balance" binding:"required"`
	MaxDailyLossPercent string `json:"max_daily_loss_percent" binding:"required"`
	MaxDrawdownPercent  string `json:"max_drawdown_percent" binding:"required"`
	ProfitTargetPercent string `json:"profit_target_percent" binding:"required"`
	Price               string `json:"price" binding:"required"`
}

// CreateTemplate 创建挑战模板（管理员）
func (h *ChallengeHandler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	fields := map[string]string{
		"initial_balance":        req.InitialBalance,
		"max_daily_loss_percent": req.MaxDailyLossPercent,
		"max_drawdown_percent":   req.MaxDrawdownPercent,
		"profit_target_percent":  req.ProfitTargetPercent,
		"price":                  req.Price,
	}
	parsed := make(map[string]decimal.Decimal, len(fields))
	for name, raw := range fields {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid "+name, "")
			return
		}
		parsed[name] = v
	}

	tpl, err := h.service.Command.CreateTemplate(c.Request.Context(), application.CreateTemplateCommand{
		Name:                req.Name,
		Tier:                req.Tier,
		InitialBalance:      parsed["initial_balance"],
		MaxDailyLossPercent: parsed["max_daily_loss_percent"],
		MaxDrawdownPercent:  parsed["max_drawdown_percent"],
		ProfitTargetPercent: parsed["profit_target_percent"],
		Price:               parsed["price"],
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create challenge template", "name", req.Name, "error", err)
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "challenge template created", tpl)
}

// DeactivateTemplate 下架挑战模板（管理员）
func (h *ChallengeHandler) DeactivateTemplate(c *gin.Context) {
	if err := h.service.Command.DeactivateTemplate(c.Request.Context(), c.Param("id")); err != nil {
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, nil)
}

// OverrideStatusRequest 管理员强制迁移请求
type OverrideStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// OverrideStatus 管理员强制迁移账户状态
func (h *ChallengeHandler) OverrideStatus(c *gin.Context) {
	var req OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	status := domain.AccountStatus(req.Status)
	switch status {
	case domain.AccountStatusActive, domain.AccountStatusPassed, domain.AccountStatusFailed:
	default:
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid status", "")
		return
	}

	account, err := h.service.Command.AdminOverride(c.Request.Context(), c.Param("id"), status, req.Reason)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to override account status", "account_id", c.Param("id"), "error", err)
		response.ErrorWithStatus(c, statusOf(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

func parseNullDecimal(raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: v, Valid: true}, nil
}
