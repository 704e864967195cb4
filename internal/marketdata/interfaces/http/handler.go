// Package http 提供行情服务的 HTTP 接口层。
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"
	"github.com/wyfcoding/propfirm/internal/marketdata/application"
	"github.com/wyfcoding/propfirm/internal/marketdata/domain"
)

// MarketDataHandler 行情 HTTP 处理器
type MarketDataHandler struct {
	service *application.MarketDataService
}

// NewMarketDataHandler 创建行情 HTTP 处理器
func NewMarketDataHandler(service *application.MarketDataService) *MarketDataHandler {
	return &MarketDataHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *MarketDataHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/market")
	{
		api.GET("/quotes", h.ListQuotes)
		api.GET("/quotes/:symbol", h.GetQuote)
	}
}

// ListQuotes 列出全部跟踪标的的最新行情
func (h *MarketDataHandler) ListQuotes(c *gin.Context) {
	quotes, err := h.service.ListQuotes(c.Request.Context())
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	response.Success(c, quotes)
}

// GetQuote 查询单标的最新行情
func (h *MarketDataHandler) GetQuote(c *gin.Context) {
	quote, err := h.service.GetQuote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		if errors.Is(err, domain.ErrQuoteNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
			return
		}
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	response.Success(c, quote)
}
