package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"prescient/internal/models"
	"prescient/internal/repository"
	"prescient/internal/service"
)

type TradingHandler struct {
	Repo     repository.Repository
	Executor *service.SignalExecutor
	Logger   *zap.Logger
}

func (h *TradingHandler) Register(r *gin.Engine) {
	trading := r.Group("/api/v1/trading")
	trading.POST("/execute-signals", h.executeSignals)

	signals := r.Group("/api/v1/signals")
	signals.POST("", h.createSignal)
	signals.GET("", h.listSignals)

	trades := r.Group("/api/v1/trades")
	trades.GET("", h.listTrades)

	positions := r.Group("/api/v1/positions")
	positions.GET("", h.listPositions)
	positions.POST("/:trade_id/close", h.closePosition)
}

// @Summary Execute pending signals for one or all active portfolios
// @Tags trading
// @Param portfolio_id query int false "limit execution to this portfolio"
// @Success 200 {object} apiResponse
// @Router /api/v1/trading/execute-signals [post]
func (h *TradingHandler) executeSignals(c *gin.Context) {
	if h.Executor == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	portfolioID := uint64QueryPtr(c, "portfolio_id")
	results, err := h.Executor.ExecuteSignals(c.Request.Context(), portfolioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "portfolio not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, results, nil)
}

type createSignalRequest struct {
	PortfolioID uint64     `json:"portfolio_id" binding:"required"`
	MarketID    string     `json:"market_id" binding:"required"`
	Action      string     `json:"action" binding:"required"`
	TargetPrice string     `json:"target_price" binding:"required"`
	Amount      string     `json:"amount" binding:"required"`
	Confidence  float64    `json:"confidence"`
	Reason      string     `json:"reason"`
	Timestamp   *time.Time `json:"timestamp"`
}

// @Summary Ingest a trading signal
// @Tags trading
// @Success 200 {object} apiResponse
// @Router /api/v1/signals [post]
func (h *TradingHandler) createSignal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.Action != models.ActionBuyYes && req.Action != models.ActionBuyNo {
		Error(c, http.StatusBadRequest, "action must be buy_yes or buy_no", nil)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.TargetPrice))
	if err != nil || price.IsNegative() || price.GreaterThan(decimal.NewFromInt(1)) {
		Error(c, http.StatusBadRequest, "target_price must be between 0 and 1", nil)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		Error(c, http.StatusBadRequest, "amount must be a positive number", nil)
		return
	}
	if _, err := h.Repo.GetPortfolioByID(c.Request.Context(), req.PortfolioID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "portfolio not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	item := &models.TradingSignal{
		PortfolioID: req.PortfolioID,
		MarketID:    strings.TrimSpace(req.MarketID),
		Action:      req.Action,
		TargetPrice: price,
		Amount:      amount,
		Confidence:  req.Confidence,
		Reason:      req.Reason,
		Timestamp:   ts,
	}
	if err := h.Repo.InsertSignal(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List signals
// @Tags trading
// @Param portfolio_id query int false "portfolio id"
// @Param executed query bool false "filter on execution state"
// @Success 200 {object} apiResponse
// @Router /api/v1/signals [get]
func (h *TradingHandler) listSignals(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListSignals(c.Request.Context(), repository.ListSignalsParams{
		Limit:       limit,
		Offset:      offset,
		PortfolioID: uint64QueryPtr(c, "portfolio_id"),
		Executed:    boolQueryPtr(c, "executed"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

// @Summary List trades
// @Tags trading
// @Param portfolio_id query int false "portfolio id"
// @Param status query string false "open|closed"
// @Success 200 {object} apiResponse
// @Router /api/v1/trades [get]
func (h *TradingHandler) listTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListTrades(c.Request.Context(), repository.ListTradesParams{
		Limit:       limit,
		Offset:      offset,
		PortfolioID: uint64QueryPtr(c, "portfolio_id"),
		Status:      strQueryPtr(c, "status"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

// @Summary List positions
// @Tags trading
// @Param portfolio_id query int false "portfolio id"
// @Param status query string false "open|closed"
// @Param market_id query string false "market id"
// @Success 200 {object} apiResponse
// @Router /api/v1/positions [get]
func (h *TradingHandler) listPositions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListPositions(c.Request.Context(), repository.ListPositionsParams{
		Limit:       limit,
		Offset:      offset,
		PortfolioID: uint64QueryPtr(c, "portfolio_id"),
		Status:      strQueryPtr(c, "status"),
		MarketID:    strQueryPtr(c, "market_id"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

type closePositionRequest struct {
	ExitPrice string `json:"exit_price" binding:"required"`
}

// @Summary Close an open position at a given exit price
// @Tags trading
// @Success 200 {object} apiResponse
// @Router /api/v1/positions/{trade_id}/close [post]
func (h *TradingHandler) closePosition(c *gin.Context) {
	if h.Executor == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	tradeID := strings.TrimSpace(c.Param("trade_id"))
	if tradeID == "" {
		Error(c, http.StatusBadRequest, "invalid trade_id", nil)
		return
	}
	var req closePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	exitPrice, err := decimal.NewFromString(strings.TrimSpace(req.ExitPrice))
	if err != nil || exitPrice.IsNegative() || exitPrice.GreaterThan(decimal.NewFromInt(1)) {
		Error(c, http.StatusBadRequest, "exit_price must be between 0 and 1", nil)
		return
	}
	pos, err := h.Executor.ClosePosition(c.Request.Context(), tradeID, exitPrice)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			Error(c, http.StatusNotFound, "position not found", nil)
		case errors.Is(err, service.ErrPositionAlreadyClosed):
			Error(c, http.StatusConflict, "position already closed", nil)
		default:
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	if h.Logger != nil {
		h.Logger.Info("position closed via api", zap.String("trade_id", tradeID))
	}
	Ok(c, pos, nil)
}
