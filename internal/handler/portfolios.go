package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"prescient/internal/models"
	"prescient/internal/repository"
	"prescient/internal/service"
)

type PortfolioHandler struct {
	Repo                   repository.Repository
	Snapshots              *service.SnapshotService
	Logger                 *zap.Logger
	DefaultStartingBalance decimal.Decimal
}

func (h *PortfolioHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/portfolios")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.PATCH("/:id", h.update)
	group.GET("/:id/history", h.history)
	group.POST("/:id/snapshot", h.snapshot)
}

type createPortfolioRequest struct {
	Name           string         `json:"name" binding:"required"`
	Description    string         `json:"description"`
	StrategyType   string         `json:"strategy_type" binding:"required"`
	InitialBalance *string        `json:"initial_balance"`
	StrategyConfig map[string]any `json:"strategy_config"`
}

// @Summary Create a portfolio
// @Tags portfolios
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios [post]
func (h *PortfolioHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		Error(c, http.StatusBadRequest, "name is required", nil)
		return
	}

	balance := h.DefaultStartingBalance
	if req.InitialBalance != nil {
		parsed, err := decimal.NewFromString(strings.TrimSpace(*req.InitialBalance))
		if err != nil || !parsed.IsPositive() {
			Error(c, http.StatusBadRequest, "initial_balance must be a positive number", nil)
			return
		}
		balance = parsed
	}

	if existing, err := h.Repo.GetPortfolioByName(c.Request.Context(), req.Name); err == nil && existing != nil {
		Error(c, http.StatusConflict, "portfolio name already in use", nil)
		return
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	item := &models.Portfolio{
		Name:            req.Name,
		Description:     req.Description,
		StrategyType:    req.StrategyType,
		Status:          models.PortfolioStatusActive,
		InitialBalance:  balance,
		CurrentBalance:  balance,
		TotalInvested:   decimal.Zero,
		TotalProfitLoss: decimal.Zero,
		StrategyConfig:  datatypes.JSONMap(req.StrategyConfig),
	}
	if err := h.Repo.CreatePortfolio(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("portfolio created",
			zap.Uint64("portfolio_id", item.ID),
			zap.String("name", item.Name),
		)
	}
	Ok(c, item, nil)
}

// @Summary List portfolios
// @Tags portfolios
// @Param status query string false "active|paused|archived"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios [get]
func (h *PortfolioHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListPortfolios(c.Request.Context(), repository.ListPortfoliosParams{
		Status: strQueryPtr(c, "status"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

type portfolioDetail struct {
	*models.Portfolio
	TotalValue    decimal.Decimal `json:"total_value"`
	OpenPositions int             `json:"open_positions"`
}

// @Summary Get one portfolio with valuation summary
// @Tags portfolios
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id} [get]
func (h *PortfolioHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64PathParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetPortfolioByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "portfolio not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	open, err := h.Repo.ListOpenPositionsByPortfolio(c.Request.Context(), item.ID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, portfolioDetail{
		Portfolio:     item,
		TotalValue:    item.TotalValue(),
		OpenPositions: len(open),
	}, nil)
}

type updatePortfolioRequest struct {
	Status         *string        `json:"status"`
	Description    *string        `json:"description"`
	StrategyConfig map[string]any `json:"strategy_config"`
}

// @Summary Update portfolio status, description or strategy config
// @Tags portfolios
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id} [patch]
func (h *PortfolioHandler) update(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64PathParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req updatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case models.PortfolioStatusActive, models.PortfolioStatusPaused, models.PortfolioStatusArchived:
		default:
			Error(c, http.StatusBadRequest, "invalid status", nil)
			return
		}
	}
	if req.Status == nil && req.Description == nil && req.StrategyConfig == nil {
		Error(c, http.StatusBadRequest, "nothing to update", nil)
		return
	}

	item, err := h.Repo.GetPortfolioByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "portfolio not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	upd := repository.PortfolioUpdate{
		Status:      req.Status,
		Description: req.Description,
	}
	if req.StrategyConfig != nil {
		upd.StrategyConfig = datatypes.JSONMap(req.StrategyConfig)
	}
	if err := h.Repo.UpdatePortfolio(c.Request.Context(), item.ID, item.Version, upd); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			Error(c, http.StatusConflict, "portfolio was modified concurrently, retry", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out, err := h.Repo.GetPortfolioByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, out, nil)
}

// @Summary Portfolio valuation history
// @Tags portfolios
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param since query string false "RFC3339 lower bound"
// @Param until query string false "RFC3339 upper bound"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/history [get]
func (h *PortfolioHandler) history(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64PathParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	limit := intQuery(c, "limit", 90)
	offset := intQuery(c, "offset", 0)
	items, err := h.Repo.ListPortfolioSnapshots(c.Request.Context(), id, repository.ListSnapshotsParams{
		Limit:  limit,
		Offset: offset,
		Since:  timeQueryPtr(c, "since"),
		Until:  timeQueryPtr(c, "until"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

// @Summary Record a valuation snapshot now
// @Tags portfolios
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/snapshot [post]
func (h *PortfolioHandler) snapshot(c *gin.Context) {
	if h.Snapshots == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := uint64PathParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	snap, err := h.Snapshots.RecordSnapshot(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "portfolio not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, snap, nil)
}
