package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prescient/internal/models"
	"prescient/internal/repository"
)

type Store struct {
	db *gorm.DB
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Portfolios -------------------------------------------------------------

func (s *Store) CreatePortfolio(ctx context.Context, item *models.Portfolio) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Portfolio
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPortfolioByName(ctx context.Context, name string) (*models.Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, repository.ErrNotFound
	}
	var item models.Portfolio
	err := s.db.WithContext(ctx).First(&item, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPortfolios(ctx context.Context, params repository.ListPortfoliosParams) ([]models.Portfolio, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Portfolio{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	var items []models.Portfolio
	if err := query.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePortfolio(ctx context.Context, id uint64, version uint64, upd repository.PortfolioUpdate) error {
	if s == nil || s.db == nil {
		return nil
	}
	values := map[string]any{
		"version":    version + 1,
		"updated_at": time.Now().UTC(),
	}
	if upd.CurrentBalance != nil {
		values["current_balance"] = *upd.CurrentBalance
	}
	if upd.TotalInvested != nil {
		values["total_invested"] = *upd.TotalInvested
	}
	if upd.TotalProfitLoss != nil {
		values["total_profit_loss"] = *upd.TotalProfitLoss
	}
	if upd.TradeCount != nil {
		values["trade_count"] = *upd.TradeCount
	}
	if upd.Status != nil {
		values["status"] = strings.TrimSpace(*upd.Status)
	}
	if upd.Description != nil {
		values["description"] = *upd.Description
	}
	if upd.StrategyConfig != nil {
		values["strategy_config"] = upd.StrategyConfig
	}
	if upd.LastTradeAt != nil {
		values["last_trade_at"] = *upd.LastTradeAt
	}
	if upd.LastPriceUpdate != nil {
		values["last_price_update"] = *upd.LastPriceUpdate
	}

	res := s.db.WithContext(ctx).
		Model(&models.Portfolio{}).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.Portfolio{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	return nil
}

// --- Positions --------------------------------------------------------------

func (s *Store) InsertPosition(ctx context.Context, item *models.Position) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetPositionByTradeID(ctx context.Context, tradeID string) (*models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Position
	err := s.db.WithContext(ctx).First(&item, "trade_id = ?", strings.TrimSpace(tradeID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Position{})
	if params.PortfolioID != nil {
		query = query.Where("portfolio_id = ?", *params.PortfolioID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Position
	if err := query.Order("entry_timestamp desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpenPositionsByPortfolio(ctx context.Context, portfolioID uint64) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Position
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND status = ?", portfolioID, models.PositionStatusOpen).
		Order("entry_timestamp asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePositionPnL(ctx context.Context, tradeID string, pnl decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("trade_id = ? AND status = ?", strings.TrimSpace(tradeID), models.PositionStatusOpen).
		Updates(map[string]any{
			"current_pnl": pnl,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ClosePosition(ctx context.Context, tradeID string, exitPrice, realizedPnL decimal.Decimal, closedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("trade_id = ? AND status = ?", strings.TrimSpace(tradeID), models.PositionStatusOpen).
		Updates(map[string]any{
			"status":         models.PositionStatusClosed,
			"exit_price":     exitPrice,
			"exit_timestamp": closedAt,
			"realized_pnl":   realizedPnL,
			"current_pnl":    decimal.Zero,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// --- Trades -----------------------------------------------------------------

func (s *Store) InsertTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetTradeByTradeID(ctx context.Context, tradeID string) (*models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Trade
	err := s.db.WithContext(ctx).First(&item, "trade_id = ?", strings.TrimSpace(tradeID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Trade{})
	if params.PortfolioID != nil {
		query = query.Where("portfolio_id = ?", *params.PortfolioID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Trade
	if err := query.Order("executed_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateTradeStatus(ctx context.Context, tradeID string, status string, realizedPnL *decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}
	values := map[string]any{
		"status":     strings.TrimSpace(status),
		"updated_at": time.Now().UTC(),
	}
	if realizedPnL != nil {
		values["realized_pnl"] = *realizedPnL
	}
	res := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("trade_id = ?", strings.TrimSpace(tradeID)).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// --- Signals ----------------------------------------------------------------

func (s *Store) InsertSignal(ctx context.Context, item *models.TradingSignal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListUnexecutedSignals(ctx context.Context, portfolioID uint64, limit int) ([]models.TradingSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TradingSignal
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND executed = false", portfolioID).
		Order("timestamp asc, id asc").
		Limit(normalizeLimit(limit, 500)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkSignalExecuted(ctx context.Context, id uint64, tradeID string, executedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.TradingSignal{}).
		Where("id = ? AND executed = false", id).
		Updates(map[string]any{
			"executed":    true,
			"executed_at": executedAt,
			"trade_id":    tradeID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.TradingSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TradingSignal{})
	if params.PortfolioID != nil {
		query = query.Where("portfolio_id = ?", *params.PortfolioID)
	}
	if params.Executed != nil {
		query = query.Where("executed = ?", *params.Executed)
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.TradingSignal
	if err := query.Order("timestamp desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Valuation history ------------------------------------------------------

func (s *Store) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "portfolio_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"timestamp",
			"balance",
			"total_invested",
			"total_profit_loss",
			"total_value",
			"open_positions",
			"trade_count",
		}),
	}).Create(item).Error
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, portfolioID uint64, params repository.ListSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.PortfolioSnapshot{}).
		Where("portfolio_id = ?", portfolioID)
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("snapshot_date >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("snapshot_date <= ?", *params.Until)
	}
	limit := normalizeLimit(params.Limit, 365)
	offset := normalizeOffset(params.Offset)
	var items []models.PortfolioSnapshot
	if err := query.Order("snapshot_date desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Market price time-series -----------------------------------------------

func (s *Store) InsertMarketSnapshot(ctx context.Context, item *models.MarketSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

// --- helpers ----------------------------------------------------------------

func normalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
