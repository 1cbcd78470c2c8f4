package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"prescient/internal/models"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict signals that a portfolio was modified between the
	// caller's read and its write.
	ErrVersionConflict = errors.New("portfolio version conflict")
)

// PortfolioUpdate enumerates the only portfolio fields this system is allowed
// to mutate after creation. Nil fields are left untouched.
type PortfolioUpdate struct {
	CurrentBalance  *decimal.Decimal
	TotalInvested   *decimal.Decimal
	TotalProfitLoss *decimal.Decimal
	TradeCount      *int
	Status          *string
	Description     *string
	StrategyConfig  datatypes.JSONMap
	LastTradeAt     *time.Time
	LastPriceUpdate *time.Time
}

type Repository interface {
	// InTx runs fn against a transactional view of the store; every write fn
	// makes is committed together or rolled back together.
	InTx(ctx context.Context, fn func(tx Repository) error) error

	// Portfolios.
	CreatePortfolio(ctx context.Context, item *models.Portfolio) error
	GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error)
	GetPortfolioByName(ctx context.Context, name string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, params ListPortfoliosParams) ([]models.Portfolio, error)
	// UpdatePortfolio applies only the named fields, bumps the version
	// counter and refreshes updated_at. It fails with ErrVersionConflict
	// when version no longer matches the stored row.
	UpdatePortfolio(ctx context.Context, id uint64, version uint64, upd PortfolioUpdate) error

	// Positions.
	InsertPosition(ctx context.Context, item *models.Position) error
	GetPositionByTradeID(ctx context.Context, tradeID string) (*models.Position, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	ListOpenPositionsByPortfolio(ctx context.Context, portfolioID uint64) ([]models.Position, error)
	UpdatePositionPnL(ctx context.Context, tradeID string, pnl decimal.Decimal) error
	ClosePosition(ctx context.Context, tradeID string, exitPrice, realizedPnL decimal.Decimal, closedAt time.Time) error

	// Trades.
	InsertTrade(ctx context.Context, item *models.Trade) error
	GetTradeByTradeID(ctx context.Context, tradeID string) (*models.Trade, error)
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	UpdateTradeStatus(ctx context.Context, tradeID string, status string, realizedPnL *decimal.Decimal) error

	// Signals.
	InsertSignal(ctx context.Context, item *models.TradingSignal) error
	ListUnexecutedSignals(ctx context.Context, portfolioID uint64, limit int) ([]models.TradingSignal, error)
	MarkSignalExecuted(ctx context.Context, id uint64, tradeID string, executedAt time.Time) error
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.TradingSignal, error)

	// Valuation history.
	UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error
	ListPortfolioSnapshots(ctx context.Context, portfolioID uint64, params ListSnapshotsParams) ([]models.PortfolioSnapshot, error)

	// Market price time-series.
	InsertMarketSnapshot(ctx context.Context, item *models.MarketSnapshot) error
}

type ListPortfoliosParams struct {
	Status *string
}

type ListPositionsParams struct {
	Limit       int
	Offset      int
	PortfolioID *uint64
	Status      *string
	MarketID    *string
}

type ListTradesParams struct {
	Limit       int
	Offset      int
	PortfolioID *uint64
	Status      *string
}

type ListSignalsParams struct {
	Limit       int
	Offset      int
	PortfolioID *uint64
	Executed    *bool
}

type ListSnapshotsParams struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}
