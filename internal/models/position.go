package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ActionBuyYes = "buy_yes"
	ActionBuyNo  = "buy_no"

	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position is one portfolio's stake in one market. Amount and entry price are
// immutable after creation; current_pnl is recomputed by the price updater.
type Position struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	PortfolioID uint64 `gorm:"not null;index:idx_positions_portfolio_status,priority:1"`
	TradeID     string `gorm:"type:varchar(100);not null;uniqueIndex"`
	MarketID    string `gorm:"type:varchar(100);not null;index"`

	Action     string          `gorm:"type:varchar(10);not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	Status     string          `gorm:"type:varchar(20);not null;default:'open';index:idx_positions_portfolio_status,priority:2"`
	CurrentPnL decimal.Decimal `gorm:"column:current_pnl;type:numeric(30,10);not null;default:0"`

	RealizedPnL   *decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10)"`
	ExitPrice     *decimal.Decimal `gorm:"type:numeric(20,10)"`
	ExitTimestamp *time.Time       `gorm:"type:timestamptz"`

	EntryTimestamp time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt      time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"type:timestamptz;autoUpdateTime"`

	Portfolio *Portfolio `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Position) TableName() string {
	return "portfolio_positions"
}
