package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PortfolioStatusActive   = "active"
	PortfolioStatusPaused   = "paused"
	PortfolioStatusArchived = "archived"
)

// Portfolio is an isolated pool of virtual capital. Balance, invested and
// trade_count are mutated only by the signal executor; total_profit_loss and
// last_price_update only by the price updater.
type Portfolio struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Description  string `gorm:"type:text"`
	StrategyType string `gorm:"type:varchar(50);not null;index"`
	Status       string `gorm:"type:varchar(20);not null;default:'active';index"`

	InitialBalance  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	CurrentBalance  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalInvested   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalProfitLoss decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TradeCount      int             `gorm:"not null;default:0"`

	// StrategyConfig is opaque to the engine except for the optional
	// risk-limit keys (max_position_size, max_total_exposure, max_positions).
	StrategyConfig datatypes.JSONMap `gorm:"type:jsonb"`

	// Version guards read-modify-write updates across concurrent writers.
	Version uint64 `gorm:"not null;default:0"`

	CreatedAt       time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
	LastTradeAt     *time.Time `gorm:"type:timestamptz"`
	LastPriceUpdate *time.Time `gorm:"type:timestamptz"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

// TotalValue is balance plus unrealized P&L across open positions.
func (p Portfolio) TotalValue() decimal.Decimal {
	return p.CurrentBalance.Add(p.TotalProfitLoss)
}
