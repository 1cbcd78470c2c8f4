package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is a price time-series row appended whenever a
// reconciliation cycle fetches a market, independent of any portfolio.
type MarketSnapshot struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID string `gorm:"type:varchar(100);not null;index:idx_market_snapshots_market_ts,priority:1"`

	YesPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	NoPrice   decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Liquidity decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Volume    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index:idx_market_snapshots_market_ts,priority:2"`
}

func (MarketSnapshot) TableName() string {
	return "market_snapshots"
}
