package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is one dated valuation row per portfolio per day.
type PortfolioSnapshot struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	PortfolioID  uint64    `gorm:"not null;uniqueIndex:uniq_portfolio_snapshot_date,priority:1"`
	SnapshotDate time.Time `gorm:"type:date;not null;uniqueIndex:uniq_portfolio_snapshot_date,priority:2"`
	Timestamp    time.Time `gorm:"type:timestamptz;not null;index"`

	Balance         decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalInvested   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalProfitLoss decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalValue      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	OpenPositions   int             `gorm:"not null"`
	TradeCount      int             `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`

	Portfolio *Portfolio `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_history"
}
