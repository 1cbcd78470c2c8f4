package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Trade is the append-only ledger entry mirroring an executed signal. Only
// status and realized_pnl change, once, when the position closes.
type Trade struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	PortfolioID uint64 `gorm:"not null;index:idx_trades_portfolio_ts,priority:1"`
	TradeID     string `gorm:"type:varchar(100);not null;uniqueIndex"`
	MarketID    string `gorm:"type:varchar(100);not null;index"`

	Action     string          `gorm:"type:varchar(10);not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Confidence float64         `gorm:"not null;default:0"`
	Reason     string          `gorm:"type:text"`

	Status      string           `gorm:"type:varchar(20);not null;default:'open';index"`
	RealizedPnL *decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10)"`

	ExecutedAt time.Time `gorm:"type:timestamptz;not null;index:idx_trades_portfolio_ts,priority:2"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;autoUpdateTime"`

	Portfolio *Portfolio `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Trade) TableName() string {
	return "trades"
}
