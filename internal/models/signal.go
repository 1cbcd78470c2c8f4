package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingSignal is a pending trading intent for one portfolio. It is consumed
// at most once: immutable after executed flips to true.
type TradingSignal struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	PortfolioID uint64 `gorm:"not null;index:idx_signals_portfolio_executed,priority:1"`
	MarketID    string `gorm:"type:varchar(100);not null;index"`

	Action      string          `gorm:"type:varchar(10);not null"`
	TargetPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Confidence  float64         `gorm:"not null;default:0"`
	Reason      string          `gorm:"type:text"`

	// Timestamp orders execution (FIFO, oldest intent first).
	Timestamp time.Time `gorm:"type:timestamptz;not null;index"`

	Executed   bool       `gorm:"not null;default:false;index:idx_signals_portfolio_executed,priority:2"`
	ExecutedAt *time.Time `gorm:"type:timestamptz"`
	TradeID    *string    `gorm:"type:varchar(100);index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`

	Portfolio *Portfolio `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"-"`
}

func (TradingSignal) TableName() string {
	return "trading_signals"
}
