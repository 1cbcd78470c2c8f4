package db

import (
	"prescient/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Portfolio{},
		&models.Position{},
		&models.Trade{},
		&models.TradingSignal{},
		&models.PortfolioSnapshot{},
		&models.MarketSnapshot{},
	)
}
