package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prescient/internal/models"
	"prescient/internal/repository"
)

// SnapshotService records daily point-in-time valuations of portfolios into
// the history table. One snapshot per portfolio per UTC calendar day;
// re-recording on the same day overwrites in place.
type SnapshotService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Locks  *PortfolioLocks
}

func (s *SnapshotService) RecordSnapshot(ctx context.Context, portfolioID uint64) (*models.PortfolioSnapshot, error) {
	lock := s.Locks.Get(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.Repo.GetPortfolioByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	open, err := s.Repo.ListOpenPositionsByPortfolio(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snap := &models.PortfolioSnapshot{
		PortfolioID:     p.ID,
		SnapshotDate:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Timestamp:       now,
		Balance:         p.CurrentBalance,
		TotalInvested:   p.TotalInvested,
		TotalProfitLoss: p.TotalProfitLoss,
		TotalValue:      p.TotalValue(),
		OpenPositions:   len(open),
		TradeCount:      p.TradeCount,
	}
	if err := s.Repo.UpsertPortfolioSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// RecordAll snapshots every active portfolio. Individual failures are logged
// and do not stop the sweep.
func (s *SnapshotService) RecordAll(ctx context.Context) {
	status := models.PortfolioStatusActive
	portfolios, err := s.Repo.ListPortfolios(ctx, repository.ListPortfoliosParams{Status: &status})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("snapshot sweep: list portfolios failed", zap.Error(err))
		}
		return
	}
	for _, p := range portfolios {
		if _, err := s.RecordSnapshot(ctx, p.ID); err != nil && s.Logger != nil {
			s.Logger.Warn("portfolio snapshot failed",
				zap.Uint64("portfolio_id", p.ID),
				zap.Error(err),
			)
		}
	}
}
