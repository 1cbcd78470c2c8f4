package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"prescient/internal/models"
	"prescient/internal/repository"
)

var errStubPersist = errors.New("stub persist failure")

// stubRepo is an in-memory repository for service tests. It mirrors the
// semantics the gorm store guarantees: version-checked portfolio updates,
// FIFO signal ordering and date-keyed snapshot upserts.
type stubRepo struct {
	mu sync.Mutex

	portfolios map[uint64]*models.Portfolio
	positions  []*models.Position
	trades     []*models.Trade
	signals    []*models.TradingSignal
	snapshots  map[string]*models.PortfolioSnapshot
	markets    []*models.MarketSnapshot

	nextPortfolioID uint64
	nextSignalID    uint64

	failUpdatePositionPnL  bool
	failMarkSignalExecuted int
	failUpdateTradeStatus  bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		portfolios: map[uint64]*models.Portfolio{},
		snapshots:  map[string]*models.PortfolioSnapshot{},
	}
}

func (r *stubRepo) addPortfolio(p models.Portfolio) *models.Portfolio {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextPortfolioID++
	p.ID = r.nextPortfolioID
	if p.Status == "" {
		p.Status = models.PortfolioStatusActive
	}
	cp := p
	r.portfolios[p.ID] = &cp
	return &cp
}

func (r *stubRepo) addSignal(s models.TradingSignal) *models.TradingSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSignalID++
	s.ID = r.nextSignalID
	cp := s
	r.signals = append(r.signals, &cp)
	return &cp
}

func (r *stubRepo) addOpenPosition(p models.Position) *models.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Status = models.PositionStatusOpen
	cp := p
	r.positions = append(r.positions, &cp)
	return &cp
}

// InTx snapshots the whole store and restores it when fn fails, mirroring the
// commit-or-rollback guarantee of the gorm store.
func (r *stubRepo) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	snap := r.snapshotState()
	if err := fn(r); err != nil {
		r.restoreState(snap)
		return err
	}
	return nil
}

type stubState struct {
	portfolios map[uint64]*models.Portfolio
	positions  []*models.Position
	trades     []*models.Trade
	signals    []*models.TradingSignal
	snapshots  map[string]*models.PortfolioSnapshot
	markets    []*models.MarketSnapshot

	nextPortfolioID uint64
	nextSignalID    uint64
}

func (r *stubRepo) snapshotState() stubState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := stubState{
		portfolios:      make(map[uint64]*models.Portfolio, len(r.portfolios)),
		snapshots:       make(map[string]*models.PortfolioSnapshot, len(r.snapshots)),
		nextPortfolioID: r.nextPortfolioID,
		nextSignalID:    r.nextSignalID,
	}
	for id, p := range r.portfolios {
		cp := *p
		st.portfolios[id] = &cp
	}
	for _, p := range r.positions {
		cp := *p
		st.positions = append(st.positions, &cp)
	}
	for _, t := range r.trades {
		cp := *t
		st.trades = append(st.trades, &cp)
	}
	for _, s := range r.signals {
		cp := *s
		st.signals = append(st.signals, &cp)
	}
	for key, s := range r.snapshots {
		cp := *s
		st.snapshots[key] = &cp
	}
	for _, m := range r.markets {
		cp := *m
		st.markets = append(st.markets, &cp)
	}
	return st
}

func (r *stubRepo) restoreState(st stubState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portfolios = st.portfolios
	r.positions = st.positions
	r.trades = st.trades
	r.signals = st.signals
	r.snapshots = st.snapshots
	r.markets = st.markets
	r.nextPortfolioID = st.nextPortfolioID
	r.nextSignalID = st.nextSignalID
}

func (r *stubRepo) CreatePortfolio(ctx context.Context, item *models.Portfolio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextPortfolioID++
	item.ID = r.nextPortfolioID
	cp := *item
	r.portfolios[item.ID] = &cp
	return nil
}

func (r *stubRepo) GetPortfolioByID(ctx context.Context, id uint64) (*models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portfolios[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubRepo) GetPortfolioByName(ctx context.Context, name string) (*models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.portfolios {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubRepo) ListPortfolios(ctx context.Context, params repository.ListPortfoliosParams) ([]models.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Portfolio, 0, len(r.portfolios))
	for id := uint64(1); id <= r.nextPortfolioID; id++ {
		p, ok := r.portfolios[id]
		if !ok {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *stubRepo) UpdatePortfolio(ctx context.Context, id uint64, version uint64, upd repository.PortfolioUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portfolios[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Version != version {
		return repository.ErrVersionConflict
	}
	if upd.CurrentBalance != nil {
		p.CurrentBalance = *upd.CurrentBalance
	}
	if upd.TotalInvested != nil {
		p.TotalInvested = *upd.TotalInvested
	}
	if upd.TotalProfitLoss != nil {
		p.TotalProfitLoss = *upd.TotalProfitLoss
	}
	if upd.TradeCount != nil {
		p.TradeCount = *upd.TradeCount
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.StrategyConfig != nil {
		p.StrategyConfig = upd.StrategyConfig
	}
	if upd.LastTradeAt != nil {
		p.LastTradeAt = upd.LastTradeAt
	}
	if upd.LastPriceUpdate != nil {
		p.LastPriceUpdate = upd.LastPriceUpdate
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *stubRepo) InsertPosition(ctx context.Context, item *models.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.positions = append(r.positions, &cp)
	return nil
}

func (r *stubRepo) GetPositionByTradeID(ctx context.Context, tradeID string) (*models.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.positions {
		if p.TradeID == tradeID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubRepo) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Position{}
	for _, p := range r.positions {
		if params.PortfolioID != nil && p.PortfolioID != *params.PortfolioID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.MarketID != nil && p.MarketID != *params.MarketID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *stubRepo) ListOpenPositionsByPortfolio(ctx context.Context, portfolioID uint64) ([]models.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Position{}
	for _, p := range r.positions {
		if p.PortfolioID == portfolioID && p.Status == models.PositionStatusOpen {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdatePositionPnL(ctx context.Context, tradeID string, pnl decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdatePositionPnL {
		return errStubPersist
	}
	for _, p := range r.positions {
		if p.TradeID == tradeID {
			p.CurrentPnL = pnl
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubRepo) ClosePosition(ctx context.Context, tradeID string, exitPrice, realizedPnL decimal.Decimal, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.positions {
		if p.TradeID == tradeID {
			p.Status = models.PositionStatusClosed
			p.ExitPrice = &exitPrice
			p.RealizedPnL = &realizedPnL
			p.ExitTimestamp = &closedAt
			p.CurrentPnL = decimal.Zero
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubRepo) InsertTrade(ctx context.Context, item *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.trades = append(r.trades, &cp)
	return nil
}

func (r *stubRepo) GetTradeByTradeID(ctx context.Context, tradeID string) (*models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trades {
		if t.TradeID == tradeID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubRepo) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Trade{}
	for _, t := range r.trades {
		if params.PortfolioID != nil && t.PortfolioID != *params.PortfolioID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *stubRepo) UpdateTradeStatus(ctx context.Context, tradeID string, status string, realizedPnL *decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdateTradeStatus {
		return errStubPersist
	}
	for _, t := range r.trades {
		if t.TradeID == tradeID {
			t.Status = status
			t.RealizedPnL = realizedPnL
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubRepo) InsertSignal(ctx context.Context, item *models.TradingSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSignalID++
	item.ID = r.nextSignalID
	cp := *item
	r.signals = append(r.signals, &cp)
	return nil
}

func (r *stubRepo) ListUnexecutedSignals(ctx context.Context, portfolioID uint64, limit int) ([]models.TradingSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.TradingSignal{}
	for _, s := range r.signals {
		if s.PortfolioID == portfolioID && !s.Executed {
			out = append(out, *s)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if b.Timestamp.Before(a.Timestamp) || (b.Timestamp.Equal(a.Timestamp) && b.ID < a.ID) {
				out[j-1], out[j] = b, a
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubRepo) MarkSignalExecuted(ctx context.Context, id uint64, tradeID string, executedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMarkSignalExecuted > 0 {
		r.failMarkSignalExecuted--
		return errStubPersist
	}
	for _, s := range r.signals {
		if s.ID == id {
			s.Executed = true
			s.ExecutedAt = &executedAt
			s.TradeID = &tradeID
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubRepo) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.TradingSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.TradingSignal{}
	for _, s := range r.signals {
		if params.PortfolioID != nil && s.PortfolioID != *params.PortfolioID {
			continue
		}
		if params.Executed != nil && s.Executed != *params.Executed {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *stubRepo) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := snapshotKey(item.PortfolioID, item.SnapshotDate)
	cp := *item
	r.snapshots[key] = &cp
	return nil
}

func (r *stubRepo) ListPortfolioSnapshots(ctx context.Context, portfolioID uint64, params repository.ListSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.PortfolioSnapshot{}
	for _, s := range r.snapshots {
		if s.PortfolioID == portfolioID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *stubRepo) InsertMarketSnapshot(ctx context.Context, item *models.MarketSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.markets = append(r.markets, &cp)
	return nil
}

func snapshotKey(portfolioID uint64, date time.Time) string {
	return date.UTC().Format("2006-01-02") + "/" + strconv.FormatUint(portfolioID, 10)
}

var _ repository.Repository = (*stubRepo)(nil)
