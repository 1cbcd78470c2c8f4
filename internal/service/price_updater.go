package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"prescient/internal/client/gamma"
	"prescient/internal/models"
	"prescient/internal/repository"
)

// PriceFetcher resolves current prices for a set of market IDs. Markets the
// upstream does not know are simply absent from the result map.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, marketIDs []string) (map[string]gamma.MarketPrice, error)
}

const (
	SchedulerStopped  = "stopped"
	SchedulerRunning  = "running"
	SchedulerStopping = "stopping"
)

type SchedulerStatus struct {
	Running         bool       `json:"running"`
	State           string     `json:"state"`
	IntervalSeconds int        `json:"interval_seconds"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
}

// PriceUpdater periodically reconciles the unrealized P&L of every open
// position in every active portfolio against current market prices.
type PriceUpdater struct {
	Repo                  repository.Repository
	Prices                PriceFetcher
	Logger                *zap.Logger
	Locks                 *PortfolioLocks
	Interval              time.Duration
	RecordMarketSnapshots bool

	mu        sync.Mutex
	state     string
	lastRunAt *time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Start launches the background reconciliation loop. The first cycle runs
// immediately; subsequent cycles run every Interval.
func (u *PriceUpdater) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == SchedulerRunning || u.state == SchedulerStopping {
		return ErrSchedulerAlreadyRunning
	}
	u.state = SchedulerRunning
	u.stopCh = make(chan struct{})
	u.doneCh = make(chan struct{})
	go u.loop(u.stopCh, u.doneCh)
	return nil
}

// Stop signals the loop to exit and waits for the in-flight cycle to finish
// or for ctx to expire, whichever comes first. A Stop that timed out can be
// retried: the loop resets the state to stopped when it actually exits.
func (u *PriceUpdater) Stop(ctx context.Context) error {
	u.mu.Lock()
	switch u.state {
	case SchedulerRunning:
		u.state = SchedulerStopping
		close(u.stopCh)
	case SchedulerStopping:
		// A previous Stop timed out; just wait again.
	default:
		u.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	done := u.doneCh
	u.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNow runs a single reconciliation cycle synchronously, independent of
// whether the background loop is running.
func (u *PriceUpdater) TriggerNow(ctx context.Context) error {
	return u.runCycle(ctx)
}

func (u *PriceUpdater) Status() SchedulerStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	state := u.state
	if state == "" {
		state = SchedulerStopped
	}
	return SchedulerStatus{
		Running:         state == SchedulerRunning,
		State:           state,
		IntervalSeconds: int(u.Interval / time.Second),
		LastRunAt:       u.lastRunAt,
	}
}

func (u *PriceUpdater) loop(stopCh, doneCh chan struct{}) {
	// The loop owns the terminal state so a Stop whose ctx expired still
	// leaves the machine restartable once the cycle finishes.
	defer func() {
		u.mu.Lock()
		u.state = SchedulerStopped
		u.mu.Unlock()
		close(doneCh)
	}()
	for {
		if err := u.runCycle(context.Background()); err != nil && u.Logger != nil {
			u.Logger.Error("price reconciliation cycle failed", zap.Error(err))
		}
		// Sleep in one-second slices so Stop is honored promptly even
		// with long intervals.
		deadline := time.Now().Add(u.Interval)
		for time.Now().Before(deadline) {
			select {
			case <-stopCh:
				return
			case <-time.After(time.Second):
			}
		}
		select {
		case <-stopCh:
			return
		default:
		}
	}
}

func (u *PriceUpdater) runCycle(ctx context.Context) error {
	status := models.PortfolioStatusActive
	portfolios, err := u.Repo.ListPortfolios(ctx, repository.ListPortfoliosParams{Status: &status})
	if err != nil {
		return err
	}
	// Markets held by several portfolios are fetched once per portfolio but
	// snapshotted once per cycle.
	fetched := make(map[string]gamma.MarketPrice)
	for _, p := range portfolios {
		prices, err := u.reconcilePortfolio(ctx, p.ID)
		if err != nil {
			if u.Logger != nil {
				u.Logger.Warn("portfolio price reconciliation failed",
					zap.Uint64("portfolio_id", p.ID),
					zap.Error(err),
				)
			}
			continue
		}
		for id, price := range prices {
			fetched[id] = price
		}
	}
	if u.RecordMarketSnapshots {
		u.recordSnapshots(ctx, fetched)
	}
	now := time.Now().UTC()
	u.mu.Lock()
	u.lastRunAt = &now
	u.mu.Unlock()
	return nil
}

func (u *PriceUpdater) recordSnapshots(ctx context.Context, prices map[string]gamma.MarketPrice) {
	for id, price := range prices {
		snap := &models.MarketSnapshot{
			MarketID:  id,
			YesPrice:  price.YesPrice,
			NoPrice:   price.NoPrice,
			Liquidity: price.Liquidity,
			Volume:    price.Volume,
		}
		if err := u.Repo.InsertMarketSnapshot(ctx, snap); err != nil && u.Logger != nil {
			u.Logger.Warn("market snapshot insert failed",
				zap.String("market_id", id),
				zap.Error(err),
			)
		}
	}
}

// reconcilePortfolio refreshes the unrealized P&L of one portfolio and
// returns the prices it fetched so the cycle can snapshot each market once.
func (u *PriceUpdater) reconcilePortfolio(ctx context.Context, portfolioID uint64) (map[string]gamma.MarketPrice, error) {
	lock := u.Locks.Get(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	p, err := u.Repo.GetPortfolioByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PortfolioStatusActive {
		return nil, nil
	}
	open, err := u.Repo.ListOpenPositionsByPortfolio(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(open))
	marketIDs := make([]string, 0, len(open))
	for _, pos := range open {
		if _, ok := seen[pos.MarketID]; ok {
			continue
		}
		seen[pos.MarketID] = struct{}{}
		marketIDs = append(marketIDs, pos.MarketID)
	}

	prices, err := u.Prices.FetchPrices(ctx, marketIDs)
	if err != nil {
		return nil, err
	}

	totalPnl := decimal.Zero
	updated := 0
	for _, pos := range open {
		price, ok := prices[pos.MarketID]
		if !ok {
			// Keep the last known P&L when the market has no fresh
			// price; it still counts toward the portfolio total.
			totalPnl = totalPnl.Add(pos.CurrentPnL)
			continue
		}
		current := price.YesPrice
		if pos.Action == models.ActionBuyNo {
			current = price.NoPrice
		}
		pnl := current.Sub(pos.EntryPrice).Mul(pos.Amount).Round(2)
		if err := u.Repo.UpdatePositionPnL(ctx, pos.TradeID, pnl); err != nil {
			return nil, err
		}
		totalPnl = totalPnl.Add(pnl)
		updated++
	}

	now := time.Now().UTC()
	upd := repository.PortfolioUpdate{
		TotalProfitLoss: &totalPnl,
		LastPriceUpdate: &now,
	}
	if err := u.Repo.UpdatePortfolio(ctx, p.ID, p.Version, upd); err != nil {
		return nil, err
	}
	if u.Logger != nil {
		u.Logger.Debug("portfolio prices reconciled",
			zap.Uint64("portfolio_id", p.ID),
			zap.Int("positions_updated", updated),
			zap.String("total_pnl", totalPnl.StringFixed(2)),
		)
	}
	return prices, nil
}
