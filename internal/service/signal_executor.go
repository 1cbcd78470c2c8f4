package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"prescient/internal/models"
	"prescient/internal/repository"
	"prescient/internal/risk"
)

// Per-portfolio execution outcomes.
const (
	ExecutionCompleted = "completed"
	ExecutionNoSignals = "no_signals"
	ExecutionSkipped   = "skipped"
	ExecutionError     = "error"
)

type SignalFailure struct {
	SignalID uint64 `json:"signal_id"`
	MarketID string `json:"market_id"`
	Reason   string `json:"reason"`
}

type PortfolioExecution struct {
	PortfolioID   uint64          `json:"portfolio_id"`
	PortfolioName string          `json:"portfolio_name"`
	Status        string          `json:"status"`
	ExecutedCount int             `json:"executed_count"`
	FailedCount   int             `json:"failed_count"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Failures      []SignalFailure `json:"failures,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// SignalExecutor turns pending trading signals into trades and positions
// against portfolio capital. Failures are isolated per signal and per
// portfolio; one bad signal or one broken portfolio never stops the rest.
type SignalExecutor struct {
	Repo             repository.Repository
	Logger           *zap.Logger
	Locks            *PortfolioLocks
	SignalBatchLimit int
}

// ExecuteSignals processes pending signals for one portfolio, or for all
// active portfolios when portfolioID is nil. The only error returned is a
// lookup failure for an explicitly requested portfolio; everything else is
// reported per portfolio in the results.
func (e *SignalExecutor) ExecuteSignals(ctx context.Context, portfolioID *uint64) ([]PortfolioExecution, error) {
	var targets []models.Portfolio
	if portfolioID != nil {
		p, err := e.Repo.GetPortfolioByID(ctx, *portfolioID)
		if err != nil {
			return nil, err
		}
		targets = []models.Portfolio{*p}
	} else {
		status := models.PortfolioStatusActive
		items, err := e.Repo.ListPortfolios(ctx, repository.ListPortfoliosParams{Status: &status})
		if err != nil {
			return nil, err
		}
		targets = items
	}

	results := make([]PortfolioExecution, 0, len(targets))
	for _, p := range targets {
		res := e.executePortfolio(ctx, p)
		if e.Logger != nil {
			e.Logger.Info("signal execution finished",
				zap.Uint64("portfolio_id", res.PortfolioID),
				zap.String("status", res.Status),
				zap.Int("executed", res.ExecutedCount),
				zap.Int("failed", res.FailedCount),
			)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *SignalExecutor) executePortfolio(ctx context.Context, target models.Portfolio) (res PortfolioExecution) {
	res = PortfolioExecution{
		PortfolioID:   target.ID,
		PortfolioName: target.Name,
		NewBalance:    target.CurrentBalance,
	}
	defer func() {
		if r := recover(); r != nil {
			res.Status = ExecutionError
			res.Error = fmt.Sprintf("panic: %v", r)
			if e.Logger != nil {
				e.Logger.Error("signal execution panicked",
					zap.Uint64("portfolio_id", target.ID),
					zap.Any("panic", r),
				)
			}
		}
	}()

	if target.Status != models.PortfolioStatusActive {
		res.Status = ExecutionSkipped
		return res
	}

	lock := e.Locks.Get(target.ID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock so the balance and version are current.
	p, err := e.Repo.GetPortfolioByID(ctx, target.ID)
	if err != nil {
		res.Status = ExecutionError
		res.Error = err.Error()
		return res
	}
	res.PortfolioName = p.Name
	res.NewBalance = p.CurrentBalance

	signals, err := e.Repo.ListUnexecutedSignals(ctx, p.ID, e.SignalBatchLimit)
	if err != nil {
		res.Status = ExecutionError
		res.Error = err.Error()
		return res
	}
	if len(signals) == 0 {
		res.Status = ExecutionNoSignals
		return res
	}

	open, err := e.Repo.ListOpenPositionsByPortfolio(ctx, p.ID)
	if err != nil {
		res.Status = ExecutionError
		res.Error = err.Error()
		return res
	}
	openExposure := decimal.Zero
	for _, pos := range open {
		openExposure = openExposure.Add(pos.Amount)
	}
	openCount := len(open)

	limits := risk.LimitsFromConfig(p.StrategyConfig)
	balance := p.CurrentBalance
	invested := p.TotalInvested
	tradeCount := p.TradeCount

	for _, sig := range signals {
		if sig.Action != models.ActionBuyYes && sig.Action != models.ActionBuyNo {
			res.Failures = append(res.Failures, SignalFailure{
				SignalID: sig.ID, MarketID: sig.MarketID, Reason: ErrUnknownAction.Error(),
			})
			continue
		}
		if !sig.Amount.IsPositive() {
			res.Failures = append(res.Failures, SignalFailure{
				SignalID: sig.ID, MarketID: sig.MarketID, Reason: "non_positive_amount",
			})
			continue
		}
		if reason := limits.Check(sig.Amount, balance, openExposure, openCount); reason != "" {
			res.Failures = append(res.Failures, SignalFailure{
				SignalID: sig.ID, MarketID: sig.MarketID, Reason: reason,
			})
			continue
		}

		now := time.Now().UTC()
		tradeID := newTradeID(p.ID, sig.MarketID, now)
		trade := &models.Trade{
			PortfolioID: p.ID,
			TradeID:     tradeID,
			MarketID:    sig.MarketID,
			Action:      sig.Action,
			Amount:      sig.Amount,
			EntryPrice:  sig.TargetPrice,
			Confidence:  sig.Confidence,
			Reason:      sig.Reason,
			Status:      models.TradeStatusOpen,
			ExecutedAt:  now,
		}
		position := &models.Position{
			PortfolioID:    p.ID,
			TradeID:        tradeID,
			MarketID:       sig.MarketID,
			Action:         sig.Action,
			Amount:         sig.Amount,
			EntryPrice:     sig.TargetPrice,
			Status:         models.PositionStatusOpen,
			CurrentPnL:     decimal.Zero,
			EntryTimestamp: now,
		}
		// Trade, position and the executed flag commit together; a partial
		// write here would let the signal run twice on the next invocation.
		err := e.Repo.InTx(ctx, func(tx repository.Repository) error {
			if err := tx.InsertTrade(ctx, trade); err != nil {
				return err
			}
			if err := tx.InsertPosition(ctx, position); err != nil {
				return err
			}
			return tx.MarkSignalExecuted(ctx, sig.ID, tradeID, now)
		})
		if err != nil {
			res.Failures = append(res.Failures, SignalFailure{
				SignalID: sig.ID, MarketID: sig.MarketID, Reason: "persist: " + err.Error(),
			})
			continue
		}

		balance = balance.Sub(sig.Amount)
		invested = invested.Add(sig.Amount)
		tradeCount++
		openExposure = openExposure.Add(sig.Amount)
		openCount++
		res.ExecutedCount++
	}
	res.FailedCount = len(res.Failures)
	res.NewBalance = balance

	if res.ExecutedCount > 0 {
		now := time.Now().UTC()
		upd := repository.PortfolioUpdate{
			CurrentBalance: &balance,
			TotalInvested:  &invested,
			TradeCount:     &tradeCount,
			LastTradeAt:    &now,
		}
		if err := e.Repo.UpdatePortfolio(ctx, p.ID, p.Version, upd); err != nil {
			res.Status = ExecutionError
			res.Error = err.Error()
			return res
		}
	}

	res.Status = ExecutionCompleted
	return res
}

// ClosePosition settles an open position at the given exit price: realized
// P&L is (exit - entry) * amount, the stake plus realized P&L returns to the
// balance, and the portfolio's unrealized total is re-derived from the
// remaining open positions.
func (e *SignalExecutor) ClosePosition(ctx context.Context, tradeID string, exitPrice decimal.Decimal) (*models.Position, error) {
	pos, err := e.Repo.GetPositionByTradeID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if pos.Status != models.PositionStatusOpen {
		return nil, ErrPositionAlreadyClosed
	}

	lock := e.Locks.Get(pos.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	p, err := e.Repo.GetPortfolioByID(ctx, pos.PortfolioID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	realized := exitPrice.Sub(pos.EntryPrice).Mul(pos.Amount).Round(2)
	balance := p.CurrentBalance.Add(pos.Amount).Add(realized)
	invested := p.TotalInvested.Sub(pos.Amount)
	if invested.IsNegative() {
		invested = decimal.Zero
	}
	// Position, trade and the portfolio settlement commit together.
	err = e.Repo.InTx(ctx, func(tx repository.Repository) error {
		if err := tx.ClosePosition(ctx, tradeID, exitPrice, realized, now); err != nil {
			return err
		}
		if err := tx.UpdateTradeStatus(ctx, tradeID, models.TradeStatusClosed, &realized); err != nil {
			return err
		}
		remaining, err := tx.ListOpenPositionsByPortfolio(ctx, p.ID)
		if err != nil {
			return err
		}
		totalPnl := decimal.Zero
		for _, open := range remaining {
			totalPnl = totalPnl.Add(open.CurrentPnL)
		}
		upd := repository.PortfolioUpdate{
			CurrentBalance:  &balance,
			TotalInvested:   &invested,
			TotalProfitLoss: &totalPnl,
		}
		return tx.UpdatePortfolio(ctx, p.ID, p.Version, upd)
	})
	if err != nil {
		return nil, err
	}

	if e.Logger != nil {
		e.Logger.Info("position closed",
			zap.Uint64("portfolio_id", p.ID),
			zap.String("trade_id", tradeID),
			zap.String("realized_pnl", realized.StringFixed(2)),
		)
	}

	pos.Status = models.PositionStatusClosed
	pos.RealizedPnL = &realized
	pos.ExitPrice = &exitPrice
	pos.ExitTimestamp = &now
	pos.CurrentPnL = decimal.Zero
	return pos, nil
}

func newTradeID(portfolioID uint64, marketID string, at time.Time) string {
	return fmt.Sprintf("trade_%d_%s_%d", portfolioID, marketID, at.UnixNano())
}
