package service

import "sync"

// PortfolioLocks serializes read-modify-write work on a single portfolio.
// The executor, the price updater and the snapshot recorder all hold a
// portfolio's lock for the duration of one unit of work; locks for different
// portfolios never contend.
type PortfolioLocks struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func NewPortfolioLocks() *PortfolioLocks {
	return &PortfolioLocks{locks: make(map[uint64]*sync.Mutex)}
}

func (l *PortfolioLocks) Get(portfolioID uint64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[portfolioID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[portfolioID] = m
	}
	return m
}
