package game

import (
	"context"
	"errors"
	"sync"
)

type memStore struct {
	mu       sync.Mutex
	balances map[string]float64
	stats    map[string]Stats
	failSave bool
	saves    int
}

func newMemStore() *memStore {
	return &memStore{balances: make(map[string]float64), stats: make(map[string]Stats)}
}

func (m *memStore) Load(_ context.Context, userID string) Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Balance{UserID: userID, Amount: m.balances[userID]}
}

func (m *memStore) Save(_ context.Context, userID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.saves++
	m.balances[userID] = amount
	return nil
}

func (m *memStore) LoadStats(_ context.Context, userID string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[userID]
}

func (m *memStore) SaveStats(_ context.Context, userID string, s Stats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[userID] = s
	return nil
}

func (m *memStore) LoadJackpot(context.Context) float64 { return 0 }

type captureReporter struct {
	mu      sync.Mutex
	reports []Report
}

func (c *captureReporter) Dispatch(r Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *captureReporter) all() []Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Report(nil), c.reports...)
}
