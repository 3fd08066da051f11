// Package balance persists balances and player stats through a kv.Store.
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"minibet/internal/game"
	"minibet/internal/kv"
)

const jackpotKey = "jackpot"

func balanceKey(userID string) string { return "balance_" + userID }
func statsKey(userID string) string   { return "stats_" + userID }

// Store implements game.BalanceStore. Reads never fail: a missing, unreadable
// or corrupt value is logged and treated as zero.
type Store struct {
	kv  kv.Store
	log *slog.Logger
}

var _ game.BalanceStore = (*Store)(nil)

func New(store kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: store, log: logger.With(slog.String("component", "balance"))}
}

func (s *Store) Load(ctx context.Context, userID string) game.Balance {
	return game.Balance{UserID: userID, Amount: s.loadAmount(ctx, balanceKey(userID))}
}

func (s *Store) Save(ctx context.Context, userID string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: balance %v is not finite", game.ErrPersistence, amount)
	}
	if err := s.kv.Set(ctx, balanceKey(userID), strconv.FormatFloat(amount, 'f', -1, 64)); err != nil {
		return fmt.Errorf("%w: save balance: %w", game.ErrPersistence, err)
	}
	return nil
}

func (s *Store) LoadStats(ctx context.Context, userID string) game.Stats {
	raw, ok := s.get(ctx, statsKey(userID))
	if !ok {
		return game.Stats{}
	}
	var stats game.Stats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		s.log.Warn("corrupt stats value", "user_id", userID, "err", err)
		return game.Stats{}
	}
	return stats
}

func (s *Store) SaveStats(ctx context.Context, userID string, stats game.Stats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("%w: encode stats: %w", game.ErrPersistence, err)
	}
	if err := s.kv.Set(ctx, statsKey(userID), string(raw)); err != nil {
		return fmt.Errorf("%w: save stats: %w", game.ErrPersistence, err)
	}
	return nil
}

func (s *Store) LoadJackpot(ctx context.Context) float64 {
	return s.loadAmount(ctx, jackpotKey)
}

func (s *Store) loadAmount(ctx context.Context, key string) float64 {
	raw, ok := s.get(ctx, key)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		s.log.Warn("unparsable amount", "key", key, "value", raw)
		return 0
	}
	return v
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Error("kv read failed", "key", key, "err", err)
		return "", false
	}
	return raw, ok
}
