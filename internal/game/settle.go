package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// BalanceStore is the persistence the engine needs. internal/balance
// implements it over a key-value collaborator.
type BalanceStore interface {
	Load(ctx context.Context, userID string) Balance
	Save(ctx context.Context, userID string, amount float64) error
	LoadStats(ctx context.Context, userID string) Stats
	SaveStats(ctx context.Context, userID string, stats Stats) error
	LoadJackpot(ctx context.Context) float64
}

// Reporter takes a report and returns immediately. Delivery is best-effort
// and its outcome is never observed by the caller.
type Reporter interface {
	Dispatch(r Report)
}

type nopReporter struct{}

func (nopReporter) Dispatch(Report) {}

// Compute applies the payout rule. With stake <= balance the result is never
// negative.
func Compute(balance, stake, multiplier float64, won bool) (SettlementRecord, float64) {
	b := decimal.NewFromFloat(balance)
	s := decimal.NewFromFloat(stake)
	delta := s.Neg()
	if won {
		delta = delta.Add(s.Mul(decimal.NewFromFloat(multiplier)))
	}
	newBalance, _ := b.Add(delta).Float64()
	d, _ := delta.Float64()
	return SettlementRecord{
		StakeAmount: stake,
		Won:         won,
		Multiplier:  multiplier,
		PayoutDelta: d,
	}, newBalance
}

type SettleInput struct {
	UserID  string
	Game    GameID
	Option  OptionID
	Stake   float64
	Balance float64
	Outcome OutcomeResult
}

type SettleResult struct {
	Record     SettlementRecord
	NewBalance float64
	Report     Report
}

type Settler struct {
	odds     *OddsTable
	store    BalanceStore
	reporter Reporter
	log      *slog.Logger
}

func NewSettler(odds *OddsTable, store BalanceStore, reporter Reporter, logger *slog.Logger) *Settler {
	if odds == nil {
		odds = DefaultOdds()
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Settler{odds: odds, store: store, reporter: reporter, log: logger}
}

// Settle persists the new balance before returning and then hands the report
// to the reporter. A persistence failure is returned wrapped in
// ErrPersistence together with a fully populated result; the report is still
// dispatched because the round did happen.
func (s *Settler) Settle(ctx context.Context, in SettleInput) (SettleResult, error) {
	multiplier, err := s.odds.Lookup(in.Game, in.Option)
	if err != nil {
		return SettleResult{}, err
	}
	record, newBalance := Compute(in.Balance, in.Stake, multiplier, in.Outcome.Won)
	res := SettleResult{
		Record:     record,
		NewBalance: newBalance,
		Report:     BetReport(in.UserID, in.Game, in.Option, in.Stake, multiplier, in.Outcome.Won),
	}

	var saveErr error
	if err := s.store.Save(ctx, in.UserID, newBalance); err != nil {
		s.log.Error("balance write failed", "user_id", in.UserID, "balance", newBalance, "err", err)
		saveErr = fmt.Errorf("settle %s/%s: %w", in.Game, in.Option, asPersistence(err))
	} else {
		s.recordStats(ctx, in.UserID, in.Outcome.Won)
	}

	s.reporter.Dispatch(res.Report)
	return res, saveErr
}

func (s *Settler) recordStats(ctx context.Context, userID string, won bool) {
	stats := s.store.LoadStats(ctx, userID)
	stats.BetsCount++
	if won {
		stats.WinsCount++
	}
	if err := s.store.SaveStats(ctx, userID, stats); err != nil {
		s.log.Warn("stats write failed", "user_id", userID, "err", err)
	}
}

func asPersistence(err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func BetReport(userID string, game GameID, option OptionID, stake, multiplier float64, won bool) Report {
	result := ResultLose
	if won {
		result = ResultWin
	}
	coef := multiplier
	return Report{
		UserID:      NumericUserID(userID),
		Action:      ActionPlaceBet,
		GameType:    game,
		BetAmount:   stake,
		GameResult:  result,
		Coefficient: &coef,
		BetOption:   option,
		RawUserID:   userID,
	}
}

func WithdrawalReport(userID string, amount float64, wallet string) Report {
	return Report{
		UserID:        NumericUserID(userID),
		Action:        ActionWithdrawalRequest,
		Amount:        amount,
		WalletAddress: wallet,
		RawUserID:     userID,
	}
}
