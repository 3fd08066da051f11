package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"minibet/internal/game"
)

func TestObserveEvent(t *testing.T) {
	m := New()
	m.ObserveEvent(game.Event{To: game.StateResolving})
	m.ObserveEvent(game.Event{To: game.StateResolved, Round: &game.Round{
		Game: game.Dice, Stake: 20, Outcome: game.OutcomeResult{Won: true, DiceFace: 4},
	}})
	m.ObserveEvent(game.Event{To: game.StateResolved, Round: &game.Round{
		Game: game.Dice, Stake: 5,
	}})

	if got := testutil.ToFloat64(m.Rounds.WithLabelValues("dice", "win")); got != 1 {
		t.Fatalf("wins got %v", got)
	}
	if got := testutil.ToFloat64(m.Rounds.WithLabelValues("dice", "lose")); got != 1 {
		t.Fatalf("losses got %v", got)
	}
	if got := testutil.ToFloat64(m.Staked.WithLabelValues("dice")); got != 25 {
		t.Fatalf("staked got %v", got)
	}
	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("resolved")); got != 2 {
		t.Fatalf("transitions got %v", got)
	}
}

func TestObserveError(t *testing.T) {
	m := New()
	m.ObserveError(fmt.Errorf("settle: %w", game.ErrPersistence))
	m.ObserveError(game.ErrSessionBusy)
	m.ObserveError(errors.New("other"))
	if got := testutil.ToFloat64(m.PersistenceFailures); got != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestReportCounters(t *testing.T) {
	m := New()
	m.ReportDelivered("webhook", nil)
	m.ReportDelivered("webhook", errors.New("timeout"))
	m.ReportDropped()
	if got := testutil.ToFloat64(m.Reports.WithLabelValues("webhook", "ok")); got != 1 {
		t.Fatalf("ok got %v", got)
	}
	if got := testutil.ToFloat64(m.Reports.WithLabelValues("webhook", "error")); got != 1 {
		t.Fatalf("error got %v", got)
	}
	if got := testutil.ToFloat64(m.ReportsDropped); got != 1 {
		t.Fatalf("dropped got %v", got)
	}
}
