package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestController(t *testing.T, balance float64, rng RandomSource, deps Deps) (*Controller, *memStore, *captureReporter) {
	t.Helper()
	store := newMemStore()
	store.balances["12345"] = balance
	rep := &captureReporter{}
	deps.Store = store
	deps.Reporter = rep
	deps.Resolver = NewResolver(rng, deps.Resolver.rule())
	c, err := NewController(context.Background(), "12345", deps)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c, store, rep
}

func (r *Resolver) rule() MissRule {
	if r == nil {
		return MissStrict
	}
	return r.missRule
}

func TestControllerDiceWin(t *testing.T) {
	c, store, rep := newTestController(t, 100, NewFixedSource(FaceValue(4)), Deps{})

	round, err := c.PlaceBet(context.Background(), Dice, OptionEven, 20)
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if !round.Outcome.Won || round.Outcome.DiceFace != 4 {
		t.Fatalf("unexpected outcome %+v", round.Outcome)
	}
	if round.BalanceBefore != 100 || round.BalanceAfter != 116 || c.Balance() != 116 {
		t.Fatalf("unexpected balances %+v / %v", round, c.Balance())
	}
	if got := store.Load(context.Background(), "12345").Amount; got != 116 {
		t.Fatalf("persisted balance got=%v", got)
	}
	if snap, _ := c.Snapshot(); snap.State != StateResolved {
		t.Fatalf("expected resolved, got %s", snap.State)
	}
	if err := c.Acknowledge(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if snap, _ := c.Snapshot(); snap != (SessionSnapshot{State: StateIdle}) {
		t.Fatalf("expected clean idle session, got %+v", snap)
	}
	if len(rep.all()) != 1 {
		t.Fatalf("expected one report")
	}
}

func TestControllerFootballMissLoses(t *testing.T) {
	c, _, rep := newTestController(t, 50, NewFixedSource(ScoredValue(true)), Deps{})

	round, err := c.PlaceBet(context.Background(), Football, OptionMiss, 10)
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if round.Outcome.Won || c.Balance() != 40 {
		t.Fatalf("miss on a goal must lose: %+v balance=%v", round.Outcome, c.Balance())
	}
	if r := rep.all()[0]; r.GameResult != ResultLose || *r.Coefficient != 1.3 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestControllerSymmetricMiss(t *testing.T) {
	deps := Deps{Resolver: NewResolver(nil, MissSymmetric)}
	c, _, _ := newTestController(t, 50, NewFixedSource(ScoredValue(false)), deps)

	round, err := c.PlaceBet(context.Background(), Football, OptionMiss, 10)
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if !round.Outcome.Won || c.Balance() != 53 {
		t.Fatalf("symmetric miss should pay 1.3x: %+v balance=%v", round.Outcome, c.Balance())
	}
}

func TestControllerInsufficientFunds(t *testing.T) {
	c, store, rep := newTestController(t, 30, nil, Deps{})

	_, err := c.PlaceBet(context.Background(), Dice, OptionOdd, 40)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if c.Balance() != 30 || store.saves != 0 || len(rep.all()) != 0 {
		t.Fatalf("rejected stake must have no effects")
	}
	if snap, _ := c.Snapshot(); snap.State != StateOptionSelected {
		t.Fatalf("expected option_selected, got %s", snap.State)
	}
}

func TestControllerBusyWhileResolving(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	deps := Deps{
		ResolveDelay: time.Second,
		Pause: func(time.Duration) {
			close(entered)
			<-release
		},
	}
	c, _, _ := newTestController(t, 100, NewFixedSource(FaceValue(1)), deps)
	if err := c.SelectGame(Dice); err != nil {
		t.Fatal(err)
	}
	if err := c.SelectOption(OptionLess); err != nil {
		t.Fatal(err)
	}
	if err := c.SubmitStake(10); err != nil {
		t.Fatal(err)
	}

	var (
		wg    sync.WaitGroup
		round Round
		perr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		round, perr = c.Play(context.Background())
	}()
	<-entered

	if snap, _ := c.Snapshot(); snap.State != StateResolving {
		t.Fatalf("expected resolving, got %s", snap.State)
	}
	if err := c.SelectGame(Football); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("select during resolve got %v", err)
	}
	if err := c.SubmitStake(5); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("stake during resolve got %v", err)
	}
	if _, err := c.Play(context.Background()); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("second play got %v", err)
	}
	if err := c.Cancel(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("cancel during resolve got %v", err)
	}

	close(release)
	wg.Wait()
	if perr != nil {
		t.Fatalf("play: %v", perr)
	}
	if !round.Outcome.Won || c.Balance() != 108 {
		t.Fatalf("unexpected result %+v balance=%v", round.Outcome, c.Balance())
	}
}

func TestControllerPlayIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	deps := Deps{ResolveDelay: time.Millisecond, Pause: func(time.Duration) { cancel() }}
	c, store, _ := newTestController(t, 100, NewFixedSource(FaceValue(6)), deps)

	round, err := c.PlaceBet(ctx, Dice, OptionMore, 10)
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if round.BalanceAfter != 108 || store.Load(context.Background(), "12345").Amount != 108 {
		t.Fatalf("round must complete after cancellation")
	}
}

func TestControllerPersistenceFailure(t *testing.T) {
	c, store, rep := newTestController(t, 100, NewFixedSource(FaceValue(3)), Deps{})
	store.failSave = true

	round, err := c.PlaceBet(context.Background(), Dice, OptionEven, 20)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if round.ID == "" || round.BalanceAfter != 80 || c.Balance() != 80 {
		t.Fatalf("round must be returned with the new balance: %+v", round)
	}
	if snap, _ := c.Snapshot(); snap.State != StateResolved {
		t.Fatalf("expected resolved, got %s", snap.State)
	}
	if len(rep.all()) != 1 {
		t.Fatalf("report should still go out")
	}
}

func TestControllerEvents(t *testing.T) {
	c, _, _ := newTestController(t, 100, NewFixedSource(FaceValue(2)), Deps{})
	var got []State
	unsubscribe := c.Subscribe(func(ev Event) {
		got = append(got, ev.To)
		if ev.To == StateResolved && (ev.Round == nil || ev.Balance != 116) {
			t.Errorf("resolved event should carry the round and balance: %+v", ev)
		}
	})

	if _, err := c.PlaceBet(context.Background(), Dice, OptionEven, 20); err != nil {
		t.Fatal(err)
	}
	if err := c.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	want := []State{StateGameSelected, StateOptionSelected, StateStaked, StateResolving, StateResolved, StateIdle}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	unsubscribe()
	_ = c.SelectGame(Dice)
	if len(got) != len(want) {
		t.Fatalf("unsubscribed listener still called")
	}
}

func TestControllerDeposit(t *testing.T) {
	c, store, _ := newTestController(t, 10, nil, Deps{})
	next, err := c.Deposit(context.Background(), 15.5)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if next != 25.5 || store.Load(context.Background(), "12345").Amount != 25.5 {
		t.Fatalf("unexpected balance %v", next)
	}
	if s := c.Stats(context.Background()); s.TotalDeposits != 15.5 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if _, err := c.Deposit(context.Background(), -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative deposit got %v", err)
	}
}

func TestControllerWithdrawal(t *testing.T) {
	c, _, rep := newTestController(t, 80, nil, Deps{})
	ctx := context.Background()

	if _, err := c.RequestWithdrawal(ctx, 20, "wallet"); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("below minimum got %v", err)
	}
	if _, err := c.RequestWithdrawal(ctx, 100, "wallet"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("over balance got %v", err)
	}
	if _, err := c.RequestWithdrawal(ctx, 60, " "); !errors.Is(err, ErrMissingWallet) {
		t.Fatalf("missing wallet got %v", err)
	}
	r, err := c.RequestWithdrawal(ctx, 60, "UQ-wallet")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if r.Action != ActionWithdrawalRequest || r.Amount != 60 || *r.UserID != 12345 {
		t.Fatalf("unexpected report %+v", r)
	}
	if c.Balance() != 80 {
		t.Fatalf("withdrawal request must not debit locally")
	}
	if len(rep.all()) != 1 {
		t.Fatalf("expected the request to be reported")
	}
}

func TestNewControllerRequiresUser(t *testing.T) {
	if _, err := NewController(context.Background(), "  ", Deps{Store: newMemStore()}); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestRegistryReturnsSameController(t *testing.T) {
	store := newMemStore()
	store.balances["7"] = 42
	reg := NewRegistry(Deps{Store: store})

	var events int
	reg.OnEvent(func(Event) { events++ })

	a, err := reg.Get(context.Background(), "7")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := reg.Get(context.Background(), " 7 ")
	if a != b {
		t.Fatalf("expected the same controller")
	}
	if a.Balance() != 42 || reg.Len() != 1 {
		t.Fatalf("unexpected registry state")
	}
	_ = a.SelectGame(Dice)
	if events != 1 {
		t.Fatalf("registry listener not attached, events=%d", events)
	}
}
