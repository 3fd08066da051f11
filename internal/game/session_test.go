package game

import (
	"errors"
	"testing"
)

func stakedSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(nil)
	if err := s.SelectGame(Dice); err != nil {
		t.Fatalf("select game: %v", err)
	}
	if err := s.SelectOption(OptionEven); err != nil {
		t.Fatalf("select option: %v", err)
	}
	if err := s.SubmitStake(20, 100); err != nil {
		t.Fatalf("stake: %v", err)
	}
	return s
}

func TestSessionHappyPath(t *testing.T) {
	s := stakedSession(t)
	if s.State() != StateStaked || s.Stake() != 20 {
		t.Fatalf("unexpected snapshot %+v", s.Snapshot())
	}
	if err := s.BeginResolve(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Resolved(OutcomeResult{Won: true, DiceFace: 4}); err != nil {
		t.Fatalf("resolved: %v", err)
	}
	if s.Outcome() == nil || !s.Outcome().Won {
		t.Fatalf("outcome not recorded")
	}
	if err := s.Acknowledge(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	snap := s.Snapshot()
	if snap != (SessionSnapshot{State: StateIdle}) {
		t.Fatalf("acknowledge must clear the session, got %+v", snap)
	}
}

func TestSessionReselectClearsDownstream(t *testing.T) {
	s := NewSession(nil)
	_ = s.SelectGame(Football)
	_ = s.SelectOption(OptionMiss)
	if err := s.SelectGame(Dice); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if s.Option() != "" || s.State() != StateGameSelected {
		t.Fatalf("option should be cleared, got %+v", s.Snapshot())
	}
	if err := s.SelectOption(OptionMiss); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("miss is not a dice option, got %v", err)
	}
}

func TestSessionRejections(t *testing.T) {
	s := NewSession(nil)
	if err := s.SelectGame("poker"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("unknown game got %v", err)
	}
	if err := s.SelectOption(OptionEven); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("option from idle got %v", err)
	}
	_ = s.SelectGame(Dice)
	if err := s.SubmitStake(10, 100); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("stake before option got %v", err)
	}
	_ = s.SelectOption(OptionOdd)
	if err := s.SubmitStake(0, 100); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("zero stake got %v", err)
	}
	if err := s.SubmitStake(40, 30); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("over balance got %v", err)
	}
	if s.State() != StateOptionSelected || s.Stake() != 0 {
		t.Fatalf("rejected stake must not change the session: %+v", s.Snapshot())
	}
	if err := s.Acknowledge(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("ack outside resolved got %v", err)
	}
	if err := s.BeginResolve(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resolve without stake got %v", err)
	}
}

func TestSessionBusyStates(t *testing.T) {
	s := stakedSession(t)
	if err := s.SelectGame(Football); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("select game while staked got %v", err)
	}
	_ = s.BeginResolve()
	if err := s.BeginResolve(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("double resolve got %v", err)
	}
	if err := s.SubmitStake(5, 100); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("stake while resolving got %v", err)
	}
	if err := s.Cancel(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("cancel while resolving got %v", err)
	}
	_ = s.Resolved(OutcomeResult{})
	if err := s.SelectOption(OptionOdd); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("select option while resolved got %v", err)
	}
	if err := s.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel while resolved got %v", err)
	}
}

func TestSessionCancel(t *testing.T) {
	s := NewSession(nil)
	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel from idle should be a no-op: %v", err)
	}
	s = stakedSession(t)
	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel staked: %v", err)
	}
	if s.Snapshot() != (SessionSnapshot{State: StateIdle}) {
		t.Fatalf("cancel must reset, got %+v", s.Snapshot())
	}
}
