package game

import "fmt"

type State string

const (
	StateIdle           State = "idle"
	StateGameSelected   State = "game_selected"
	StateOptionSelected State = "option_selected"
	StateStaked         State = "staked"
	StateResolving      State = "resolving"
	StateResolved       State = "resolved"
)

// Session is the state of one betting round. It does no I/O and is not safe
// for concurrent use; Controller owns and serialises it.
//
// Invariants: option set implies game set, stake set implies option set.
type Session struct {
	state   State
	game    GameID
	option  OptionID
	stake   float64
	outcome *OutcomeResult
	odds    *OddsTable
}

func NewSession(odds *OddsTable) *Session {
	if odds == nil {
		odds = DefaultOdds()
	}
	return &Session{state: StateIdle, odds: odds}
}

func (s *Session) State() State            { return s.state }
func (s *Session) Game() GameID            { return s.game }
func (s *Session) Option() OptionID        { return s.option }
func (s *Session) Stake() float64          { return s.stake }
func (s *Session) Outcome() *OutcomeResult { return s.outcome }

func (s *Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{State: s.state, Game: s.game, Option: s.option, Stake: s.stake}
}

func (s *Session) busy() bool {
	switch s.state {
	case StateStaked, StateResolving, StateResolved:
		return true
	}
	return false
}

func (s *Session) SelectGame(game GameID) error {
	if s.busy() {
		return ErrSessionBusy
	}
	if !s.odds.HasGame(game) {
		return fmt.Errorf("%w: unknown game %q", ErrInvalidOption, game)
	}
	s.state = StateGameSelected
	s.game = game
	s.option = ""
	s.stake = 0
	return nil
}

func (s *Session) SelectOption(option OptionID) error {
	if s.busy() {
		return ErrSessionBusy
	}
	if s.state == StateIdle {
		return fmt.Errorf("%w: select a game first", ErrInvalidTransition)
	}
	if !s.odds.Valid(s.game, option) {
		return fmt.Errorf("%w: %q is not offered for %s", ErrInvalidOption, option, s.game)
	}
	s.state = StateOptionSelected
	s.option = option
	s.stake = 0
	return nil
}

// SubmitStake validates amount against balance; on rejection nothing changes.
func (s *Session) SubmitStake(amount, balance float64) error {
	if s.busy() {
		return ErrSessionBusy
	}
	if s.state != StateOptionSelected {
		return fmt.Errorf("%w: select an option first", ErrInvalidTransition)
	}
	if err := ValidateStake(amount); err != nil {
		return err
	}
	if amount > balance {
		return ErrInsufficientFunds
	}
	if _, err := s.odds.Lookup(s.game, s.option); err != nil {
		return err
	}
	s.state = StateStaked
	s.stake = amount
	return nil
}

func (s *Session) BeginResolve() error {
	switch s.state {
	case StateStaked:
		s.state = StateResolving
		return nil
	case StateResolving:
		return ErrSessionBusy
	default:
		return fmt.Errorf("%w: no stake to resolve", ErrInvalidTransition)
	}
}

func (s *Session) Resolved(outcome OutcomeResult) error {
	if s.state != StateResolving {
		return fmt.Errorf("%w: nothing is resolving", ErrInvalidTransition)
	}
	s.state = StateResolved
	s.outcome = &outcome
	return nil
}

func (s *Session) Acknowledge() error {
	if s.state != StateResolved {
		return fmt.Errorf("%w: no result to acknowledge", ErrInvalidTransition)
	}
	s.reset()
	return nil
}

// Cancel is back-navigation. It is a no-op when idle.
func (s *Session) Cancel() error {
	switch s.state {
	case StateIdle:
		return nil
	case StateGameSelected, StateOptionSelected, StateStaked:
		s.reset()
		return nil
	case StateResolving:
		return ErrSessionBusy
	default:
		return fmt.Errorf("%w: acknowledge the result instead", ErrInvalidTransition)
	}
}

func (s *Session) reset() {
	s.state = StateIdle
	s.game = ""
	s.option = ""
	s.stake = 0
	s.outcome = nil
}
