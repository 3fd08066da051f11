package game

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type GameID string

type OptionID string

const (
	Basketball GameID = "basketball"
	Football   GameID = "football"
	Dice       GameID = "dice"
)

const (
	OptionGoal OptionID = "goal"
	OptionMiss OptionID = "miss"
	OptionEven OptionID = "even"
	OptionOdd  OptionID = "odd"
	OptionMore OptionID = "more"
	OptionLess OptionID = "less"
)

const (
	ActionPlaceBet          = "place_bet"
	ActionWithdrawalRequest = "withdrawal_request"

	ResultWin  = "win"
	ResultLose = "lose"

	DefaultMinWithdrawal = 50.0
)

var (
	ErrInvalidOption     = errors.New("invalid option for game")
	ErrInvalidStake      = errors.New("stake must be a positive number")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSessionBusy       = errors.New("session busy: a bet is in flight")
	ErrUnknownOption     = errors.New("unknown game option")
	ErrPersistence       = errors.New("persistence failed")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrBelowMinimum      = errors.New("amount below minimum")
	ErrMissingWallet     = errors.New("wallet address is required")
	ErrMissingUser       = errors.New("user id is required")
)

// ParseAmount accepts the same loose numeric input the UI collects and
// rejects anything that is not a finite positive number.
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 0, ErrInvalidStake
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStake, raw)
	}
	if err := ValidateStake(v); err != nil {
		return 0, err
	}
	return v, nil
}

func ValidateStake(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidStake
	}
	return nil
}

func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	return nil
}

// NumericUserID mirrors how the host parses the identity: a leading integer
// or nothing at all.
func NumericUserID(userID string) *int64 {
	s := strings.TrimSpace(userID)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
