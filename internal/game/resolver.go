package game

import (
	"fmt"
	"strings"
)

// MissRule decides how a "miss" bet on a ball game is judged.
type MissRule string

const (
	// MissStrict wins only on goal bets; a miss bet always loses.
	MissStrict MissRule = "strict"
	// MissSymmetric lets a miss bet win when no goal is scored.
	MissSymmetric MissRule = "symmetric"
)

func ParseMissRule(v string) (MissRule, error) {
	switch MissRule(strings.ToLower(strings.TrimSpace(v))) {
	case "", MissStrict:
		return MissStrict, nil
	case MissSymmetric:
		return MissSymmetric, nil
	default:
		return "", fmt.Errorf("unknown miss rule %q (want strict or symmetric)", v)
	}
}

type Resolver struct {
	rng      RandomSource
	missRule MissRule
}

func NewResolver(rng RandomSource, missRule MissRule) *Resolver {
	if rng == nil {
		rng = DefaultSource()
	}
	if missRule == "" {
		missRule = MissStrict
	}
	return &Resolver{rng: rng, missRule: missRule}
}

// Resolve makes exactly one draw from the random source.
func (r *Resolver) Resolve(game GameID, option OptionID) OutcomeResult {
	switch game {
	case Basketball, Football:
		scored := r.rng.Float64() > 0.5
		won := scored && option == OptionGoal
		if r.missRule == MissSymmetric && option == OptionMiss {
			won = !scored
		}
		return OutcomeResult{Won: won, Scored: scored}
	case Dice:
		face := RollDie(r.rng.Float64())
		return OutcomeResult{Won: DiceWins(option, face), DiceFace: face}
	default:
		return OutcomeResult{}
	}
}

func RollDie(v float64) int {
	face := int(v*6) + 1
	if face < 1 {
		return 1
	}
	if face > 6 {
		return 6
	}
	return face
}

func DiceWins(option OptionID, face int) bool {
	switch option {
	case OptionEven:
		return face%2 == 0
	case OptionOdd:
		return face%2 == 1
	case OptionMore:
		return face > 3
	case OptionLess:
		return face < 4
	default:
		return false
	}
}
