package game

import "time"

type Balance struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

type Stats struct {
	Username         string  `json:"username,omitempty"`
	BetsCount        int64   `json:"bets_count"`
	WinsCount        int64   `json:"wins_count"`
	TotalDeposits    float64 `json:"total_deposits"`
	TotalWithdrawals float64 `json:"total_withdrawals"`
}

type OutcomeResult struct {
	Won      bool `json:"won"`
	Scored   bool `json:"scored,omitempty"`
	DiceFace int  `json:"dice_face,omitempty"`
}

type SettlementRecord struct {
	StakeAmount float64 `json:"stake_amount"`
	Won         bool    `json:"won"`
	Multiplier  float64 `json:"multiplier"`
	PayoutDelta float64 `json:"payout_delta"`
}

type Round struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	Game          GameID           `json:"game"`
	Option        OptionID         `json:"option"`
	Stake         float64          `json:"stake"`
	Outcome       OutcomeResult    `json:"outcome"`
	Settlement    SettlementRecord `json:"settlement"`
	BalanceBefore float64          `json:"balance_before"`
	BalanceAfter  float64          `json:"balance_after"`
	StartedAt     time.Time        `json:"started_at"`
	ResolvedAt    time.Time        `json:"resolved_at"`
}

// Report is the payload handed to the host messaging channel. Fields not
// used by an action are omitted.
type Report struct {
	UserID        *int64   `json:"user_id"`
	Action        string   `json:"action"`
	GameType      GameID   `json:"game_type,omitempty"`
	BetAmount     float64  `json:"bet_amount,omitempty"`
	GameResult    string   `json:"game_result,omitempty"`
	Coefficient   *float64 `json:"coefficient,omitempty"`
	BetOption     OptionID `json:"bet_option,omitempty"`
	Amount        float64  `json:"amount,omitempty"`
	WalletAddress string   `json:"wallet_address,omitempty"`

	// RawUserID keeps the opaque identity for sinks that key by it; it is
	// not part of the wire payload.
	RawUserID string `json:"-"`
}

type SessionSnapshot struct {
	State  State    `json:"state"`
	Game   GameID   `json:"game,omitempty"`
	Option OptionID `json:"option,omitempty"`
	Stake  float64  `json:"stake,omitempty"`
}

type Event struct {
	UserID  string          `json:"user_id"`
	From    State           `json:"from"`
	To      State           `json:"to"`
	Session SessionSnapshot `json:"session"`
	Balance float64         `json:"balance"`
	Round   *Round          `json:"round,omitempty"`
	At      time.Time       `json:"at"`
}

type OptionInfo struct {
	ID         OptionID `json:"id"`
	Label      string   `json:"label"`
	Multiplier float64  `json:"multiplier"`
}

type GameInfo struct {
	ID      GameID       `json:"id"`
	Emoji   string       `json:"emoji"`
	Title   string       `json:"title"`
	Options []OptionInfo `json:"options"`
}

var gameDisplay = map[GameID]struct {
	emoji string
	title string
}{
	Basketball: {"🏀", "Basketball"},
	Dice:       {"🎲", "Dice"},
	Football:   {"⚽", "Football"},
}

var optionLabels = map[OptionID]string{
	OptionGoal: "Goal",
	OptionMiss: "Miss",
	OptionEven: "Even",
	OptionOdd:  "Odd",
	OptionMore: "More than 3",
	OptionLess: "Less than 4",
}

// Catalog describes every game in the odds table for rendering.
func Catalog(odds *OddsTable) []GameInfo {
	out := make([]GameInfo, 0, len(odds.Games()))
	for _, g := range odds.Games() {
		info := GameInfo{ID: g, Emoji: "🎮", Title: string(g)}
		if d, ok := gameDisplay[g]; ok {
			info.Emoji = d.emoji
			info.Title = d.title
		}
		for _, o := range odds.Options(g) {
			m, _ := odds.Lookup(g, o)
			label, ok := optionLabels[o]
			if !ok {
				label = string(o)
			}
			info.Options = append(info.Options, OptionInfo{ID: o, Label: label, Multiplier: m})
		}
		out = append(out, info)
	}
	return out
}
