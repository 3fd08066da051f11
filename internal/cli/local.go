package cli

import (
	"context"

	"minibet/internal/game"
)

// Backend is what the terminal client drives: an in-process controller or a
// remote minibet-api server.
type Backend interface {
	Games(ctx context.Context) ([]game.GameInfo, error)
	Session(ctx context.Context) (SessionState, error)
	SelectGame(ctx context.Context, g game.GameID) (SessionState, error)
	SelectOption(ctx context.Context, o game.OptionID) (SessionState, error)
	Stake(ctx context.Context, amount float64) (SessionState, error)
	Play(ctx context.Context) (SessionState, error)
	Ack(ctx context.Context) (SessionState, error)
	Cancel(ctx context.Context) (SessionState, error)
	Balance(ctx context.Context) (BalanceInfo, error)
	Profile(ctx context.Context) (Profile, error)
	Withdraw(ctx context.Context, amount float64, wallet string) (game.Report, error)
}

var (
	_ Backend = (*Client)(nil)
	_ Backend = (*Local)(nil)
)

// Local drives a controller in the same process.
type Local struct {
	c   *game.Controller
	bot string
}

func NewLocal(c *game.Controller, botUsername string) *Local {
	return &Local{c: c, bot: botUsername}
}

func (l *Local) Controller() *game.Controller { return l.c }

func (l *Local) state() SessionState {
	snap, bal := l.c.Snapshot()
	return SessionState{UserID: l.c.UserID(), Session: snap, Balance: bal}
}

func (l *Local) Games(context.Context) ([]game.GameInfo, error) {
	return game.Catalog(l.c.Odds()), nil
}

func (l *Local) Session(context.Context) (SessionState, error) {
	return l.state(), nil
}

func (l *Local) SelectGame(_ context.Context, g game.GameID) (SessionState, error) {
	err := l.c.SelectGame(g)
	return l.state(), err
}

func (l *Local) SelectOption(_ context.Context, o game.OptionID) (SessionState, error) {
	err := l.c.SelectOption(o)
	return l.state(), err
}

func (l *Local) Stake(_ context.Context, amount float64) (SessionState, error) {
	err := l.c.SubmitStake(amount)
	return l.state(), err
}

func (l *Local) Play(ctx context.Context) (SessionState, error) {
	round, err := l.c.Play(ctx)
	st := l.state()
	if round.ID != "" {
		st.Round = &round
	}
	return st, err
}

func (l *Local) Ack(context.Context) (SessionState, error) {
	err := l.c.Acknowledge()
	return l.state(), err
}

func (l *Local) Cancel(context.Context) (SessionState, error) {
	err := l.c.Cancel()
	return l.state(), err
}

func (l *Local) Balance(ctx context.Context) (BalanceInfo, error) {
	return BalanceInfo{UserID: l.c.UserID(), Balance: l.c.Balance(), Jackpot: l.c.Jackpot(ctx)}, nil
}

func (l *Local) Profile(ctx context.Context) (Profile, error) {
	return Profile{
		UserID:        l.c.UserID(),
		Balance:       l.c.Balance(),
		Stats:         l.c.Stats(ctx),
		MinWithdrawal: l.c.MinWithdrawal(),
		ReferralCode:  "REF" + l.c.UserID(),
		Bot:           l.bot,
	}, nil
}

func (l *Local) Withdraw(ctx context.Context, amount float64, wallet string) (game.Report, error) {
	return l.c.RequestWithdrawal(ctx, amount, wallet)
}
