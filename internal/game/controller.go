package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Deps struct {
	Odds     *OddsTable
	Store    BalanceStore
	Reporter Reporter
	Resolver *Resolver
	Logger   *slog.Logger

	// ResolveDelay is the animation period spent in Resolving.
	ResolveDelay  time.Duration
	MinWithdrawal float64

	// Pause waits out the resolve delay; defaults to time.Sleep.
	Pause func(time.Duration)
	Now   func() time.Time
}

// Controller owns the session and the in-memory balance of one user. Every
// transition is serialised; the resolve delay is waited without holding the
// lock so inputs arriving meanwhile see Resolving and get ErrSessionBusy.
type Controller struct {
	userID string

	mu      sync.Mutex
	session *Session
	balance float64

	odds     *OddsTable
	store    BalanceStore
	reporter Reporter
	resolver *Resolver
	settler  *Settler
	log      *slog.Logger

	delay         time.Duration
	minWithdrawal float64
	pause         func(time.Duration)
	now           func() time.Time

	lastActive time.Time

	// emitMu is taken before mu is released so listeners observe transitions
	// in the order they happened.
	emitMu sync.Mutex
	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

func NewController(ctx context.Context, userID string, deps Deps) (*Controller, error) {
	userID = strings.TrimSpace(userID)
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, errors.New("controller needs a balance store")
	}
	if deps.Odds == nil {
		deps.Odds = DefaultOdds()
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	if deps.Resolver == nil {
		deps.Resolver = NewResolver(nil, MissStrict)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MinWithdrawal <= 0 {
		deps.MinWithdrawal = DefaultMinWithdrawal
	}
	if deps.Pause == nil {
		deps.Pause = time.Sleep
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger.With(slog.String("component", "controller"), slog.String("user_id", userID))

	c := &Controller{
		userID:        userID,
		session:       NewSession(deps.Odds),
		balance:       deps.Store.Load(ctx, userID).Amount,
		odds:          deps.Odds,
		store:         deps.Store,
		reporter:      deps.Reporter,
		resolver:      deps.Resolver,
		settler:       NewSettler(deps.Odds, deps.Store, deps.Reporter, logger),
		log:           logger,
		delay:         deps.ResolveDelay,
		minWithdrawal: deps.MinWithdrawal,
		pause:         deps.Pause,
		now:           deps.Now,
		subs:          make(map[int]func(Event)),
	}
	c.lastActive = c.now()
	return c, nil
}

func (c *Controller) UserID() string { return c.userID }

func (c *Controller) Odds() *OddsTable { return c.odds }

func (c *Controller) Balance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

func (c *Controller) Snapshot() (SessionSnapshot, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot(), c.balance
}

func (c *Controller) Stats(ctx context.Context) Stats {
	return c.store.LoadStats(ctx, c.userID)
}

func (c *Controller) Jackpot(ctx context.Context) float64 {
	return c.store.LoadJackpot(ctx)
}

// Subscribe registers fn for state-change events and returns a function that
// removes it. Events are delivered synchronously, in transition order; fn
// must not drive transitions on the same controller.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) SelectGame(game GameID) error {
	return c.apply(func() error { return c.session.SelectGame(game) })
}

func (c *Controller) SelectOption(option OptionID) error {
	return c.apply(func() error { return c.session.SelectOption(option) })
}

func (c *Controller) SubmitStake(amount float64) error {
	return c.apply(func() error { return c.session.SubmitStake(amount, c.balance) })
}

func (c *Controller) Acknowledge() error {
	return c.apply(c.session.Acknowledge)
}

func (c *Controller) Cancel() error {
	return c.apply(c.session.Cancel)
}

// Play resolves the staked bet. Once Resolving is entered the round always
// runs to completion; ctx cancellation does not abort it. A non-nil error
// wrapping ErrPersistence comes with a complete Round.
func (c *Controller) Play(ctx context.Context) (Round, error) {
	c.mu.Lock()
	from := c.session.State()
	if err := c.session.BeginResolve(); err != nil {
		c.mu.Unlock()
		return Round{}, err
	}
	round := Round{
		ID:        uuid.NewString(),
		UserID:    c.userID,
		Game:      c.session.Game(),
		Option:    c.session.Option(),
		Stake:     c.session.Stake(),
		StartedAt: c.now().UTC(),
	}
	ev := c.eventLocked(from, nil)
	c.unlockAndEmit(ev)

	c.log.Debug("resolving", "round_id", round.ID, "game", round.Game, "option", round.Option, "stake", round.Stake)
	if c.delay > 0 {
		c.pause(c.delay)
	}
	outcome := c.resolver.Resolve(round.Game, round.Option)
	round.Outcome = outcome

	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	round.BalanceBefore = c.balance
	res, err := c.settler.Settle(ctx, SettleInput{
		UserID:  c.userID,
		Game:    round.Game,
		Option:  round.Option,
		Stake:   round.Stake,
		Balance: c.balance,
		Outcome: outcome,
	})
	if err != nil && !errors.Is(err, ErrPersistence) {
		from = c.session.State()
		c.session.reset()
		ev = c.eventLocked(from, nil)
		c.unlockAndEmit(ev)
		c.log.Error("round aborted", "round_id", round.ID, "err", err)
		return Round{}, err
	}
	c.balance = res.NewBalance
	round.Settlement = res.Record
	round.BalanceAfter = res.NewBalance
	round.ResolvedAt = c.now().UTC()

	from = c.session.State()
	if rerr := c.session.Resolved(outcome); rerr != nil {
		c.mu.Unlock()
		return round, rerr
	}
	ev = c.eventLocked(from, &round)
	c.unlockAndEmit(ev)

	c.log.Info("round settled",
		"round_id", round.ID,
		"game", round.Game,
		"option", round.Option,
		"stake", round.Stake,
		"won", outcome.Won,
		"balance", round.BalanceAfter,
	)
	return round, err
}

// PlaceBet runs a whole round from a clean session: select, stake, play.
// The session is left in Resolved; callers acknowledge when the result has
// been shown.
func (c *Controller) PlaceBet(ctx context.Context, game GameID, option OptionID, stake float64) (Round, error) {
	if err := c.SelectGame(game); err != nil {
		return Round{}, err
	}
	if err := c.SelectOption(option); err != nil {
		return Round{}, err
	}
	if err := c.SubmitStake(stake); err != nil {
		return Round{}, err
	}
	return c.Play(ctx)
}

// Deposit credits the local advisory balance, e.g. after the host confirms a
// top-up.
func (c *Controller) Deposit(ctx context.Context, amount float64) (float64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	c.mu.Lock()
	next, _ := decimal.NewFromFloat(c.balance).Add(decimal.NewFromFloat(amount)).Float64()
	c.balance = next
	c.lastActive = c.now()
	err := c.store.Save(ctx, c.userID, next)
	c.mu.Unlock()
	if err != nil {
		c.log.Error("deposit write failed", "amount", amount, "err", err)
		return next, fmt.Errorf("deposit: %w", asPersistence(err))
	}

	stats := c.store.LoadStats(ctx, c.userID)
	stats.TotalDeposits, _ = decimal.NewFromFloat(stats.TotalDeposits).Add(decimal.NewFromFloat(amount)).Float64()
	if err := c.store.SaveStats(ctx, c.userID, stats); err != nil {
		c.log.Warn("stats write failed", "err", err)
	}
	c.log.Info("deposit credited", "amount", amount, "balance", next)
	return next, nil
}

// RequestWithdrawal files a withdrawal with the host. The balance is debited
// by the host once it pays out, not here.
func (c *Controller) RequestWithdrawal(ctx context.Context, amount float64, wallet string) (Report, error) {
	if err := validateAmount(amount); err != nil {
		return Report{}, err
	}
	if amount < c.minWithdrawal {
		return Report{}, fmt.Errorf("%w: minimum withdrawal is %.2f", ErrBelowMinimum, c.minWithdrawal)
	}
	if amount > c.Balance() {
		return Report{}, ErrInsufficientFunds
	}
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return Report{}, ErrMissingWallet
	}
	r := WithdrawalReport(c.userID, amount, wallet)
	c.reporter.Dispatch(r)
	c.log.Info("withdrawal requested", "amount", amount)
	return r, nil
}

func (c *Controller) MinWithdrawal() float64 { return c.minWithdrawal }

func validateAmount(amount float64) error {
	if err := ValidateStake(amount); err != nil {
		return ErrInvalidAmount
	}
	return nil
}

func (c *Controller) apply(fn func() error) error {
	c.mu.Lock()
	from := c.session.State()
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	if from == c.session.State() && from == StateIdle {
		c.mu.Unlock()
		return nil
	}
	ev := c.eventLocked(from, nil)
	c.unlockAndEmit(ev)
	return nil
}

func (c *Controller) eventLocked(from State, round *Round) Event {
	c.lastActive = c.now()
	return Event{
		UserID:  c.userID,
		From:    from,
		To:      c.session.State(),
		Session: c.session.Snapshot(),
		Balance: c.balance,
		Round:   round,
		At:      c.now().UTC(),
	}
}

// unlockAndEmit releases mu and delivers ev. Must be called with mu held.
func (c *Controller) unlockAndEmit(ev Event) {
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	c.emit(ev)
}

// touch marks the controller as in use.
func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActive = c.now()
	c.mu.Unlock()
}

// idleSince reports whether the session is Idle and has seen no activity
// after cutoff.
func (c *Controller) idleSince(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State() == StateIdle && c.lastActive.Before(cutoff)
}

func (c *Controller) emit(ev Event) {
	c.subMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
