package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"minibet/internal/app"
	cl "minibet/internal/cli"
	"minibet/internal/config"
	"minibet/internal/game"
)

type globals struct {
	configPath string
	user       string
	apiURL     string
	token      string
	verbose    bool
	lineMode   bool

	cfg config.Config
}

func main() {
	g := &globals{}

	root := &cobra.Command{
		Use:          "minibet",
		Short:        "Mini-game betting client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default minibet.toml or $MINIBET_CONFIG)")
	root.PersistentFlags().StringVarP(&g.user, "user", "u", "", "user id to play as")
	root.PersistentFlags().StringVar(&g.apiURL, "api", "", "minibet-api base URL; empty plays in-process")
	root.PersistentFlags().StringVar(&g.token, "token", "", "API bearer token")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(
		newPlayCmd(g),
		newBetCmd(g),
		newBalanceCmd(g),
		newProfileCmd(g),
		newOddsCmd(g),
		newDepositCmd(g),
		newWithdrawCmd(g),
		newReferralCmd(g),
		newWhoamiCmd(g),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// session is an opened backend plus whatever must be released afterwards.
type session struct {
	backend cl.Backend
	local   *cl.Local
	userID  string
	close   func()
}

func (g *globals) open(ctx context.Context) (*session, error) {
	ids, err := cl.NewIdentityStore("")
	if err != nil {
		return nil, err
	}
	userID, err := ids.Resolve(g.user, g.cfg.User)
	if err != nil {
		return nil, err
	}

	apiURL := strings.TrimSpace(g.apiURL)
	if apiURL == "" {
		apiURL = g.cfg.API.URL
	}
	if apiURL != "" {
		token := g.token
		if token == "" {
			token = g.cfg.API.Token
		}
		return &session{
			backend: cl.NewClient(apiURL, token, userID),
			userID:  userID,
			close:   func() {},
		}, nil
	}

	level := slog.LevelWarn
	var w io.Writer = io.Discard
	if g.verbose {
		level = g.cfg.SlogLevel()
		w = os.Stderr
	}
	a, err := app.New(ctx, g.cfg, app.NewLogger(w, level, false))
	if err != nil {
		return nil, err
	}
	c, err := a.Registry.Get(ctx, userID)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	local := cl.NewLocal(c, g.cfg.Bot.Username)
	return &session{
		backend: local,
		local:   local,
		userID:  userID,
		close: func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				printWarn(fmt.Sprintf("shutdown: %v", err))
			}
		},
	}, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func newPlayCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			if g.lineMode || !isTerminal() {
				return playLines(cmd.Context(), s.backend)
			}
			return runTUI(cmd.Context(), s.backend)
		},
	}
	cmd.Flags().BoolVar(&g.lineMode, "lines", false, "use plain prompts instead of the full-screen UI")
	return cmd
}

// playLines is the prompt-driven loop used when there is no terminal.
func playLines(ctx context.Context, b cl.Backend) error {
	games, err := b.Games(ctx)
	if err != nil {
		return err
	}
	for {
		bal, err := b.Balance(ctx)
		if err != nil {
			return err
		}
		accent.Printf("\nBalance: %s\n", formatAmount(bal.Balance))

		choice, err := promptChoice("Game", append(gameIDs(games), "quit"), "")
		if err != nil {
			return ignoreEOF(err)
		}
		if choice == "quit" {
			return nil
		}
		info, _ := findGame(games, game.GameID(choice))
		if _, err := b.SelectGame(ctx, info.ID); err != nil {
			return err
		}
		option, err := promptChoice("Bet on", append(optionIDs(info), "back"), "")
		if err != nil {
			return ignoreEOF(err)
		}
		if option == "back" {
			if _, err := b.Cancel(ctx); err != nil {
				return err
			}
			continue
		}
		if _, err := b.SelectOption(ctx, game.OptionID(option)); err != nil {
			return err
		}
		for {
			amount, err := promptAmount("Stake")
			if err != nil {
				return ignoreEOF(err)
			}
			if _, err := b.Stake(ctx, amount); err != nil {
				if errors.Is(err, game.ErrInsufficientFunds) || errors.Is(err, game.ErrInvalidStake) {
					printWarn(err.Error())
					continue
				}
				return err
			}
			break
		}
		printInfo("Rolling...")
		st, err := b.Play(ctx)
		if err != nil && !errors.Is(err, game.ErrPersistence) {
			return err
		}
		renderRound(st)
		if err != nil {
			printWarn("Balance could not be saved: " + err.Error())
		}
		if _, err := b.Ack(ctx); err != nil {
			return err
		}
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func newBetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "bet <game> <option> <stake>",
		Short:   "Place a single bet",
		Example: "  minibet bet dice even 20\n  minibet bet football goal 5",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			stake, err := game.ParseAmount(args[2])
			if err != nil {
				return err
			}
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			ctx := cmd.Context()
			b := s.backend

			// A leftover round from an interrupted run is cleared first.
			if st, err := b.Session(ctx); err == nil && st.Session.State == game.StateResolved {
				_, _ = b.Ack(ctx)
			} else if err == nil && st.Session.State != game.StateIdle {
				_, _ = b.Cancel(ctx)
			}

			if _, err := b.SelectGame(ctx, game.GameID(strings.ToLower(args[0]))); err != nil {
				return err
			}
			if _, err := b.SelectOption(ctx, game.OptionID(strings.ToLower(args[1]))); err != nil {
				_, _ = b.Cancel(ctx)
				return err
			}
			if _, err := b.Stake(ctx, stake); err != nil {
				_, _ = b.Cancel(ctx)
				return err
			}
			st, playErr := b.Play(ctx)
			if playErr != nil && !errors.Is(playErr, game.ErrPersistence) {
				return playErr
			}
			renderRound(st)
			if _, err := b.Ack(ctx); err != nil {
				return err
			}
			return playErr
		},
	}
}

func newBalanceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show balance and jackpot",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			b, err := s.backend.Balance(cmd.Context())
			if err != nil {
				return err
			}
			renderBalance(b)
			return nil
		},
	}
}

func newProfileCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show betting statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			p, err := s.backend.Profile(cmd.Context())
			if err != nil {
				return err
			}
			renderProfile(p)
			return nil
		},
	}
}

func newOddsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "odds",
		Short: "List games, options and multipliers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var games []game.GameInfo
			if g.apiURL != "" || g.cfg.API.URL != "" {
				s, err := g.open(cmd.Context())
				if err != nil {
					return err
				}
				defer s.close()
				if games, err = s.backend.Games(cmd.Context()); err != nil {
					return err
				}
			} else {
				odds := game.DefaultOdds()
				if g.cfg.Game.OddsFile != "" {
					var err error
					if odds, err = game.LoadOddsFile(g.cfg.Game.OddsFile); err != nil {
						return err
					}
				}
				games = game.Catalog(odds)
			}
			renderOdds(games)
			return nil
		},
	}
}

func newDepositCmd(g *globals) *cobra.Command {
	var credit float64
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Show the top-up link",
		Long:  "Prints the payment bot link for the current user. With --credit the amount is added to the local balance once the host has confirmed the payment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			if credit == 0 {
				printLink(os.Stdout, "Top up via the payment bot:", cl.DepositLink(g.cfg.Bot.DepositBot, s.userID), isTerminal())
				return nil
			}
			if s.local == nil {
				return errors.New("--credit only works without --api")
			}
			bal, err := s.local.Controller().Deposit(cmd.Context(), credit)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Credited %s. Balance: %s", formatAmount(credit), formatAmount(bal)))
			return nil
		},
	}
	cmd.Flags().Float64Var(&credit, "credit", 0, "credit a confirmed deposit to the local balance")
	return cmd
}

func newWithdrawCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw [amount] [wallet]",
		Short: "Request a withdrawal",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			var amount float64
			if len(args) > 0 {
				if amount, err = game.ParseAmount(args[0]); err != nil {
					return game.ErrInvalidAmount
				}
			} else if amount, err = promptAmount("Amount"); err != nil {
				return err
			}
			var wallet string
			if len(args) > 1 {
				wallet = args[1]
			} else if wallet, err = promptRequired("Wallet address"); err != nil {
				return err
			}

			rep, err := s.backend.Withdraw(cmd.Context(), amount, wallet)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Withdrawal of %s to %s requested.", formatAmount(rep.Amount), rep.WalletAddress))
			return nil
		},
	}
}

func newReferralCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "referral",
		Short: "Show your invite link",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := cl.NewIdentityStore("")
			if err != nil {
				return err
			}
			userID, err := ids.Resolve(g.user, g.cfg.User)
			if err != nil {
				return err
			}
			printLink(os.Stdout, "Invite friends with:", cl.ReferralLink(g.cfg.Bot.Username, userID), isTerminal())
			return nil
		},
	}
}

func newWhoamiCmd(g *globals) *cobra.Command {
	var set, name string
	var forget bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show or remember the default user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := cl.NewIdentityStore("")
			if err != nil {
				return err
			}
			switch {
			case forget:
				if err := ids.Clear(); err != nil {
					return err
				}
				printSuccess("Identity cleared.")
				return nil
			case set != "":
				if err := ids.Save(cl.Identity{UserID: set, Username: name}); err != nil {
					return err
				}
				printSuccess("Playing as " + strings.TrimSpace(set) + ".")
				return nil
			}
			userID, err := ids.Resolve(g.user, g.cfg.User)
			if err != nil {
				return err
			}
			printInfo(userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "remember this user id")
	cmd.Flags().StringVar(&name, "name", "", "display name stored with --set")
	cmd.Flags().BoolVar(&forget, "clear", false, "forget the remembered user id")
	return cmd
}
