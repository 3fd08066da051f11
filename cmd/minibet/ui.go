package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mdp/qrterminal/v3"

	cl "minibet/internal/cli"
	"minibet/internal/game"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		if defaultValue != "" {
			fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		} else {
			fmt.Printf("%s (%s): ", label, strings.Join(options, "/"))
		}
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

// promptAmount keeps asking until the input parses as a positive amount.
func promptAmount(label string) (float64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := game.ParseAmount(text)
		if err != nil {
			printWarn("Enter a positive number.")
			continue
		}
		return v, nil
	}
}

func gameIDs(games []game.GameInfo) []string {
	out := make([]string, 0, len(games))
	for _, g := range games {
		out = append(out, string(g.ID))
	}
	return out
}

func optionIDs(info game.GameInfo) []string {
	out := make([]string, 0, len(info.Options))
	for _, o := range info.Options {
		out = append(out, string(o.ID))
	}
	return out
}

func findGame(games []game.GameInfo, id game.GameID) (game.GameInfo, bool) {
	for _, g := range games {
		if g.ID == id {
			return g, true
		}
	}
	return game.GameInfo{}, false
}

func renderOdds(games []game.GameInfo) {
	accent.Println("\n== GAMES ==")
	for _, g := range games {
		fmt.Printf("%s %s\n", g.Emoji, g.Title)
		for _, o := range g.Options {
			fmt.Printf("   %-8s %-14s x%s\n", o.ID, o.Label, formatAmount(o.Multiplier))
		}
	}
}

func renderBalance(b cl.BalanceInfo) {
	accent.Println("\n== BALANCE ==")
	fmt.Printf("User:     %s\n", b.UserID)
	fmt.Printf("Balance:  %s\n", formatAmount(b.Balance))
	fmt.Printf("Jackpot:  %s\n", formatAmount(b.Jackpot))
}

func renderProfile(p cl.Profile) {
	accent.Println("\n== PROFILE ==")
	if p.Stats.Username != "" {
		fmt.Printf("Username:        %s\n", p.Stats.Username)
	}
	fmt.Printf("User:            %s\n", p.UserID)
	fmt.Printf("Balance:         %s\n", formatAmount(p.Balance))
	fmt.Printf("Bets:            %d\n", p.Stats.BetsCount)
	fmt.Printf("Wins:            %d (%s)\n", p.Stats.WinsCount, winRate(p.Stats))
	fmt.Printf("Deposited:       %s\n", formatAmount(p.Stats.TotalDeposits))
	fmt.Printf("Withdrawn:       %s\n", formatAmount(p.Stats.TotalWithdrawals))
	fmt.Printf("Min withdrawal:  %s\n", formatAmount(p.MinWithdrawal))
	fmt.Printf("Referral code:   %s\n", p.ReferralCode)
}

func winRate(s game.Stats) string {
	if s.BetsCount == 0 {
		return "-"
	}
	return strconv.FormatFloat(float64(s.WinsCount)*100/float64(s.BetsCount), 'f', 1, 64) + "%"
}

func renderRound(st cl.SessionState) {
	r := st.Round
	if r == nil {
		printWarn("No round result.")
		return
	}
	fmt.Println()
	fmt.Printf("%s  %s\n", outcomeLine(*r), colorizeDelta(r.Settlement.PayoutDelta))
	fmt.Printf("Balance: %s -> %s\n", formatAmount(r.BalanceBefore), formatAmount(r.BalanceAfter))
}

func outcomeLine(r game.Round) string {
	var what string
	switch r.Game {
	case game.Dice:
		what = fmt.Sprintf("🎲 rolled %d", r.Outcome.DiceFace)
	default:
		if r.Outcome.Scored {
			what = "scored"
		} else {
			what = "missed"
		}
	}
	verdict := danger.Sprint("LOSE")
	if r.Outcome.Won {
		verdict = success.Sprint("WIN")
	}
	return fmt.Sprintf("%s %s on %s, %s", verdict, r.Game, r.Option, what)
}

func colorizeDelta(v float64) string {
	text := formatAmount(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// printLink prints url and, on a terminal, a scannable QR code below it.
func printLink(w io.Writer, label, url string, qr bool) {
	accent.Fprintln(w, label)
	fmt.Fprintln(w, url)
	if qr {
		qrterminal.GenerateWithConfig(url, qrterminal.Config{
			Level:     qrterminal.M,
			Writer:    w,
			BlackChar: qrterminal.BLACK,
			WhiteChar: qrterminal.WHITE,
			QuietZone: 1,
		})
	}
}
