package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	cl "minibet/internal/cli"
	"minibet/internal/game"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	balanceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Padding(0, 1)
	winStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	loseStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	resultBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
)

type step int

const (
	stepGame step = iota
	stepOption
	stepStake
	stepResolving
	stepResult
)

type choiceItem struct {
	id    string
	title string
	desc  string
}

func (i choiceItem) Title() string       { return i.title }
func (i choiceItem) Description() string { return i.desc }
func (i choiceItem) FilterValue() string { return i.id }

type stateMsg struct {
	st  cl.SessionState
	err error
}

type playedMsg struct {
	st  cl.SessionState
	err error
}

type tuiModel struct {
	ctx     context.Context
	backend cl.Backend
	games   []game.GameInfo

	step    step
	list    list.Model
	input   textinput.Model
	spin    spinner.Model
	state   cl.SessionState
	current game.GameInfo
	warning string
	err     error
	width   int
	height  int
}

func runTUI(ctx context.Context, b cl.Backend) error {
	games, err := b.Games(ctx)
	if err != nil {
		return err
	}
	st, err := b.Session(ctx)
	if err != nil {
		return err
	}
	// Start from a clean session; a finished round is simply acknowledged.
	switch st.Session.State {
	case game.StateResolved:
		if st, err = b.Ack(ctx); err != nil {
			return err
		}
	case game.StateGameSelected, game.StateOptionSelected, game.StateStaked:
		if st, err = b.Cancel(ctx); err != nil {
			return err
		}
	}

	in := textinput.New()
	in.Placeholder = "stake"
	in.CharLimit = 16
	in.Width = 16

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := tuiModel{
		ctx:     ctx,
		backend: b,
		games:   games,
		input:   in,
		spin:    sp,
		state:   st,
		width:   60,
		height:  20,
	}
	m.list = list.New(nil, list.NewDefaultDelegate(), m.width, m.height-4)
	m.list.SetShowHelp(false)
	m.list.SetFilteringEnabled(false)
	m.showGames()

	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if fm, ok := final.(tuiModel); ok && fm.err != nil {
		return fm.err
	}
	return nil
}

func (m *tuiModel) showGames() {
	items := make([]list.Item, 0, len(m.games))
	for _, g := range m.games {
		opts := make([]string, 0, len(g.Options))
		for _, o := range g.Options {
			opts = append(opts, o.Label)
		}
		items = append(items, choiceItem{id: string(g.ID), title: g.Emoji + " " + g.Title, desc: strings.Join(opts, " · ")})
	}
	m.list.SetItems(items)
	m.list.Title = "Pick a game"
	m.list.Select(0)
	m.step = stepGame
}

func (m *tuiModel) showOptions() {
	items := make([]list.Item, 0, len(m.current.Options))
	for _, o := range m.current.Options {
		items = append(items, choiceItem{id: string(o.ID), title: o.Label, desc: "x" + formatAmount(o.Multiplier)})
	}
	m.list.SetItems(items)
	m.list.Title = m.current.Emoji + " " + m.current.Title + ": what do you bet on?"
	m.list.Select(0)
	m.step = stepOption
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) call(fn func(context.Context) (cl.SessionState, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		st, err := fn(ctx)
		return stateMsg{st: st, err: err}
	}
}

func (m tuiModel) play() tea.Cmd {
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		st, err := b.Play(ctx)
		return playedMsg{st: st, err: err}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.step == stepGame || m.step == stepResult {
				return m, tea.Quit
			}
		}
		return m.handleKey(msg)

	case stateMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.state = msg.st
		return m, nil

	case playedMsg:
		if msg.err != nil && !errors.Is(msg.err, game.ErrPersistence) {
			return m.fail(msg.err)
		}
		m.state = msg.st
		m.step = stepResult
		m.warning = ""
		if msg.err != nil {
			m.warning = "Balance could not be saved: " + msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		if m.step != stepResolving {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.step == stepStake {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// fail shows recoverable engine errors inline and quits on anything else.
func (m tuiModel) fail(err error) (tea.Model, tea.Cmd) {
	for _, soft := range []error{game.ErrInsufficientFunds, game.ErrInvalidStake, game.ErrInvalidOption, game.ErrSessionBusy} {
		if errors.Is(err, soft) {
			m.warning = err.Error()
			return m, nil
		}
	}
	m.err = err
	return m, tea.Quit
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.step {
	case stepGame:
		if key == "enter" {
			item, ok := m.list.SelectedItem().(choiceItem)
			if !ok {
				return m, nil
			}
			m.current, _ = findGame(m.games, game.GameID(item.id))
			m.warning = ""
			m.showOptions()
			return m, m.call(func(ctx context.Context) (cl.SessionState, error) {
				return m.backend.SelectGame(ctx, game.GameID(item.id))
			})
		}

	case stepOption:
		switch key {
		case "esc":
			m.showGames()
			return m, m.call(m.backend.Cancel)
		case "enter":
			item, ok := m.list.SelectedItem().(choiceItem)
			if !ok {
				return m, nil
			}
			m.step = stepStake
			m.warning = ""
			m.input.SetValue("")
			focus := m.input.Focus()
			return m, tea.Batch(focus, m.call(func(ctx context.Context) (cl.SessionState, error) {
				return m.backend.SelectOption(ctx, game.OptionID(item.id))
			}))
		}

	case stepStake:
		switch key {
		case "esc":
			m.input.Blur()
			m.showOptions()
			return m, m.call(func(ctx context.Context) (cl.SessionState, error) {
				return m.backend.SelectGame(ctx, m.current.ID)
			})
		case "enter":
			amount, err := game.ParseAmount(m.input.Value())
			if err != nil {
				m.warning = "Enter a positive number."
				return m, nil
			}
			if amount > m.state.Balance {
				m.warning = game.ErrInsufficientFunds.Error()
				return m, nil
			}
			st, err := m.backend.Stake(m.ctx, amount)
			if err != nil {
				return m.fail(err)
			}
			m.state = st
			m.input.Blur()
			m.step = stepResolving
			m.warning = ""
			return m, tea.Batch(m.spin.Tick, m.play())
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case stepResult:
		if key == "enter" || key == " " {
			m.showGames()
			return m, m.call(m.backend.Ack)
		}
	}

	var cmd tea.Cmd
	if m.step == stepGame || m.step == stepOption {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("minibet"))
	b.WriteString(balanceStyle.Render("balance " + formatAmount(m.state.Balance)))
	b.WriteString("\n\n")

	switch m.step {
	case stepGame, stepOption:
		b.WriteString(m.list.View())
	case stepStake:
		opt := m.state.Session.Option
		fmt.Fprintf(&b, "%s %s on %s\n\n", m.current.Emoji, m.current.Title, opt)
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case stepResolving:
		fmt.Fprintf(&b, "%s %s on %s for %s\n", m.spin.View(), m.current.Title, m.state.Session.Option, formatAmount(m.state.Session.Stake))
	case stepResult:
		b.WriteString(m.resultView())
	}

	if m.warning != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(m.warning))
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.hint()))
	return b.String()
}

func (m tuiModel) resultView() string {
	r := m.state.Round
	if r == nil {
		return ""
	}
	var what string
	if r.Game == game.Dice {
		what = fmt.Sprintf("🎲 %d", r.Outcome.DiceFace)
	} else if r.Outcome.Scored {
		what = "Scored!"
	} else {
		what = "Missed."
	}
	verdict := loseStyle.Render(fmt.Sprintf("You lost %s", formatAmount(r.Stake)))
	if r.Outcome.Won {
		verdict = winStyle.Render(fmt.Sprintf("You won %s", formatAmount(r.Settlement.PayoutDelta+r.Stake)))
	}
	return resultBox.Render(what + "\n\n" + verdict + "\n" + "Balance " + formatAmount(r.BalanceAfter))
}

func (m tuiModel) hint() string {
	switch m.step {
	case stepGame:
		return "↑/↓ choose · enter select · q quit"
	case stepOption:
		return "↑/↓ choose · enter select · esc back"
	case stepStake:
		return "enter place bet · esc back"
	case stepResolving:
		return "resolving..."
	default:
		return "enter play again · q quit"
	}
}
