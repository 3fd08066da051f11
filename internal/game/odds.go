package game

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type OddsEntry struct {
	Game       GameID   `json:"game" yaml:"game"`
	Option     OptionID `json:"option" yaml:"option"`
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
}

// OddsTable is immutable once built; all methods are safe for concurrent use.
type OddsTable struct {
	games   []GameID
	options map[GameID][]OptionID
	mult    map[GameID]map[OptionID]float64
}

type oddsFile struct {
	Games map[GameID]map[OptionID]float64 `yaml:"games"`
}

var defaultGameOrder = []GameID{Basketball, Dice, Football}

var defaultOptionOrder = map[GameID][]OptionID{
	Basketball: {OptionGoal, OptionMiss},
	Dice:       {OptionEven, OptionOdd, OptionMore, OptionLess},
	Football:   {OptionGoal, OptionMiss},
}

func DefaultOdds() *OddsTable {
	t, err := NewOddsTable([]OddsEntry{
		{Game: Basketball, Option: OptionGoal, Multiplier: 1.8},
		{Game: Basketball, Option: OptionMiss, Multiplier: 0},
		{Game: Dice, Option: OptionEven, Multiplier: 1.8},
		{Game: Dice, Option: OptionOdd, Multiplier: 1.8},
		{Game: Dice, Option: OptionMore, Multiplier: 1.8},
		{Game: Dice, Option: OptionLess, Multiplier: 1.8},
		{Game: Football, Option: OptionGoal, Multiplier: 1.8},
		{Game: Football, Option: OptionMiss, Multiplier: 1.3},
	})
	if err != nil {
		panic(err)
	}
	return t
}

func NewOddsTable(entries []OddsEntry) (*OddsTable, error) {
	t := &OddsTable{
		options: make(map[GameID][]OptionID),
		mult:    make(map[GameID]map[OptionID]float64),
	}
	var errs []string
	for _, e := range entries {
		g := GameID(strings.ToLower(strings.TrimSpace(string(e.Game))))
		o := OptionID(strings.ToLower(strings.TrimSpace(string(e.Option))))
		switch {
		case g == "" || o == "":
			errs = append(errs, "odds entry needs both game and option")
			continue
		case math.IsNaN(e.Multiplier) || math.IsInf(e.Multiplier, 0) || e.Multiplier < 0:
			errs = append(errs, fmt.Sprintf("%s/%s: multiplier must be a finite number >= 0", g, o))
			continue
		}
		if _, ok := t.mult[g]; !ok {
			t.mult[g] = make(map[OptionID]float64)
			t.games = append(t.games, g)
		}
		if _, dup := t.mult[g][o]; dup {
			errs = append(errs, fmt.Sprintf("%s/%s: duplicate entry", g, o))
			continue
		}
		t.mult[g][o] = e.Multiplier
		t.options[g] = append(t.options[g], o)
	}
	if len(t.games) == 0 && len(errs) == 0 {
		errs = append(errs, "odds table has no games")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("odds validation failed: %s", strings.Join(errs, "; "))
	}
	return t, nil
}

// LoadOddsFile reads a YAML odds table. Games are ordered the way the UI
// lists them when known, alphabetically otherwise.
func LoadOddsFile(path string) (*OddsTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read odds file: %w", err)
	}
	var f oddsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse odds file: %w", err)
	}
	if len(f.Games) == 0 {
		return nil, errors.New("odds file declares no games")
	}

	games := make([]GameID, 0, len(f.Games))
	for g := range f.Games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool {
		ri, rj := rank(defaultGameOrder, games[i]), rank(defaultGameOrder, games[j])
		if ri != rj {
			return ri < rj
		}
		return games[i] < games[j]
	})

	var entries []OddsEntry
	var errs []string
	for _, g := range games {
		opts := f.Games[g]
		if len(opts) == 0 {
			errs = append(errs, fmt.Sprintf("%s: game has no options", g))
			continue
		}
		ids := make([]OptionID, 0, len(opts))
		for o := range opts {
			ids = append(ids, o)
		}
		order := defaultOptionOrder[g]
		sort.Slice(ids, func(i, j int) bool {
			ri, rj := rank(order, ids[i]), rank(order, ids[j])
			if ri != rj {
				return ri < rj
			}
			return ids[i] < ids[j]
		})
		for _, o := range ids {
			entries = append(entries, OddsEntry{Game: g, Option: o, Multiplier: opts[o]})
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("odds validation failed: %s", strings.Join(errs, "; "))
	}
	return NewOddsTable(entries)
}

func rank[T comparable](order []T, v T) int {
	for i, x := range order {
		if x == v {
			return i
		}
	}
	return len(order)
}

func (t *OddsTable) Lookup(game GameID, option OptionID) (float64, error) {
	opts, ok := t.mult[game]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownOption, game, option)
	}
	m, ok := opts[option]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownOption, game, option)
	}
	return m, nil
}

func (t *OddsTable) Valid(game GameID, option OptionID) bool {
	_, err := t.Lookup(game, option)
	return err == nil
}

func (t *OddsTable) HasGame(game GameID) bool {
	_, ok := t.mult[game]
	return ok
}

func (t *OddsTable) Games() []GameID {
	return append([]GameID(nil), t.games...)
}

func (t *OddsTable) Options(game GameID) []OptionID {
	return append([]OptionID(nil), t.options[game]...)
}

func (t *OddsTable) Entries() []OddsEntry {
	var out []OddsEntry
	for _, g := range t.games {
		for _, o := range t.options[g] {
			out = append(out, OddsEntry{Game: g, Option: o, Multiplier: t.mult[g][o]})
		}
	}
	return out
}
