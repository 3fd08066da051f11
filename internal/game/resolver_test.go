package game

import (
	"math"
	"testing"
)

func TestRollDie(t *testing.T) {
	for face := 1; face <= 6; face++ {
		if got := RollDie(FaceValue(face)); got != face {
			t.Fatalf("FaceValue(%d) rolled %d", face, got)
		}
	}
	if got := RollDie(0); got != 1 {
		t.Fatalf("r=0 got %d", got)
	}
	if got := RollDie(math.Nextafter(1, 0)); got != 6 {
		t.Fatalf("r<1 got %d", got)
	}
	if got := RollDie(1); got != 6 {
		t.Fatalf("r=1 should clamp to 6, got %d", got)
	}
}

func TestDiceWins(t *testing.T) {
	tests := []struct {
		option OptionID
		wins   []int
	}{
		{OptionEven, []int{2, 4, 6}},
		{OptionOdd, []int{1, 3, 5}},
		{OptionMore, []int{4, 5, 6}},
		{OptionLess, []int{1, 2, 3}},
	}
	for _, tc := range tests {
		want := map[int]bool{}
		for _, f := range tc.wins {
			want[f] = true
		}
		for face := 1; face <= 6; face++ {
			if got := DiceWins(tc.option, face); got != want[face] {
				t.Fatalf("%s face=%d got=%v want=%v", tc.option, face, got, want[face])
			}
		}
	}
	if DiceWins(OptionGoal, 4) {
		t.Fatalf("goal is not a dice option")
	}
}

func TestResolveBallGames(t *testing.T) {
	tests := []struct {
		rule   MissRule
		option OptionID
		scored bool
		won    bool
	}{
		{MissStrict, OptionGoal, true, true},
		{MissStrict, OptionGoal, false, false},
		{MissStrict, OptionMiss, true, false},
		{MissStrict, OptionMiss, false, false},
		{MissSymmetric, OptionGoal, true, true},
		{MissSymmetric, OptionMiss, true, false},
		{MissSymmetric, OptionMiss, false, true},
	}
	for _, game := range []GameID{Basketball, Football} {
		for _, tc := range tests {
			r := NewResolver(NewFixedSource(ScoredValue(tc.scored)), tc.rule)
			got := r.Resolve(game, tc.option)
			if got.Scored != tc.scored || got.Won != tc.won {
				t.Fatalf("%s %s/%s scored=%v got=%+v want won=%v", tc.rule, game, tc.option, tc.scored, got, tc.won)
			}
		}
	}
}

func TestResolveScoredThreshold(t *testing.T) {
	r := NewResolver(NewFixedSource(0.5), MissStrict)
	if got := r.Resolve(Football, OptionGoal); got.Scored {
		t.Fatalf("r=0.5 must not score")
	}
}

func TestResolveDiceUniform(t *testing.T) {
	r := NewResolver(NewSeededSource(7), MissStrict)
	const n = 60_000
	var counts [7]int
	for range n {
		out := r.Resolve(Dice, OptionEven)
		if out.DiceFace < 1 || out.DiceFace > 6 {
			t.Fatalf("face out of range: %d", out.DiceFace)
		}
		if out.Won != (out.DiceFace%2 == 0) {
			t.Fatalf("face %d won=%v", out.DiceFace, out.Won)
		}
		counts[out.DiceFace]++
	}
	expected := float64(n) / 6
	for face := 1; face <= 6; face++ {
		if dev := math.Abs(float64(counts[face])-expected) / expected; dev > 0.05 {
			t.Fatalf("face %d count=%d deviates %.3f from uniform", face, counts[face], dev)
		}
	}
}

func TestResolveUnknownGame(t *testing.T) {
	r := NewResolver(NewFixedSource(0.9), MissStrict)
	if got := r.Resolve("poker", OptionGoal); got.Won {
		t.Fatalf("unknown game must not win")
	}
}

func TestParseMissRule(t *testing.T) {
	if r, err := ParseMissRule(""); err != nil || r != MissStrict {
		t.Fatalf("empty got=%q err=%v", r, err)
	}
	if r, err := ParseMissRule(" Symmetric "); err != nil || r != MissSymmetric {
		t.Fatalf("symmetric got=%q err=%v", r, err)
	}
	if _, err := ParseMissRule("lenient"); err == nil {
		t.Fatalf("expected error")
	}
}
