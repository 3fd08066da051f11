package game

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// RandomSource yields uniform floats in [0, 1).
type RandomSource interface {
	Float64() float64
}

type cryptoSource struct{}

func (cryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func DefaultSource() RandomSource { return cryptoSource{} }

type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource returns a reproducible source; the same seed replays the
// same sequence of rounds.
func NewSeededSource(seed uint64) RandomSource {
	return &seededSource{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// FixedSource replays the given values in order and then repeats the last
// one. It exists for forcing outcomes in tests and demos.
type FixedSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func NewFixedSource(values ...float64) *FixedSource {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &FixedSource{values: values}
}

func (f *FixedSource) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.values[f.next]
	if f.next < len(f.values)-1 {
		f.next++
	}
	return v
}

// FaceValue returns a draw that lands on the given die face.
func FaceValue(face int) float64 {
	return (float64(face) - 0.5) / 6
}

// ScoredValue returns a draw that makes a ball game register (or not) a goal.
func ScoredValue(scored bool) float64 {
	if scored {
		return 0.75
	}
	return 0.25
}
