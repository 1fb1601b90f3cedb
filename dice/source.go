package dice

import (
	"math/rand/v2"
)

// Source is the randomness the hit pipeline consumes. *rand.Rand from
// math/rand/v2 satisfies it.
type Source interface {
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
	// Float64 returns a value in [0, 1).
	Float64() float64
}

// NewSource returns a deterministic source for seed. Two sources built from
// the same seed produce identical sequences.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// Sequence replays scripted values. Ints are consumed by IntN (reduced modulo
// n) and floats by Float64; both wrap around when exhausted.
type Sequence struct {
	Ints   []int
	Floats []float64

	nextInt   int
	nextFloat int
}

func (s *Sequence) IntN(n int) int {
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[s.nextInt%len(s.Ints)]
	s.nextInt++
	if v < 0 {
		v = -v
	}
	return v % n
}

func (s *Sequence) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.nextFloat%len(s.Floats)]
	s.nextFloat++
	if v < 0 || v >= 1 {
		return 0
	}
	return v
}
