package deck

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Shuffler draws random samples from card sequences. It is safe for concurrent use.
type Shuffler struct {
	mu   sync.Mutex
	seed uint64
	rng  *rand.Rand
}

// NewShuffler returns a Shuffler seeded with seed. A zero seed picks one from the clock.
func NewShuffler(seed uint64) *Shuffler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Shuffler{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed reports the seed the Shuffler was built with.
func (s *Shuffler) Seed() uint64 {
	return s.seed
}

// Pick selects n cards uniformly without replacement. The input is not modified.
// n is clamped to len(cards).
func (s *Shuffler) Pick(cards []Card, n int) []Card {
	out := Clone(cards)
	if n > len(out) {
		n = len(out)
	}
	if n < 0 {
		n = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Partial Fisher-Yates: after step i, out[:i+1] is a uniform sample.
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:n]
}

// Shuffle returns a uniformly permuted copy of cards.
func (s *Shuffler) Shuffle(cards []Card) []Card {
	return s.Pick(cards, len(cards))
}
