package pricing

import (
	"math/rand"
	"sync"
	"time"
)

// Jitter bounds in monetary units: draws fall in [JitterMin, JitterMax).
const (
	JitterMin = -20.0
	JitterMax = 20.0
)

// JitterSource draws the random offset added to a suggestion.
type JitterSource interface {
	Draw() float64
}

// UniformJitter draws uniformly from [JitterMin, JitterMax).
// Safe for concurrent use.
type UniformJitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformJitter creates a UniformJitter seeded with seed.
func NewUniformJitter(seed int64) *UniformJitter {
	return &UniformJitter{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededJitter creates a UniformJitter seeded from the wall clock.
func NewTimeSeededJitter() *UniformJitter {
	return NewUniformJitter(time.Now().UnixNano())
}

// Draw returns a value in [JitterMin, JitterMax).
func (j *UniformJitter) Draw() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JitterMin + j.rng.Float64()*(JitterMax-JitterMin)
}

// ZeroJitter always draws 0. Used for deterministic suggestions.
type ZeroJitter struct{}

// Draw returns 0.
func (ZeroJitter) Draw() float64 { return 0 }

var (
	_ JitterSource = (*UniformJitter)(nil)
	_ JitterSource = ZeroJitter{}
)
