package glitch

import (
	"math/rand/v2"
	"slices"
	"time"
)

const (
	// BurstStep is how long each burst offset is held.
	BurstStep = 50 * time.Millisecond

	minBurstDelay = 2 * time.Second
	maxBurstDelay = 5 * time.Second
)

// burstOffsets is the horizontal displacement sequence of one glitch burst.
var burstOffsets = [...]int{-5, 5, 0}

// Jitter schedules glitch bursts at random intervals.
type Jitter struct {
	rng   *rand.Rand
	index int
}

// NewJitter creates a jitter schedule. A nil rng uses a time-seeded source.
func NewJitter(rng *rand.Rand) *Jitter {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed<<1))
	}
	return &Jitter{rng: rng, index: len(burstOffsets)}
}

// NextDelay returns the pause before the next burst, between 2s and 5s.
func (j *Jitter) NextDelay() time.Duration {
	return minBurstDelay + time.Duration(j.rng.Int64N(int64(maxBurstDelay-minBurstDelay)+1))
}

// Start begins a burst.
func (j *Jitter) Start() {
	j.index = 0
}

// Step returns the next offset of the running burst. ok is false once the
// burst has finished, at which point the offset is back to 0.
func (j *Jitter) Step() (offset int, ok bool) {
	if j.index >= len(burstOffsets) {
		return 0, false
	}
	offset = burstOffsets[j.index]
	j.index++
	return offset, true
}

// Active reports whether a burst is in progress.
func (j *Jitter) Active() bool {
	return j.index < len(burstOffsets)
}

// Burst returns the offsets of one burst.
func Burst() []int {
	return slices.Clone(burstOffsets[:])
}
