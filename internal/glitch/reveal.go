// Package glitch produces the scrambled-text reveal and jitter effects of the
// title banner.
package glitch

import (
	"math/rand/v2"
	"time"
)

const (
	// Charset supplies the scrambled characters.
	Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

	DefaultTarget   = "GLITCH"
	DefaultInterval = 50 * time.Millisecond

	// ticksPerLetter is how many frames it takes to lock one more letter.
	ticksPerLetter = 3
)

// Reveal scrambles a target string and locks its letters left to right, one
// every three frames, until the full target shows.
type Reveal struct {
	target []rune
	step   int
	done   bool
	rng    *rand.Rand
}

// NewReveal creates a reveal of target. A nil rng uses a time-seeded source.
func NewReveal(target string, rng *rand.Rand) *Reveal {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Reveal{target: []rune(target), rng: rng}
}

// Next returns the next frame. Once the target is fully revealed every
// further call returns the target.
func (r *Reveal) Next() string {
	locked := r.step / ticksPerLetter
	frame := r.frame(locked)
	if locked >= len(r.target) {
		r.done = true
	} else {
		r.step++
	}
	return frame
}

// Done reports whether the last frame returned was the final one.
func (r *Reveal) Done() bool {
	return r.done
}

// Frames returns the number of frames a reveal of target produces.
func Frames(target string) int {
	return ticksPerLetter*len([]rune(target)) + 1
}

// Reset restarts the reveal from a fully scrambled frame.
func (r *Reveal) Reset() {
	r.step = 0
	r.done = false
}

// Target returns the string being revealed.
func (r *Reveal) Target() string {
	return string(r.target)
}

func (r *Reveal) frame(locked int) string {
	out := make([]rune, len(r.target))
	for i, c := range r.target {
		if i < locked {
			out[i] = c
			continue
		}
		out[i] = rune(Charset[r.rng.IntN(len(Charset))])
	}
	return string(out)
}
