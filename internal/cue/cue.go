// Package cue plays a short chime when a death is counted.
package cue

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
)

const (
	SampleRate = beep.SampleRate(48000)

	chimeLength = 250 * time.Millisecond
	chimeLow    = 440.0
	chimeHigh   = 660.0
)

// Cue hands chime streamers to a player. A nil player makes Play a no-op.
type Cue struct {
	mu   sync.Mutex
	play func(beep.Streamer)
}

// New creates a cue that sends streamers to play.
func New(play func(beep.Streamer)) *Cue {
	return &Cue{play: play}
}

// Play starts the chime without blocking.
func (c *Cue) Play() {
	if c == nil || c.play == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.play(Chime(SampleRate))
}

// Chime returns a two-note descending tone of fixed length.
func Chime(sr beep.SampleRate) beep.Streamer {
	return beep.Take(sr.N(chimeLength), NewChimeGenerator(sr))
}

// ChimeGenerator produces the chime: high note, then low note, with a
// short attack and an exponential release on each.
type ChimeGenerator struct {
	sr  beep.SampleRate
	pos int
}

// NewChimeGenerator creates a chime generator
func NewChimeGenerator(sr beep.SampleRate) *ChimeGenerator {
	return &ChimeGenerator{sr: sr}
}

func (g *ChimeGenerator) Stream(samples [][2]float64) (n int, ok bool) {
	half := chimeLength.Seconds() / 2
	for i := range samples {
		t := float64(g.pos) / float64(g.sr)

		freq, local := chimeHigh, t
		if t >= half {
			freq, local = chimeLow, t-half
		}

		attack := math.Min(local/0.01, 1.0)
		release := math.Exp(-local * 12)
		sample := 0.25 * math.Sin(2*math.Pi*freq*t) * attack * release

		samples[i][0] = sample
		samples[i][1] = sample
		g.pos++
	}
	return len(samples), true
}

func (g *ChimeGenerator) Err() error {
	return nil
}
