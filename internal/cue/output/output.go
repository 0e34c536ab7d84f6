// Package output opens the system speaker for cue playback.
package output

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/0xBAD5EED5/deathcounter/internal/cue"
)

var (
	initOnce sync.Once
	initErr  error
	ready    bool
)

// Speaker initializes the speaker once and returns a player that mixes
// streamers into it.
func Speaker() (func(beep.Streamer), error) {
	initOnce.Do(func() {
		initErr = speaker.Init(cue.SampleRate, cue.SampleRate.N(time.Millisecond*100))
		ready = initErr == nil
	})
	if initErr != nil {
		return nil, initErr
	}
	return func(s beep.Streamer) { speaker.Play(s) }, nil
}

// Close stops playback and releases the device.
func Close() {
	if ready {
		speaker.Clear()
		speaker.Close()
	}
}
