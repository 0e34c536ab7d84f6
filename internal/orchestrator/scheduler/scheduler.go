// Package scheduler drives detection cycles with an adaptive delay.
package scheduler

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/debounce"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/detect"
	"github.com/0xBAD5EED5/deathcounter/internal/trace"
)

// Scheduler defaults
const (
	DefaultActiveDelay    = 500 * time.Millisecond
	DefaultIdleDelay      = time.Second
	DefaultHeartbeatEvery = 10
)

// Cycle runs one detection.
type Cycle interface {
	RunOnce(ctx context.Context, zone image.Rectangle) detect.Result
}

// Config holds loop timing.
type Config struct {
	Zone           image.Rectangle
	ActiveDelay    time.Duration // while a death is on screen
	IdleDelay      time.Duration
	HeartbeatEvery int // iterations between heartbeats, iteration 0 included
}

func (c Config) withDefaults() Config {
	if c.ActiveDelay <= 0 {
		c.ActiveDelay = DefaultActiveDelay
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = DefaultIdleDelay
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = DefaultHeartbeatEvery
	}
	return c
}

// Hooks are called on the worker goroutine.
type Hooks struct {
	OnDeath     func(ctx context.Context, res detect.Result)
	OnHeartbeat func(iteration int)
	Count       func() int // current total, used in exit logs
}

// Scheduler owns the debounce machine for one monitoring session.
type Scheduler struct {
	cycle    Cycle
	machine  *debounce.Machine
	cfg      Config
	hooks    Hooks
	requests <-chan func()
	wait     func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler. Functions received on requests run on the worker
// between cycles and during the delay; nil disables requests.
func New(cycle Cycle, cfg Config, hooks Hooks, requests <-chan func()) *Scheduler {
	s := &Scheduler{
		cycle:    cycle,
		machine:  debounce.New(),
		cfg:      cfg.withDefaults(),
		hooks:    hooks,
		requests: requests,
	}
	s.wait = s.sleep
	return s
}

// Run loops until ctx is cancelled. A panic escaping an iteration ends the
// loop with an error; cancellation returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	log := trace.Logger(ctx)
	log.Info("monitoring started", "zone", s.cfg.Zone, "idle_delay", s.cfg.IdleDelay, "active_delay", s.cfg.ActiveDelay)

	for i := 0; ; i++ {
		if ctx.Err() != nil {
			break
		}
		s.drain()

		delay, err := s.iterate(ctx, i)
		if err != nil {
			log.Error("critical error, monitoring stopped", "error", err, "total_deaths", s.count())
			return err
		}

		if err := s.wait(ctx, delay); err != nil {
			break
		}
	}

	log.Info("monitoring stopped", "total_deaths", s.count())
	return nil
}

// iterate runs one cycle and returns the delay before the next. The delay
// follows the state this cycle produced.
func (s *Scheduler) iterate(ctx context.Context, i int) (delay time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitoring iteration %d panicked: %v\n%s", i, r, debug.Stack())
		}
	}()

	res := s.cycle.RunOnce(ctx, s.cfg.Zone)
	if s.machine.Observe(res.Visible) && s.hooks.OnDeath != nil {
		s.hooks.OnDeath(ctx, res)
	}

	if i%s.cfg.HeartbeatEvery == 0 && s.hooks.OnHeartbeat != nil {
		s.hooks.OnHeartbeat(i)
	}

	if s.machine.State() == debounce.DeathActive {
		return s.cfg.ActiveDelay, nil
	}
	return s.cfg.IdleDelay, nil
}

// State returns the debounce state. Only meaningful on the worker.
func (s *Scheduler) State() debounce.State { return s.machine.State() }

func (s *Scheduler) drain() {
	for {
		select {
		case fn := <-s.requests:
			fn()
		default:
			return
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case fn := <-s.requests:
			fn()
		}
	}
}

func (s *Scheduler) count() int {
	if s.hooks.Count == nil {
		return 0
	}
	return s.hooks.Count()
}
