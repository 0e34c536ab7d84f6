package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xBAD5EED5/deathcounter/internal/config"
	"github.com/0xBAD5EED5/deathcounter/internal/counter"
	"github.com/0xBAD5EED5/deathcounter/internal/journal"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/detect"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/eventlog"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/scheduler"
	"github.com/0xBAD5EED5/deathcounter/internal/phrase"
	screencap "github.com/0xBAD5EED5/deathcounter/internal/screen"
	"github.com/0xBAD5EED5/deathcounter/internal/trace"
)

// ErrAlreadyRunning is returned by Start while monitoring is active.
var ErrAlreadyRunning = errors.New("monitoring already running")

// Recorder appends counted deaths to a history.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// ArtifactWriter saves debug images.
type ArtifactWriter interface {
	SaveDeath(raw, processed image.Image) (rawPath, processedPath string, err error)
	SaveTestCapture(img image.Image) (string, error)
}

// Player plays the death cue.
type Player interface {
	Play()
}

// Deps are the collaborators of a Manager. Journal, Artifacts and Cue are optional.
type Deps struct {
	Capturer  screencap.Capturer
	Enhancer  detect.Enhancer
	OCR       detect.Recognizer
	Counter   *counter.Counter
	Journal   Recorder
	Artifacts ArtifactWriter
	Cue       Player
	Sink      Sink
}

// Manager owns the monitoring worker. All methods are safe for concurrent use.
type Manager struct {
	deps    Deps
	cfg     *config.Config
	matcher *phrase.Matcher
	screens []screencap.Screen

	mu       sync.Mutex
	running  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	session  string
	requests chan func()
}

// New creates a manager. The screen list is derived from the configured
// desktop size.
func New(deps Deps, cfg *config.Config) *Manager {
	if deps.Sink == nil {
		deps.Sink = LogSink{}
	}
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		matcher:  phrase.NewMatcher(cfg.ConfidenceThreshold, cfg.SimilarityThreshold),
		screens:  screencap.DetectScreens(image.Pt(cfg.ScreenWidth, cfg.ScreenHeight)),
		requests: make(chan func()),
	}
}

// Start launches the worker. It fails with CONFIG_INVALID when the capture
// zone does not fit the selected screen.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return ErrAlreadyRunning
	}
	if m.cancel != nil {
		m.cancel() // previous worker already exited on its own
	}

	scr := m.selectedScreen()
	zone, err := screencap.Zone(scr, m.cfg.CaptureZoneWidth, m.cfg.CaptureZoneHeight)
	if err != nil {
		return err
	}

	proc := detect.NewProcessor(m.deps.Capturer, m.deps.Enhancer, m.deps.OCR, m.matcher, detect.Options{
		SkipSimilarFrames: m.cfg.SkipSimilarFrames,
		MaxHashDistance:   m.cfg.MaxHashDistance,
	})
	sched := scheduler.New(proc, scheduler.Config{
		Zone:           zone,
		ActiveDelay:    m.cfg.ActiveDelay(),
		IdleDelay:      m.cfg.IdleDelay(),
		HeartbeatEvery: m.cfg.HeartbeatEvery,
	}, scheduler.Hooks{
		OnDeath:     m.handleDeath,
		OnHeartbeat: m.heartbeat,
		Count:       m.Count,
	}, m.requests)

	m.session = journal.NewSessionID()
	ctx, cancel := context.WithCancel(trace.WithContext(ctx, trace.NewSession()))
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	m.running.Store(true)

	trace.Logger(ctx).Info("monitoring session", "journal_session", m.session, "screen", scr.Description())
	m.publish(eventlog.KindStarted, fmt.Sprintf("Starting monitoring on screen: %s", scr.Description()))
	m.publish(eventlog.KindInfo, fmt.Sprintf("Capture zone: (%d, %d, %d, %d)", zone.Min.X, zone.Min.Y, zone.Max.X, zone.Max.Y))

	go func() {
		defer close(done)
		err := sched.Run(ctx)
		m.running.Store(false)
		if err != nil {
			m.publish(eventlog.KindError, fmt.Sprintf("Critical error: %v", err))
		}
		m.publish(eventlog.KindStopped, fmt.Sprintf("Monitoring stopped. Total deaths: %d", m.Count()))
	}()
	return nil
}

// Stop cancels the worker and waits for the in-flight cycle to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the worker is active.
func (m *Manager) Running() bool { return m.running.Load() }

// Count returns the current death count.
func (m *Manager) Count() int { return m.deps.Counter.Value() }

// Reset sets the count to 0. While monitoring it runs on the worker between
// cycles so it never interleaves with an increment.
func (m *Manager) Reset() (int, error) {
	type result struct {
		n   int
		err error
	}

	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done != nil && m.running.Load() {
		ch := make(chan result, 1)
		select {
		case m.requests <- func() {
			n, err := m.deps.Counter.Reset()
			ch <- result{n, err}
		}:
			r := <-ch
			m.publishCount(eventlog.KindReset, r.n, "Counter reset")
			return r.n, r.err
		case <-done:
		}
	}

	n, err := m.deps.Counter.Reset()
	m.publishCount(eventlog.KindReset, n, "Counter reset")
	return n, err
}

// TestZone captures the configured zone once and saves it for inspection.
func (m *Manager) TestZone(ctx context.Context) (string, error) {
	m.mu.Lock()
	scr := m.selectedScreen()
	m.mu.Unlock()

	zone, err := screencap.Zone(scr, m.cfg.CaptureZoneWidth, m.cfg.CaptureZoneHeight)
	if err != nil {
		return "", err
	}
	img, err := m.deps.Capturer.Capture(ctx, zone)
	if err != nil {
		m.publish(eventlog.KindError, fmt.Sprintf("Test capture error: %v", err))
		return "", err
	}
	if m.deps.Artifacts == nil {
		return "", errors.New("no artifact writer configured")
	}
	path, err := m.deps.Artifacts.SaveTestCapture(img)
	if err != nil {
		m.publish(eventlog.KindError, fmt.Sprintf("Test capture error: %v", err))
		return "", err
	}
	m.publish(eventlog.KindInfo, fmt.Sprintf("Test capture saved: %s", path))
	m.publish(eventlog.KindInfo, fmt.Sprintf("Zone: (%d, %d, %d, %d)", zone.Min.X, zone.Min.Y, zone.Max.X, zone.Max.Y))
	return path, nil
}

// Screens returns the detected screens.
func (m *Manager) Screens() []screencap.Screen {
	return slices.Clone(m.screens)
}

// SelectedScreen returns the screen monitoring uses.
func (m *Manager) SelectedScreen() screencap.Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedScreen()
}

// NextScreen selects the following screen and returns it. It takes effect on
// the next Start.
func (m *Manager) NextScreen() screencap.Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := (screencap.Select(m.screens, m.cfg.SelectedScreen) + 1) % len(m.screens)
	m.cfg.SelectedScreen = m.screens[i].Description()
	return m.screens[i]
}

func (m *Manager) selectedScreen() screencap.Screen {
	return m.screens[screencap.Select(m.screens, m.cfg.SelectedScreen)]
}

// handleDeath runs on the worker for every new death.
func (m *Manager) handleDeath(ctx context.Context, res detect.Result) {
	ctx, span := trace.StartSpan(ctx, "death")
	defer span.End()
	log := trace.Logger(ctx)

	n, saveErr := m.deps.Counter.Increment()
	span.SetAttr("count", n)
	span.SetAttr("phrase", res.Match.Phrase)
	m.publishCount(eventlog.KindDeath, n, fmt.Sprintf("Death detected! Counter: %d", n))
	if saveErr != nil {
		m.publishCount(eventlog.KindError, n, fmt.Sprintf("Error saving counter: %v", saveErr))
	}

	entry := journal.Entry{
		Session:    m.session,
		Count:      n,
		Phrase:     res.Match.Phrase,
		Text:       res.Match.Text,
		Exact:      res.Match.Exact,
		Similarity: res.Match.Similarity,
		DetectedAt: time.Now(),
	}

	if m.cfg.DebugMode && m.deps.Artifacts != nil {
		rawPath, procPath, err := m.deps.Artifacts.SaveDeath(res.Raw, res.Processed)
		if err != nil {
			log.Warn("failed to save death screenshots", "error", err)
		} else {
			entry.RawPath, entry.ProcessedPath = rawPath, procPath
			m.publish(eventlog.KindInfo, fmt.Sprintf("Screenshots saved: %s", rawPath))
		}
	}

	if m.deps.Journal != nil {
		if _, err := m.deps.Journal.Record(ctx, entry); err != nil {
			log.Warn("failed to record death", "error", err)
		}
	}

	if m.deps.Cue != nil {
		m.deps.Cue.Play()
	}
}

func (m *Manager) heartbeat(int) {
	n := m.Count()
	m.publishCount(eventlog.KindHeartbeat, n, fmt.Sprintf("Active monitoring... Current deaths: %d", n))
}

func (m *Manager) publish(kind eventlog.Kind, msg string) {
	m.publishCount(kind, m.Count(), msg)
}

func (m *Manager) publishCount(kind eventlog.Kind, n int, msg string) {
	m.deps.Sink.Publish(stamp(Event{Kind: kind, Count: n, Message: msg}))
}
