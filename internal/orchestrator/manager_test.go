package orchestrator

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/0xBAD5EED5/deathcounter/internal/config"
	"github.com/0xBAD5EED5/deathcounter/internal/counter"
	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
	"github.com/0xBAD5EED5/deathcounter/internal/journal"
	"github.com/0xBAD5EED5/deathcounter/internal/ocr"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/eventlog"
)

type mockCapturer struct {
	mu    sync.Mutex
	zones []image.Rectangle
	err   error
}

func (m *mockCapturer) Capture(_ context.Context, r image.Rectangle) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = append(m.zones, r)
	if m.err != nil {
		return nil, m.err
	}
	return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
}

func (m *mockCapturer) Close() {}

type passEnhancer struct{}

func (passEnhancer) Enhance(img image.Image) (image.Image, error) { return img, nil }

type mockOCR struct {
	mu   sync.Mutex
	text string
}

func (m *mockOCR) set(text string) {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
}

func (m *mockOCR) Recognize(context.Context, image.Image) ([]ocr.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.text == "" {
		return nil, nil
	}
	return []ocr.Detection{{Text: m.text, Confidence: 0.9}}, nil
}

type mockJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *mockJournal) Record(_ context.Context, e journal.Entry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return int64(len(m.entries)), nil
}

func (m *mockJournal) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type mockArtifacts struct {
	mu     sync.Mutex
	deaths int
	tests  int
}

func (m *mockArtifacts) SaveDeath(image.Image, image.Image) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deaths++
	return "death_screenshot_1.png", "death_processed_1.png", nil
}

func (m *mockArtifacts) SaveTestCapture(image.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests++
	return "test_capture_1.png", nil
}

type countingCue struct {
	mu    sync.Mutex
	plays int
}

func (c *countingCue) Play() {
	c.mu.Lock()
	c.plays++
	c.mu.Unlock()
}

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) Publish(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *eventSink) kinds(k eventlog.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

type fixture struct {
	m         *Manager
	cfg       *config.Config
	capturer  *mockCapturer
	ocr       *mockOCR
	journal   *mockJournal
	artifacts *mockArtifacts
	cue       *countingCue
	sink      *eventSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.ScanDelay = 0.001
	cfg.ActiveScanDelay = 0.001
	cfg.DebugMode = true

	f := &fixture{
		cfg:       cfg,
		capturer:  &mockCapturer{},
		ocr:       &mockOCR{},
		journal:   &mockJournal{},
		artifacts: &mockArtifacts{},
		cue:       &countingCue{},
		sink:      &eventSink{},
	}
	f.m = New(Deps{
		Capturer:  f.capturer,
		Enhancer:  passEnhancer{},
		OCR:       f.ocr,
		Counter:   counter.New(counter.NewFileStore(filepath.Join(t.TempDir(), "death_counter.json"))),
		Journal:   f.journal,
		Artifacts: f.artifacts,
		Cue:       f.cue,
		Sink:      f.sink,
	}, cfg)
	t.Cleanup(f.m.Stop)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartCountsDeathOnce(t *testing.T) {
	f := newFixture(t)
	f.ocr.set("YOU DIED")

	if err := f.m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "first death", func() bool { return f.m.Count() == 1 })

	// Message stays on screen for many more cycles.
	time.Sleep(30 * time.Millisecond)
	f.m.Stop()

	if f.m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", f.m.Count())
	}
	if f.journal.len() != 1 {
		t.Errorf("journal entries = %d, want 1", f.journal.len())
	}
	if f.artifacts.deaths != 1 {
		t.Errorf("artifacts saved = %d, want 1", f.artifacts.deaths)
	}
	if f.cue.plays != 1 {
		t.Errorf("cue plays = %d, want 1", f.cue.plays)
	}
	if f.m.Running() {
		t.Error("Running() should be false after Stop")
	}
	if f.sink.kinds(eventlog.KindStopped) != 1 {
		t.Error("expected one stopped event")
	}

	e := f.journal.entries[0]
	if e.Phrase != "YOU DIED" || !e.Exact || e.Count != 1 || e.RawPath == "" {
		t.Errorf("journal entry = %+v", e)
	}
}

func TestSecondDeathAfterMessageClears(t *testing.T) {
	f := newFixture(t)
	f.ocr.set("VOUS ÊTES MORT")

	if err := f.m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first death", func() bool { return f.m.Count() == 1 })

	f.ocr.set("")
	time.Sleep(20 * time.Millisecond)
	f.ocr.set("VOUS AVEZ PÉRI")
	waitFor(t, "second death", func() bool { return f.m.Count() == 2 })
}

func TestStartTwice(t *testing.T) {
	f := newFixture(t)
	if err := f.m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.m.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
}

func TestStartInvalidZone(t *testing.T) {
	f := newFixture(t)
	f.cfg.CaptureZoneWidth = 5000

	err := f.m.Start(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("Start() = %v, want CONFIG_INVALID", err)
	}
	if f.m.Running() {
		t.Error("manager should not be running")
	}
}

func TestStartUsesCenteredZone(t *testing.T) {
	f := newFixture(t)
	if err := f.m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "a capture", func() bool {
		f.capturer.mu.Lock()
		defer f.capturer.mu.Unlock()
		return len(f.capturer.zones) > 0
	})
	f.m.Stop()

	want := image.Rect(210, 415, 1710, 665)
	if got := f.capturer.zones[0]; got != want {
		t.Errorf("zone = %v, want %v", got, want)
	}
}

func TestResetWhileRunning(t *testing.T) {
	f := newFixture(t)
	f.ocr.set("YOU DIED")

	if err := f.m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first death", func() bool { return f.m.Count() == 1 })

	n, err := f.m.Reset()
	if err != nil || n != 0 {
		t.Fatalf("Reset() = (%d, %v), want (0, nil)", n, err)
	}

	// Same death still on screen: no recount.
	time.Sleep(20 * time.Millisecond)
	if f.m.Count() != 0 {
		t.Errorf("Count() = %d after reset, want 0", f.m.Count())
	}
	if f.sink.kinds(eventlog.KindReset) != 1 {
		t.Error("expected one reset event")
	}
}

func TestResetWhileStopped(t *testing.T) {
	f := newFixture(t)
	_, _ = f.m.deps.Counter.Increment()

	if n, err := f.m.Reset(); err != nil || n != 0 {
		t.Errorf("Reset() = (%d, %v), want (0, nil)", n, err)
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	f := newFixture(t)
	f.m.Stop()
	f.m.Stop()
}

func TestRestartAfterStop(t *testing.T) {
	f := newFixture(t)
	if err := f.m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.m.Stop()
	if err := f.m.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if !f.m.Running() {
		t.Error("Running() should be true after restart")
	}
}

func TestCaptureErrorsDoNotStopMonitoring(t *testing.T) {
	f := newFixture(t)
	f.capturer.err = apperrors.New(apperrors.CodeCaptureFailed, "no display")

	if err := f.m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if !f.m.Running() {
		t.Error("capture failures should not stop the worker")
	}
}

func TestTestZone(t *testing.T) {
	f := newFixture(t)

	path, err := f.m.TestZone(context.Background())
	if err != nil {
		t.Fatalf("TestZone() error = %v", err)
	}
	if path != "test_capture_1.png" {
		t.Errorf("path = %q", path)
	}
	if f.artifacts.tests != 1 {
		t.Errorf("test captures = %d, want 1", f.artifacts.tests)
	}
}

func TestScreens(t *testing.T) {
	f := newFixture(t)
	f.cfg.ScreenWidth = 3840
	m := New(f.m.deps, f.cfg)

	if len(m.Screens()) != 2 {
		t.Fatalf("Screens() = %d, want 2", len(m.Screens()))
	}
	if m.SelectedScreen().Label != "Left" {
		t.Errorf("default screen = %s, want Left", m.SelectedScreen().Description())
	}
	if s := m.NextScreen(); s.Label != "Right" {
		t.Errorf("NextScreen() = %s, want Right", s.Description())
	}
	if f.cfg.SelectedScreen != "Right (1920x1080)" {
		t.Errorf("SelectedScreen = %q", f.cfg.SelectedScreen)
	}
	if s := m.NextScreen(); s.Label != "Left" {
		t.Errorf("NextScreen() should wrap, got %s", s.Description())
	}
}
