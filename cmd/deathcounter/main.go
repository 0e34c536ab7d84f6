// Death counter - watches a screen zone for death messages and counts them
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/0xBAD5EED5/deathcounter/internal/artifacts"
	"github.com/0xBAD5EED5/deathcounter/internal/config"
	"github.com/0xBAD5EED5/deathcounter/internal/counter"
	"github.com/0xBAD5EED5/deathcounter/internal/cue"
	"github.com/0xBAD5EED5/deathcounter/internal/cue/output"
	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
	"github.com/0xBAD5EED5/deathcounter/internal/journal"
	"github.com/0xBAD5EED5/deathcounter/internal/ocr"
	"github.com/0xBAD5EED5/deathcounter/internal/ocr/tesseract"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/eventlog"
	"github.com/0xBAD5EED5/deathcounter/internal/preprocess"
	"github.com/0xBAD5EED5/deathcounter/internal/preprocess/cvfilter"
	"github.com/0xBAD5EED5/deathcounter/internal/resilience"
	screencap "github.com/0xBAD5EED5/deathcounter/internal/screen"
	"github.com/0xBAD5EED5/deathcounter/internal/tui"
)

const logFile = "deathcounter.log"

type flags struct {
	configPath string
	tui        bool
	reset      bool
	testZone   bool
	history    int
	screens    bool
	verbose    bool
	debug      bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", config.DefaultFile, "path to the JSON configuration file")
	flag.BoolVar(&f.tui, "tui", false, "run the interactive terminal interface")
	flag.BoolVar(&f.reset, "reset", false, "reset the death counter to 0 and exit")
	flag.BoolVar(&f.testZone, "test-zone", false, "capture the zone once, save test_capture_<ts>.png and exit")
	flag.IntVar(&f.history, "history", 0, "print the N most recent recorded deaths and exit")
	flag.BoolVar(&f.screens, "screens", false, "list detected screens and exit")
	flag.BoolVar(&f.verbose, "verbose", false, "log every OCR detection")
	flag.BoolVar(&f.debug, "debug", false, "save raw and processed screenshots on each death")
	flag.Parse()
	return f
}

func main() {
	os.Exit(run(parseFlags()))
}

func run(f flags) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	// Load before logging is set up so config warnings go to stderr.
	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}
	cfg.VerboseMode = cfg.VerboseMode || f.verbose
	cfg.DebugMode = cfg.DebugMode || f.debug

	closeLog, err := setupLogging(cfg.VerboseMode, f.tui)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		return 1
	}
	defer closeLog()

	store := counter.NewFileStore(cfg.CounterFile)

	switch {
	case f.reset:
		if _, err := store.Reset(); err != nil {
			slog.Error("failed to reset counter", "error", err)
			return 1
		}
		fmt.Println("Counter reset to 0")
		return 0
	case f.history > 0:
		return printHistory(cfg.JournalPath, f.history)
	case f.screens:
		return printScreens(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deaths := counter.New(store)
	slog.Info(fmt.Sprintf("Counter loaded: %d previous deaths", deaths.Value()), "file", store.Path())

	capturer := screencap.New()
	defer capturer.Close()

	deps := orchestrator.Deps{
		Capturer:  capturer,
		Enhancer:  preprocess.New(preprocess.Options{ContrastFactor: cfg.ContrastFactor, SharpnessFactor: cfg.SharpnessFactor}, cvfilter.Median(cfg.MedianSize)),
		Counter:   deaths,
		Artifacts: artifacts.NewWriter(cfg.ArtifactDir),
	}

	if f.testZone {
		m := orchestrator.New(deps, cfg)
		if _, err := m.TestZone(ctx); err != nil {
			return 1
		}
		return 0
	}

	engine, err := tesseract.New(ctx, tesseract.Options{Languages: cfg.OCRLanguages, TessdataPrefix: cfg.TessdataPrefix})
	if err != nil {
		slog.Error("failed to initialize OCR", "error", err, "code", apperrors.CodeOf(err))
		return 1
	}
	breaker := resilience.New(resilience.OCRConfig())
	recognizer := ocr.Guard(engine, breaker)
	defer func() { _ = recognizer.Close() }()
	deps.OCR = recognizer

	if j, err := journal.Open(cfg.JournalPath); err != nil {
		slog.Warn("death history disabled", "error", err)
	} else {
		defer func() { _ = j.Close() }()
		deps.Journal = j
	}

	if cfg.SoundCue {
		if play, err := output.Speaker(); err != nil {
			slog.Warn("sound cue disabled", "error", err)
		} else {
			defer output.Close()
			deps.Cue = cue.New(play)
		}
	}

	if f.tui {
		return runTUI(ctx, deps, breaker, cfg, f.configPath)
	}
	return runHeadless(ctx, deps, breaker, cfg)
}

func runHeadless(ctx context.Context, deps orchestrator.Deps, breaker *resilience.Breaker, cfg *config.Config) int {
	breaker.WithHook(orchestrator.BreakerNotice(orchestrator.LogSink{}))
	m := orchestrator.New(deps, cfg)
	if err := m.Start(ctx); err != nil {
		slog.Error("failed to start monitoring", "error", err)
		return 1
	}

	<-ctx.Done()
	slog.Info("shutting down...")
	m.Stop()
	slog.Info(fmt.Sprintf("Program stopped. Total deaths: %d", m.Count()))
	return 0
}

func runTUI(ctx context.Context, deps orchestrator.Deps, breaker *resilience.Breaker, cfg *config.Config, cfgPath string) int {
	screen, err := tui.NewScreen()
	if err != nil {
		slog.Error("failed to open terminal", "error", err)
		return 1
	}
	defer screen.Fini()

	app := tui.New(screen, eventlog.NewStore(orchestrator.EventLogMaxEntries, orchestrator.EventLogBuffer), cfg, cfgPath)
	deps.Sink = orchestrator.Tee(orchestrator.LogSink{}, app.Sink())
	breaker.WithHook(orchestrator.BreakerNotice(deps.Sink))
	m := orchestrator.New(deps, cfg)

	go func() {
		<-ctx.Done()
		app.Quit()
	}()

	if err := app.Run(ctx, m); err != nil {
		slog.Error("terminal interface error", "error", err)
		return 1
	}
	slog.Info(fmt.Sprintf("Program stopped. Total deaths: %d", m.Count()))
	return 0
}

func printHistory(path string, limit int) int {
	j, err := journal.Open(path)
	if err != nil {
		slog.Error("failed to open death history", "error", err)
		return 1
	}
	defer func() { _ = j.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := j.Recent(ctx, limit)
	if err != nil {
		slog.Error("failed to read death history", "error", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Println("No deaths recorded")
		return 0
	}
	for _, e := range entries {
		match := "fuzzy"
		if e.Exact {
			match = "exact"
		}
		fmt.Printf("#%-4d %s  %-16s %s %.2f  %q\n",
			e.Count, e.DetectedAt.Local().Format("2006-01-02 15:04:05"), e.Phrase, match, e.Similarity, e.Text)
	}
	return 0
}

func printScreens(cfg *config.Config) int {
	m := orchestrator.New(orchestrator.Deps{}, cfg)
	selected := m.SelectedScreen().Description()
	for i, s := range m.Screens() {
		marker := " "
		if s.Description() == selected {
			marker = "*"
		}
		fmt.Printf("%s %d  %-16s %s\n", marker, i, s.Name, s.Description())
	}
	return 0
}

// setupLogging installs the default slog logger. The TUI owns the terminal,
// so in that mode logs go to a file.
func setupLogging(verbose, toFile bool) (func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	closeFn := func() {}
	if toFile {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = file
		closeFn = func() { _ = file.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closeFn, nil
}
