// Package tui is the interactive terminal shell for the death counter.
package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"

	"github.com/0xBAD5EED5/deathcounter/internal/config"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator"
	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/eventlog"
	screencap "github.com/0xBAD5EED5/deathcounter/internal/screen"
)

// Controller is the monitor the UI drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Count() int
	Reset() (int, error)
	TestZone(ctx context.Context) (string, error)
	SelectedScreen() screencap.Screen
	NextScreen() screencap.Screen
}

type quitSignal struct{}

var (
	styleTitle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleCount   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleRunning = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleStopped = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleDeath   = tcell.StyleDefault.Foreground(tcell.ColorOrangeRed)
	styleHelp    = tcell.StyleDefault.Reverse(true)
)

// App owns the terminal screen. Worker events reach it only through
// PostEvent, so all drawing happens on the Run goroutine.
type App struct {
	screen  tcell.Screen
	log     *eventlog.Store
	cfg     *config.Config
	cfgPath string
	ctrl    Controller

	confirmReset bool
}

// New wraps an initialized screen.
func New(screen tcell.Screen, log *eventlog.Store, cfg *config.Config, cfgPath string) *App {
	return &App{screen: screen, log: log, cfg: cfg, cfgPath: cfgPath}
}

// NewScreen creates and initializes the terminal screen.
func NewScreen() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return screen, nil
}

// Sink returns the event sink to hand to the orchestrator. Events are
// stored and a redraw is posted to the UI goroutine.
func (a *App) Sink() orchestrator.Sink {
	return orchestrator.SinkFunc(func(e orchestrator.Event) {
		a.log.Publish(e)
		_ = a.screen.PostEvent(tcell.NewEventInterrupt(e))
	})
}

// Quit asks Run to save the configuration and return. Safe from any goroutine.
func (a *App) Quit() {
	_ = a.screen.PostEvent(tcell.NewEventInterrupt(quitSignal{}))
}

// Run processes input until the user quits. Monitoring is stopped and the
// configuration saved on the way out.
func (a *App) Run(ctx context.Context, ctrl Controller) error {
	a.ctrl = ctrl
	defer a.shutdown()

	a.draw()
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if !a.handleKey(ctx, ev) {
				return nil
			}
		case *tcell.EventInterrupt:
			if _, ok := ev.Data().(quitSignal); ok {
				return nil
			}
		case *tcell.EventResize:
			a.screen.Sync()
		}
		a.draw()
	}
}

func (a *App) shutdown() {
	if a.ctrl != nil {
		a.ctrl.Stop()
	}
	a.saveConfig()
}

// handleKey applies one key press and reports whether the UI keeps running.
func (a *App) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		return false
	}
	if ev.Key() != tcell.KeyRune {
		return true
	}

	r := ev.Rune()
	if a.confirmReset {
		a.confirmReset = false
		if r == 'y' || r == 'Y' {
			if _, err := a.ctrl.Reset(); err != nil {
				a.note(eventlog.KindError, fmt.Sprintf("Error saving counter: %v", err))
			}
		}
		return true
	}

	switch r {
	case 'q', 'Q':
		return false
	case 's', 'S':
		a.toggle(ctx)
	case 'r', 'R':
		a.confirmReset = true
	case 't', 'T':
		go func() { _, _ = a.ctrl.TestZone(ctx) }()
	case 'n', 'N':
		if a.ctrl.Running() {
			a.note(eventlog.KindInfo, "Stop monitoring before changing screen")
			break
		}
		s := a.ctrl.NextScreen()
		a.note(eventlog.KindInfo, "Selected screen: "+s.Description())
	case 'w', 'W':
		if a.saveConfig() {
			a.note(eventlog.KindInfo, "Configuration saved")
		}
	}
	return true
}

func (a *App) toggle(ctx context.Context) {
	if a.ctrl.Running() {
		a.ctrl.Stop()
		return
	}
	if err := a.ctrl.Start(ctx); err != nil {
		a.note(eventlog.KindError, fmt.Sprintf("Cannot start monitoring: %v", err))
	}
}

func (a *App) saveConfig() bool {
	if a.cfgPath == "" {
		return false
	}
	if err := a.cfg.SaveFile(a.cfgPath); err != nil {
		slog.Error("failed to save configuration", "error", err)
		a.note(eventlog.KindError, fmt.Sprintf("Error saving configuration: %v", err))
		return false
	}
	return true
}

func (a *App) note(kind eventlog.Kind, msg string) {
	a.log.Publish(orchestrator.Event{Kind: kind, Message: msg})
}
