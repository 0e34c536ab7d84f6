package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/eventlog"
)

const helpLine = " s start/stop  r reset  t test zone  n next screen  w save config  q quit "

func (a *App) draw() {
	a.screen.Clear()
	w, h := a.screen.Size()

	a.text(1, 0, "Death Counter", styleTitle)
	a.text(1, 2, fmt.Sprintf("Deaths: %d", a.ctrl.Count()), styleCount)

	if a.ctrl.Running() {
		a.text(1, 3, "Status: Monitoring", styleRunning)
	} else {
		a.text(1, 3, "Status: Stopped", styleStopped)
	}

	a.text(1, 4, fmt.Sprintf("Screen: %s  Zone: %dx%d  Scan delay: %.1fs",
		a.ctrl.SelectedScreen().Description(), a.cfg.CaptureZoneWidth, a.cfg.CaptureZoneHeight, a.cfg.ScanDelay),
		tcell.StyleDefault)

	logTop := 6
	rows := h - logTop - 1
	if rows > 0 {
		for i, e := range a.log.Recent(rows) {
			a.text(1, logTop+i, e.String(), eventStyle(e.Kind))
		}
	}

	footer := helpLine
	if a.confirmReset {
		footer = " Reset death counter to 0? (y/n) "
	}
	for x := 0; x < w; x++ {
		a.screen.SetContent(x, h-1, ' ', nil, styleHelp)
	}
	a.text(0, h-1, footer, styleHelp)

	a.screen.Show()
}

func (a *App) text(x, y int, s string, style tcell.Style) {
	w, _ := a.screen.Size()
	for _, r := range s {
		if x >= w {
			return
		}
		a.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func eventStyle(k eventlog.Kind) tcell.Style {
	switch k {
	case eventlog.KindDeath:
		return styleDeath
	case eventlog.KindError:
		return styleError
	}
	return tcell.StyleDefault
}
