// Package screen captures a rectangle of the desktop and describes the
// available monitors.
package screen

import (
	"fmt"
	"image"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

// Widths above this are assumed to be two side-by-side monitors.
const dualMonitorWidth = 2560

// Screen is one monitor in absolute desktop coordinates.
type Screen struct {
	Name   string
	Label  string // short label used in Description
	Origin image.Point
	Size   image.Point
}

// Description identifies the screen in the UI and the config file,
// e.g. "Primary (1920x1080)".
func (s Screen) Description() string {
	return fmt.Sprintf("%s (%dx%d)", s.Label, s.Size.X, s.Size.Y)
}

// Bounds returns the screen rectangle.
func (s Screen) Bounds() image.Rectangle {
	return image.Rectangle{Min: s.Origin, Max: s.Origin.Add(s.Size)}
}

// DetectScreens derives the monitor list from the total desktop size. A
// desktop wider than 2560px is split into equal left and right halves.
func DetectScreens(total image.Point) []Screen {
	if total.X <= 0 || total.Y <= 0 {
		return []Screen{{Name: "Default Screen", Label: "Default", Size: image.Pt(1920, 1080)}}
	}
	if total.X > dualMonitorWidth {
		half := total.X / 2
		return []Screen{
			{Name: "Left Monitor", Label: "Left", Size: image.Pt(half, total.Y)},
			{Name: "Right Monitor", Label: "Right", Origin: image.Pt(half, 0), Size: image.Pt(half, total.Y)},
		}
	}
	return []Screen{{Name: "Primary Screen", Label: "Primary", Size: total}}
}

// Select returns the index of the screen with the given description, or 0.
func Select(screens []Screen, description string) int {
	for i, s := range screens {
		if s.Description() == description {
			return i
		}
	}
	return 0
}

// Zone returns a width x height rectangle centered on s.
func Zone(s Screen, width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, apperrors.Newf(apperrors.CodeConfigInvalid, "capture zone must be positive, got %dx%d", width, height)
	}
	left := s.Origin.X + (s.Size.X-width)/2
	top := s.Origin.Y + (s.Size.Y-height)/2
	zone := image.Rect(left, top, left+width, top+height)
	if !zone.In(s.Bounds()) {
		return image.Rectangle{}, apperrors.Newf(apperrors.CodeConfigInvalid,
			"capture zone %dx%d does not fit on %s", width, height, s.Description())
	}
	return zone, nil
}
