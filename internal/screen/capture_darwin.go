//go:build darwin

package screen

import (
	"context"
	"fmt"
	"image"
)

type darwinBackend struct{}

func (darwinBackend) name() string { return "screencapture" }

// -x: no sound, -R: region in points. Retina screens write 2x pixels.
func (darwinBackend) capture(ctx context.Context, rect image.Rectangle, path string) (bool, error) {
	region := fmt.Sprintf("%d,%d,%d,%d", rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	return false, run(ctx, "screencapture", "-x", "-t", "png", "-R", region, path)
}

// New creates a platform-specific screen capturer
func New() Capturer {
	return newBase(darwinBackend{})
}
