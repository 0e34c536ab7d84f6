//go:build linux

package screen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
)

type linuxBackend struct{}

func (linuxBackend) name() string { return "linux" }

// Region-capable tools first; scrot and gnome-screenshot grab the whole
// desktop and are cropped afterwards.
func (linuxBackend) capture(ctx context.Context, rect image.Rectangle, path string) (bool, error) {
	geom := fmt.Sprintf("%dx%d+%d+%d", rect.Dx(), rect.Dy(), rect.Min.X, rect.Min.Y)
	switch {
	case os.Getenv("WAYLAND_DISPLAY") != "" && has("grim"):
		return false, run(ctx, "grim", "-g", fmt.Sprintf("%d,%d %dx%d", rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy()), path)
	case has("import"):
		return false, run(ctx, "import", "-silent", "-window", "root", "-crop", geom, "+repage", path)
	case has("scrot"):
		return true, run(ctx, "scrot", "-o", path)
	case has("gnome-screenshot"):
		return true, run(ctx, "gnome-screenshot", "-f", path)
	}
	return false, errors.New("no screenshot tool found (install grim, imagemagick or scrot)")
}

func has(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

// New creates a platform-specific screen capturer
func New() Capturer {
	return newBase(linuxBackend{})
}
