//go:build windows

package screen

import (
	"context"
	"fmt"
	"image"
)

type windowsBackend struct{}

func (windowsBackend) name() string { return "powershell" }

const copyFromScreen = `Add-Type -AssemblyName System.Drawing
$bmp = New-Object System.Drawing.Bitmap %[3]d, %[4]d
$g = [System.Drawing.Graphics]::FromImage($bmp)
$g.CopyFromScreen(%[1]d, %[2]d, 0, 0, $bmp.Size)
$bmp.Save('%[5]s', [System.Drawing.Imaging.ImageFormat]::Png)
$g.Dispose(); $bmp.Dispose()`

func (windowsBackend) capture(ctx context.Context, rect image.Rectangle, path string) (bool, error) {
	script := fmt.Sprintf(copyFromScreen, rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy(), path)
	return false, run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
}

// New creates a platform-specific screen capturer
func New() Capturer {
	return newBase(windowsBackend{})
}
