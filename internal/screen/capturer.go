package screen

import (
	"context"
	"image"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

// Capturer grabs a rectangle of the desktop.
type Capturer interface {
	Capture(ctx context.Context, rect image.Rectangle) (image.Image, error)
	Close()
}

// backend writes a screenshot to path. fullDesktop reports that the tool
// ignored rect and grabbed the whole desktop.
type backend interface {
	name() string
	capture(ctx context.Context, rect image.Rectangle, path string) (fullDesktop bool, err error)
}

// baseCapturer runs a backend into a temp file and decodes it. Full-desktop
// grabs are cropped to rect; region grabs written at a different scale
// (HiDPI displays) are resized to rect.
type baseCapturer struct {
	backend
	tempDir string
}

func newBase(b backend) *baseCapturer {
	tmpDir, err := os.MkdirTemp("", "deathcounter-screen-*")
	if err != nil {
		slog.Error("failed to create temp dir for screenshots", "error", err)
		tmpDir = os.TempDir()
	}
	return &baseCapturer{backend: b, tempDir: tmpDir}
}

func (c *baseCapturer) Capture(ctx context.Context, rect image.Rectangle) (image.Image, error) {
	if rect.Empty() {
		return nil, apperrors.New(apperrors.CodeCaptureFailed, "empty capture rectangle")
	}
	f, err := os.CreateTemp(c.tempDir, "capture-*.png")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "create temp file")
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	full, err := c.capture(ctx, rect, path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "screenshot").WithMetadata("backend", c.name())
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "decode screenshot").WithMetadata("backend", c.name())
	}

	b := img.Bounds()
	if b.Dx() == rect.Dx() && b.Dy() == rect.Dy() {
		return img, nil
	}
	if !full {
		slog.Debug("resizing scaled region capture", "backend", c.name(), "got", b.Size(), "want", rect.Size())
		return imaging.Resize(img, rect.Dx(), rect.Dy(), imaging.Lanczos), nil
	}
	// The decoded desktop starts at the desktop origin.
	crop := rect.Intersect(img.Bounds())
	if crop.Empty() {
		return nil, apperrors.Newf(apperrors.CodeCaptureFailed, "zone %v outside captured desktop %v", rect, img.Bounds())
	}
	return imaging.Crop(img, crop), nil
}

func (c *baseCapturer) Close() {
	if c.tempDir != "" && c.tempDir != os.TempDir() {
		os.RemoveAll(c.tempDir)
	}
}
