package screen

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/disintegration/imaging"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

func TestDetectScreens(t *testing.T) {
	tests := []struct {
		name  string
		total image.Point
		want  []string
	}{
		{"single", image.Pt(1920, 1080), []string{"Primary (1920x1080)"}},
		{"boundary stays single", image.Pt(2560, 1440), []string{"Primary (2560x1440)"}},
		{"dual", image.Pt(3840, 1080), []string{"Left (1920x1080)", "Right (1920x1080)"}},
		{"unknown", image.Point{}, []string{"Default (1920x1080)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectScreens(tt.total)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d screens, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Description() != tt.want[i] {
					t.Errorf("screen %d = %q, want %q", i, got[i].Description(), tt.want[i])
				}
			}
		})
	}

	dual := DetectScreens(image.Pt(3840, 1080))
	if dual[1].Origin != image.Pt(1920, 0) {
		t.Errorf("right monitor origin = %v, want (1920,0)", dual[1].Origin)
	}
}

func TestSelect(t *testing.T) {
	screens := DetectScreens(image.Pt(3840, 1080))
	if i := Select(screens, "Right (1920x1080)"); i != 1 {
		t.Errorf("Select(right) = %d, want 1", i)
	}
	if i := Select(screens, "Primary (800x600)"); i != 0 {
		t.Errorf("Select(unknown) = %d, want 0", i)
	}
}

func TestZone(t *testing.T) {
	primary := Screen{Label: "Primary", Size: image.Pt(1920, 1080)}
	right := Screen{Label: "Right", Origin: image.Pt(1920, 0), Size: image.Pt(1920, 1080)}

	tests := []struct {
		name   string
		screen Screen
		w, h   int
		want   image.Rectangle
	}{
		{"default zone", primary, 1500, 250, image.Rect(210, 415, 1710, 665)},
		{"offset screen", right, 1500, 250, image.Rect(2130, 415, 3630, 665)},
		{"odd remainder", primary, 1001, 251, image.Rect(459, 414, 1460, 665)},
		{"full screen", primary, 1920, 1080, image.Rect(0, 0, 1920, 1080)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Zone(tt.screen, tt.w, tt.h)
			if err != nil {
				t.Fatalf("Zone() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Zone() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZoneInvalid(t *testing.T) {
	s := Screen{Label: "Primary", Size: image.Pt(1920, 1080)}
	for _, dims := range [][2]int{{0, 250}, {1500, -1}, {2000, 250}, {1500, 1200}} {
		if _, err := Zone(s, dims[0], dims[1]); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
			t.Errorf("Zone(%v) error = %v, want CONFIG_INVALID", dims, err)
		}
	}
}

// fakeBackend writes a solid desktop-sized or region-sized PNG.
type fakeBackend struct {
	desktop image.Point // non-zero: write the whole desktop
	scale   int         // region written at scale x the requested size
	err     error
}

func (fakeBackend) name() string { return "fake" }

func (f fakeBackend) capture(_ context.Context, rect image.Rectangle, path string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	size, full := rect.Size(), false
	if f.desktop != (image.Point{}) {
		size, full = f.desktop, true
	}
	if f.scale > 1 {
		size = size.Mul(f.scale)
	}
	img := imaging.New(size.X, size.Y, color.White)
	return full, imaging.Save(img, path)
}

func TestCaptureRegion(t *testing.T) {
	c := newBase(fakeBackend{})
	defer c.Close()

	img, err := c.Capture(context.Background(), image.Rect(100, 100, 400, 200))
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 100 {
		t.Errorf("bounds = %v, want 300x100", img.Bounds())
	}
}

func TestCaptureCropsDesktop(t *testing.T) {
	c := newBase(fakeBackend{desktop: image.Pt(1920, 1080)})
	defer c.Close()

	img, err := c.Capture(context.Background(), image.Rect(210, 415, 1710, 665))
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Bounds().Dx() != 1500 || img.Bounds().Dy() != 250 {
		t.Errorf("bounds = %v, want 1500x250", img.Bounds())
	}
}

func TestCaptureResizesScaledRegion(t *testing.T) {
	c := newBase(fakeBackend{scale: 2})
	defer c.Close()

	img, err := c.Capture(context.Background(), image.Rect(210, 415, 1710, 665))
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Bounds().Dx() != 1500 || img.Bounds().Dy() != 250 {
		t.Errorf("bounds = %v, want 1500x250", img.Bounds())
	}
}

func TestCaptureFailure(t *testing.T) {
	c := newBase(fakeBackend{err: errors.New("no display")})
	defer c.Close()

	_, err := c.Capture(context.Background(), image.Rect(0, 0, 10, 10))
	if !apperrors.IsCode(err, apperrors.CodeCaptureFailed) {
		t.Errorf("Capture() error = %v, want CAPTURE_FAILED", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Error("capture failures should be retryable")
	}
}

func TestCapturerClose(t *testing.T) {
	c := newBase(fakeBackend{})
	tempDir := c.tempDir

	c.Close()

	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Error("temp directory should be removed after Close")
	}
}
