// Package artifacts writes debug screenshots next to the counter.
package artifacts

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

// Writer saves PNG artifacts into a directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a writer for dir ("" means the working directory).
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir, now: time.Now}
}

// SaveDeath writes the raw capture and the preprocessed image of a counted
// death as death_screenshot_<unix>.png and death_processed_<unix>.png.
// processed may be nil.
func (w *Writer) SaveDeath(raw, processed image.Image) (rawPath, processedPath string, err error) {
	ts := w.now().Unix()
	if raw != nil {
		if rawPath, err = w.save(fmt.Sprintf("death_screenshot_%d.png", ts), raw); err != nil {
			return "", "", err
		}
	}
	if processed != nil {
		if processedPath, err = w.save(fmt.Sprintf("death_processed_%d.png", ts), processed); err != nil {
			return rawPath, "", err
		}
	}
	return rawPath, processedPath, nil
}

// SaveTestCapture writes a capture-zone check as test_capture_<unix>.png.
func (w *Writer) SaveTestCapture(img image.Image) (string, error) {
	return w.save(fmt.Sprintf("test_capture_%d.png", w.now().Unix()), img)
}

func (w *Writer) save(name string, img image.Image) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}
