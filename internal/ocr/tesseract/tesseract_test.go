package tesseract

import (
	"context"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/disintegration/imaging"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

// Integration test - only runs when tesseract language data is installed
func TestEngineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("DEATHCOUNTER_TESSERACT_IT") == "" {
		t.Skip("set DEATHCOUNTER_TESSERACT_IT=1 to run against a local tesseract install")
	}

	e, err := New(context.Background(), Options{Languages: []string{"eng"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()

	dets, err := e.Recognize(context.Background(), imaging.New(200, 50, color.White))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	for _, d := range dets {
		if d.Confidence < 0 || d.Confidence > 1 {
			t.Errorf("confidence %f outside [0,1]", d.Confidence)
		}
	}

	if _, err := e.Recognize(context.Background(), image.NewGray(image.Rectangle{})); !apperrors.IsCode(err, apperrors.CodeOCRInvalidImage) {
		t.Errorf("empty image err = %v, want OCR_INVALID_IMAGE", err)
	}
}
