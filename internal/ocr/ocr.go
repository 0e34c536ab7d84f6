// Package ocr defines the text recognition boundary used by the detection cycle.
package ocr

import (
	"context"
	"errors"
	"image"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
	"github.com/0xBAD5EED5/deathcounter/internal/resilience"
)

// Detection is one recognized text span.
type Detection struct {
	Text       string
	Confidence float64 // 0..1
	Box        image.Rectangle
}

// Engine recognizes text in an image. Implementations need not be safe for
// concurrent use.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Detection, error)
	Close() error
}

// Guarded wraps an Engine with a circuit breaker so a wedged engine fails
// fast instead of stalling every cycle.
type Guarded struct {
	engine  Engine
	breaker *resilience.Breaker
}

// Guard wraps e with b. A nil breaker gets resilience.OCRConfig.
func Guard(e Engine, b *resilience.Breaker) *Guarded {
	if b == nil {
		b = resilience.New(resilience.OCRConfig())
	}
	return &Guarded{engine: e, breaker: b}
}

// Recognize runs the wrapped engine. While the breaker is open it returns
// an OCR_UNAVAILABLE error without calling the engine.
func (g *Guarded) Recognize(ctx context.Context, img image.Image) ([]Detection, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.New(apperrors.CodeOCRInvalidImage, "empty image")
	}
	dets, err := resilience.Execute(g.breaker, func() ([]Detection, error) {
		return g.engine.Recognize(ctx, img)
	})
	if errors.Is(err, resilience.ErrOpen) {
		return nil, apperrors.Wrap(err, apperrors.CodeOCRUnavailable, "ocr engine unavailable")
	}
	return dets, err
}

// State reports the breaker state.
func (g *Guarded) State() resilience.State { return g.breaker.State() }

// Close closes the wrapped engine.
func (g *Guarded) Close() error { return g.engine.Close() }
