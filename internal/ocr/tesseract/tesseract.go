// Package tesseract adapts the Tesseract OCR engine to ocr.Engine.
package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
	"github.com/0xBAD5EED5/deathcounter/internal/ocr"
	"github.com/0xBAD5EED5/deathcounter/internal/resilience"
)

// Options configures the engine.
type Options struct {
	Languages      []string // tesseract codes, e.g. "eng", "fra"
	TessdataPrefix string   // empty uses the library default
}

// Engine recognizes text lines with a single gosseract client.
// Not safe for concurrent use.
type Engine struct {
	client *gosseract.Client
	opts   Options
}

var _ ocr.Engine = (*Engine)(nil)

// New creates the engine and runs a probe recognition so missing language
// data fails here rather than on the first cycle. The probe is retried with
// resilience.EngineInitRetryConfig; a final failure is OCR_INIT_FAILED.
func New(ctx context.Context, opts Options) (*Engine, error) {
	var e *Engine
	err := resilience.Retry(ctx, resilience.EngineInitRetryConfig(), func() error {
		candidate, err := open(opts)
		if err != nil {
			return err
		}
		if err := candidate.probe(); err != nil {
			_ = candidate.Close()
			return err
		}
		e = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("ocr engine ready", "engine", "tesseract", "version", e.client.Version(), "languages", opts.Languages)
	return e, nil
}

func open(opts Options) (*Engine, error) {
	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			_ = client.Close()
			return nil, apperrors.Wrap(err, apperrors.CodeOCRInitFailed, "set tessdata prefix").
				WithMetadata("prefix", opts.TessdataPrefix)
		}
	}
	if err := client.SetLanguage(opts.Languages...); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeOCRInitFailed, "set languages").
			WithMetadata("languages", strings.Join(opts.Languages, "+"))
	}
	return &Engine{client: client, opts: opts}, nil
}

func (e *Engine) probe() error {
	blank := imaging.New(32, 32, color.White)
	if _, err := e.recognize(blank); err != nil {
		return apperrors.Wrap(err, apperrors.CodeOCRInitFailed, "probe recognition")
	}
	return nil
}

// Recognize returns one detection per recognized text line, confidence scaled to [0,1].
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.New(apperrors.CodeOCRInvalidImage, "empty image")
	}
	return e.recognize(img)
}

func (e *Engine) recognize(img image.Image) ([]ocr.Detection, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOCRInvalidImage, "encode image")
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOCRExtractFailed, "set image")
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOCRExtractFailed, "text lines")
	}

	dets := make([]ocr.Detection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		dets = append(dets, ocr.Detection{
			Text:       text,
			Confidence: b.Confidence / 100,
			Box:        b.Box,
		})
	}
	return dets, nil
}

// Close releases the tesseract client.
func (e *Engine) Close() error {
	return e.client.Close()
}
