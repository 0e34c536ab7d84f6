// Package detect runs one capture, enhance, recognize and match cycle.
package detect

import (
	"context"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
	"github.com/0xBAD5EED5/deathcounter/internal/ocr"
	"github.com/0xBAD5EED5/deathcounter/internal/phrase"
	screencap "github.com/0xBAD5EED5/deathcounter/internal/screen"
	"github.com/0xBAD5EED5/deathcounter/internal/trace"
)

// Enhancer prepares a frame for OCR. It returns a usable image even when it
// also returns an error.
type Enhancer interface {
	Enhance(img image.Image) (image.Image, error)
}

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]ocr.Detection, error)
}

// Options tunes the processor.
type Options struct {
	// SkipSimilarFrames reuses the previous verdict when the perceptual hash
	// of the capture is within MaxHashDistance of the last analyzed frame.
	SkipSimilarFrames bool
	MaxHashDistance   int
}

// Result is the outcome of one cycle.
type Result struct {
	Visible    bool
	Match      phrase.Match
	Raw        image.Image
	Processed  image.Image
	Detections []ocr.Detection
	Skipped    bool  // OCR skipped, verdict reused from the previous frame
	Err        error // logged failure; Visible is false when set
}

// Processor runs detection cycles. Not safe for concurrent use.
type Processor struct {
	capturer screencap.Capturer
	enhancer Enhancer
	ocr      Recognizer
	matcher  *phrase.Matcher
	opts     Options

	lastHash    *goimagehash.ImageHash
	lastVisible bool
	lastMatch   phrase.Match
}

// NewProcessor creates a detection processor.
func NewProcessor(capturer screencap.Capturer, enhancer Enhancer, recognizer Recognizer, matcher *phrase.Matcher, opts Options) *Processor {
	return &Processor{
		capturer: capturer,
		enhancer: enhancer,
		ocr:      recognizer,
		matcher:  matcher,
		opts:     opts,
	}
}

// RunOnce captures zone and reports whether a death message is visible.
// Errors and panics are logged and reported in Result.Err, never raised.
func (p *Processor) RunOnce(ctx context.Context, zone image.Rectangle) (res Result) {
	ctx, span := trace.StartSpan(ctx, "detection_cycle")
	defer span.End()
	log := trace.Logger(ctx)

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("detection cycle panicked: %v", r)}
			log.Error("error during capture/analysis", "error", res.Err)
		}
		span.SetAttr("visible", res.Visible)
		span.SetAttr("skipped", res.Skipped)
	}()

	raw, err := p.capturer.Capture(ctx, zone)
	if err != nil {
		log.Warn("error during capture", "error", err)
		return Result{Err: err}
	}
	res.Raw = raw

	if p.opts.SkipSimilarFrames && p.shouldSkipOCR(ctx, raw) {
		res.Skipped = true
		res.Visible = p.lastVisible
		res.Match = p.lastMatch
		return res
	}

	processed, err := p.enhancer.Enhance(raw)
	if err != nil {
		log.Debug("error preprocessing image", "error", err)
	}
	if processed == nil {
		processed = raw
	}
	res.Processed = processed

	dets, err := p.ocr.Recognize(ctx, processed)
	if err == nil && len(dets) == 0 {
		// Enhancement sometimes erases large glyphs; retry on the raw frame.
		dets, err = p.ocr.Recognize(ctx, raw)
	}
	if err != nil {
		// An open breaker was already reported when it opened.
		if apperrors.IsCode(err, apperrors.CodeOCRUnavailable) {
			log.Debug("ocr unavailable, skipping analysis", "error", err)
		} else {
			log.Warn("error during analysis", "error", err)
		}
		res.Err = err
		p.remember(false, phrase.Match{})
		return res
	}
	res.Detections = dets

	for _, d := range dets {
		log.Debug("recognized text", "text", d.Text, "confidence", fmt.Sprintf("%.2f", d.Confidence))
	}

	res.Match, res.Visible = p.matcher.Find(dets)
	p.remember(res.Visible, res.Match)
	return res
}

func (p *Processor) remember(visible bool, m phrase.Match) {
	p.lastVisible = visible
	p.lastMatch = m
}

// Reset forgets the previous frame.
func (p *Processor) Reset() {
	p.lastHash = nil
	p.remember(false, phrase.Match{})
}

// shouldSkipOCR computes pHash and returns true if the frame is within
// MaxHashDistance of the last analyzed one.
func (p *Processor) shouldSkipOCR(ctx context.Context, img image.Image) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	if p.lastHash == nil {
		p.lastHash = hash
		return false
	}

	dist, err := p.lastHash.Distance(hash)
	if err != nil {
		p.lastHash = hash
		return false
	}

	// Skip OCR if Hamming distance <= threshold (frames are similar)
	if dist <= p.opts.MaxHashDistance {
		trace.Logger(ctx).Debug("skipping OCR due to similar frame", "distance", dist)
		return true
	}

	p.lastHash = hash
	return false
}
