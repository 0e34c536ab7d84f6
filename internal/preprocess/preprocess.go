// Package preprocess enhances captured frames before OCR.
package preprocess

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
)

// Enhancement defaults
const (
	DefaultContrastFactor  = 2.0
	DefaultSharpnessFactor = 1.5
	DefaultMedianSize      = 3
)

// Step is one enhancement stage.
type Step struct {
	Name  string
	Apply func(image.Image) (image.Image, error)
}

// Options configures the built-in steps.
type Options struct {
	ContrastFactor  float64 // 1.0 leaves contrast unchanged
	SharpnessFactor float64 // 1.0 leaves sharpness unchanged
}

// Enhancer runs grayscale, contrast and sharpen steps followed by any extra
// steps (the median filter lives in cvfilter).
type Enhancer struct {
	steps []Step
}

// New creates an enhancer with the built-in steps followed by extra.
func New(opts Options, extra ...Step) *Enhancer {
	steps := []Step{
		{Name: "grayscale", Apply: func(img image.Image) (image.Image, error) { return ToGray(img), nil }},
		Contrast(opts.ContrastFactor),
		Sharpen(opts.SharpnessFactor),
	}
	return &Enhancer{steps: append(steps, extra...)}
}

// WithSteps creates an enhancer running exactly steps.
func WithSteps(steps ...Step) *Enhancer {
	return &Enhancer{steps: steps}
}

// Enhance runs every step in order. If a step fails or panics the remaining
// steps are skipped and the best image so far is returned together with the
// error; the returned image is usable either way. The result is always *image.Gray.
func (e *Enhancer) Enhance(img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, apperrors.New(apperrors.CodeOCRInvalidImage, "empty image")
	}

	cur := img
	for _, s := range e.steps {
		next, err := apply(s, cur)
		if err != nil {
			slog.Warn("preprocess step failed, using partial result", "step", s.Name, "error", err)
			return ToGray(cur), err
		}
		if next != nil && !next.Bounds().Empty() {
			cur = next
		}
	}
	return ToGray(cur), nil
}

func apply(s Step, img image.Image) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", s.Name, r)
		}
	}()
	return s.Apply(img)
}

// Contrast scales contrast around mid-gray by factor.
func Contrast(factor float64) Step {
	pct := contrastPercent(factor)
	return Step{Name: "contrast", Apply: func(img image.Image) (image.Image, error) {
		if pct == 0 {
			return img, nil
		}
		return imaging.AdjustContrast(img, pct), nil
	}}
}

// contrastPercent maps a multiplicative factor onto imaging's percentage
// scale, where p in (0,100) multiplies by 1/(1-p/100) and p <= 0 by 1+p/100.
func contrastPercent(factor float64) float64 {
	switch {
	case factor <= 0:
		return -100
	case factor <= 1:
		return (factor - 1) * 100
	default:
		return min(99, (1-1/factor)*100)
	}
}

// smoothKernel is the 3x3 smoothing filter the sharpen step blends against.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// Sharpen scales sharpness by factor: out = smooth + factor*(img-smooth).
// 1.0 returns img unchanged, 0 gives the smoothed image.
func Sharpen(factor float64) Step {
	return Step{Name: "sharpen", Apply: func(img image.Image) (image.Image, error) {
		if factor == 1 {
			return img, nil
		}
		src := imaging.Clone(img)
		smooth := imaging.Convolve3x3(src, smoothKernel, &imaging.ConvolveOptions{Normalize: true})
		return blend(smooth, src, factor), nil
	}}
}

// blend extrapolates from base towards img by factor, keeping img's alpha.
// Both images must share bounds.
func blend(base, img *image.NRGBA, factor float64) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	for i, v := range img.Pix {
		if i%4 == 3 {
			out.Pix[i] = v
			continue
		}
		b := float64(base.Pix[i])
		out.Pix[i] = uint8(min(255, max(0, math.Round(b+factor*(float64(v)-b)))))
	}
	return out
}

// ToGray converts img to 8-bit luminance, returning it unchanged if it already is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g
}
