// Package cvfilter provides OpenCV-backed preprocessing steps.
package cvfilter

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/0xBAD5EED5/deathcounter/internal/preprocess"
)

// Median returns a median filter step with an odd kernel size.
func Median(ksize int) preprocess.Step {
	return preprocess.Step{Name: "median", Apply: func(img image.Image) (image.Image, error) {
		if ksize < 3 || ksize%2 == 0 {
			return img, nil
		}
		src, err := gocv.ImageGrayToMatGray(preprocess.ToGray(img))
		if err != nil {
			return nil, fmt.Errorf("failed to convert image to mat: %w", err)
		}
		defer src.Close()

		dst := gocv.NewMat()
		defer dst.Close()
		if err := gocv.MedianBlur(src, &dst, ksize); err != nil {
			return nil, fmt.Errorf("failed to apply median blur: %w", err)
		}
		if dst.Empty() {
			return nil, fmt.Errorf("median blur produced an empty mat")
		}
		return dst.ToImage()
	}}
}
