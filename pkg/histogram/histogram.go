// Package histogram builds the luminance summary sent to the recommendation model.
package histogram

import (
	"errors"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// SampleSize is the edge of the square the image is downsampled to
	SampleSize = 144

	// Buckets is the resolution of a full histogram
	Buckets = 256

	// CompressedBuckets is the resolution sent to the remote model
	CompressedBuckets = 32
)

// ErrEmptySurface is returned when the image has no pixels to sample
var ErrEmptySurface = errors.New("image surface is empty")

// Histogram is a normalized distribution: the largest bucket is 1.0
type Histogram []float64

// Sample downsamples img to SampleSize x SampleSize, converts it to grayscale
// and returns the normalized 256-bucket luminance histogram.
func Sample(img image.Image) (Histogram, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptySurface
	}

	gray := imaging.Grayscale(imaging.Resize(img, SampleSize, SampleSize, imaging.Linear))

	counts := make([]float64, Buckets)
	// grayscale collapses the channels, so red alone is the luminance
	for i := 0; i < len(gray.Pix); i += 4 {
		counts[gray.Pix[i]]++
	}

	return normalize(counts), nil
}

// Compress sums len(h)/buckets contiguous values per output bucket and
// re-normalizes by the largest sum. Trailing values that do not fill a
// complete slice are dropped, as the fixed slice size implies.
func Compress(h Histogram, buckets int) Histogram {
	return normalize(Sums(h, buckets))
}

// Sums returns the un-normalized slice sums used by Compress
func Sums(h Histogram, buckets int) []float64 {
	if buckets <= 0 || len(h) == 0 {
		return nil
	}
	size := len(h) / buckets
	if size == 0 {
		size = 1
		buckets = len(h)
	}

	sums := make([]float64, buckets)
	for i := 0; i < buckets; i++ {
		for _, v := range h[i*size : (i+1)*size] {
			sums[i] += v
		}
	}
	return sums
}

// Max returns the largest value, or 0 for an empty histogram
func (h Histogram) Max() float64 {
	var max float64
	for _, v := range h {
		if v > max {
			max = v
		}
	}
	return max
}

// Sum returns the total of all buckets
func (h Histogram) Sum() float64 {
	var sum float64
	for _, v := range h {
		sum += v
	}
	return sum
}

// Format joins the values as comma-separated decimals
func Format(h Histogram) string {
	parts := make([]string, len(h))
	for i, v := range h {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func normalize(values []float64) Histogram {
	out := make(Histogram, len(values))
	max := Histogram(values).Max()
	if max == 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / max
	}
	return out
}
