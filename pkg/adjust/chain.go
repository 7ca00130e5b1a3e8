// Package adjust turns adjustment values into a filter chain and renders it.
//
// Filters follow CSS filter-function semantics: a value v becomes the
// percentage v+100, so 0 is the identity.
package adjust

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
)

// Filter function names
const (
	Brightness = "brightness"
	Contrast   = "contrast"
	Saturate   = "saturate"
)

// Filter is one rendering-time transform
type Filter struct {
	Name    string
	Percent float64
}

func (f Filter) String() string {
	return fmt.Sprintf("%s(%s%%)", f.Name, formatPercent(f.Percent))
}

// Chain is an ordered list of filters, applied left to right
type Chain []Filter

// String renders the chain as a CSS filter value, e.g. "brightness(120%) contrast(90%)"
func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, f := range c {
		parts[i] = f.String()
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the chain leaves the image unchanged
func (c Chain) Empty() bool {
	return len(c) == 0
}

// percentFor maps a slider or recommendation value onto a filter percentage
func percentFor(value int) float64 {
	return float64(value + 100)
}

// FromAdjustments builds the chain for a recommendation. Only brightness and
// contrast have a rendering effect; highlights and shadows are carried in
// the data but produce no filter. Zero values are skipped.
func FromAdjustments(a types.Adjustments) Chain {
	var chain Chain
	for _, p := range []types.Property{types.PropertyBrightness, types.PropertyContrast} {
		if v, ok := a[p]; ok && v != 0 {
			chain = append(chain, Filter{Name: string(p), Percent: percentFor(v)})
		}
	}
	return chain
}

// FromFilters builds the chain for editor slider values in display order
func FromFilters(values map[types.FilterName]int) Chain {
	var chain Chain
	for _, name := range types.FilterNames {
		if v, ok := values[name]; ok && v != 0 {
			chain = append(chain, Filter{Name: string(name), Percent: percentFor(v)})
		}
	}
	return chain
}

// Apply renders the chain onto a copy of img. The source is never modified.
func (c Chain) Apply(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for _, f := range c {
		out = f.apply(out)
	}
	return out
}

func (f Filter) apply(img *image.NRGBA) *image.NRGBA {
	p := f.Percent / 100
	switch f.Name {
	case Brightness:
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp(float64(c.R) * p),
				G: clamp(float64(c.G) * p),
				B: clamp(float64(c.B) * p),
				A: c.A,
			}
		})
	case Contrast:
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp((float64(c.R)-127.5)*p + 127.5),
				G: clamp((float64(c.G)-127.5)*p + 127.5),
				B: clamp((float64(c.B)-127.5)*p + 127.5),
				A: c.A,
			}
		})
	case Saturate:
		m := saturateMatrix(p)
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			r, g, b := float64(c.R), float64(c.G), float64(c.B)
			return color.NRGBA{
				R: clamp(m[0]*r + m[1]*g + m[2]*b),
				G: clamp(m[3]*r + m[4]*g + m[5]*b),
				B: clamp(m[6]*r + m[7]*g + m[8]*b),
				A: c.A,
			}
		})
	}
	return img
}

// saturateMatrix is the Filter Effects saturate() color matrix
func saturateMatrix(s float64) [9]float64 {
	return [9]float64{
		0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s,
	}
}

func clamp(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func formatPercent(p float64) string {
	if p == math.Trunc(p) {
		return fmt.Sprintf("%d", int64(p))
	}
	return fmt.Sprintf("%g", p)
}
