// Package editor holds the manual slider editing mode: an imported image, a
// filter state, rendering and export.
package editor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/photo_adjust_ai/pkg/adjust"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	_ "golang.org/x/image/webp" // register the WebP decoder for imports
)

// DefaultExportName is used when the imported image has no filename
const DefaultExportName = "image.jpeg"

// EditedSuffix is inserted before the extension of exported files
const EditedSuffix = "-edited"

// FilterState maps each slider to its value. Absent means 0.
type FilterState map[types.FilterName]int

// Get returns the value for name, defaulting to 0
func (s FilterState) Get(name types.FilterName) int {
	return s[name]
}

// ValidFilter reports whether name is an editor slider
func ValidFilter(name string) bool {
	for _, f := range types.FilterNames {
		if string(f) == name {
			return true
		}
	}
	return false
}

// ClampFilter limits v to the slider range
func ClampFilter(v int) int {
	if v < types.FilterMin {
		return types.FilterMin
	}
	if v > types.FilterMax {
		return types.FilterMax
	}
	return v
}

// Editor is one editing session over an imported image
type Editor struct {
	source   image.Image
	filename string
	filters  FilterState
	active   types.FilterName
	mu       sync.RWMutex
}

// New creates an editor for an already decoded image
func New(img image.Image, filename string) *Editor {
	return &Editor{
		source:   img,
		filename: filename,
		filters:  FilterState{},
		active:   types.FilterBrightness,
	}
}

// Source returns the unedited image
func (e *Editor) Source() image.Image {
	return e.source
}

// Filename returns the imported file's base name
func (e *Editor) Filename() string {
	return e.filename
}

// SetActive selects which slider subsequent SetValue calls change
func (e *Editor) SetActive(name types.FilterName) error {
	if !ValidFilter(string(name)) {
		return fmt.Errorf("unknown filter: %s", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = name
	return nil
}

// Active returns the selected slider
func (e *Editor) Active() types.FilterName {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// SetValue sets the active slider, clamped to [-100, 100]
func (e *Editor) SetValue(v int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	v = ClampFilter(v)
	e.filters[e.active] = v
	return v
}

// SetFilter sets a named slider, clamped to [-100, 100]
func (e *Editor) SetFilter(name types.FilterName, v int) (int, error) {
	if !ValidFilter(string(name)) {
		return 0, fmt.Errorf("unknown filter: %s", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v = ClampFilter(v)
	e.filters[name] = v
	return v, nil
}

// Filters returns a copy of the filter state
func (e *Editor) Filters() FilterState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(FilterState, len(e.filters))
	for k, v := range e.filters {
		out[k] = v
	}
	return out
}

// Chain returns the filter chain for the current state
func (e *Editor) Chain() adjust.Chain {
	return adjust.FromFilters(e.Filters())
}

// Render draws the source with the current filters applied
func (e *Editor) Render() *image.NRGBA {
	return e.Chain().Apply(e.source)
}

// Export writes the rendered image as JPEG
func (e *Editor) Export(w io.Writer, quality int) error {
	if err := imaging.Encode(w, e.Render(), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// ExportFilename returns the name the export is saved under
func (e *Editor) ExportFilename() string {
	return ExportFilename(e.filename)
}

// ExportFilename inserts EditedSuffix before the extension of name, or returns
// DefaultExportName when name is empty
func ExportFilename(name string) string {
	if name == "" {
		return DefaultExportName
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + EditedSuffix + ext
}

// Import decodes an image file, rejecting files larger than maxBytes (0 means no limit)
func Import(path string, maxBytes int64) (*Editor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("image file too large (%d bytes, max %d)", info.Size(), maxBytes)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return New(img, filepath.Base(path)), nil
}

// ImportDataURL decodes a base64 data URL, as produced by a camera capture
func ImportDataURL(dataURL string, filename string, maxBytes int64) (*Editor, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, fmt.Errorf("invalid data URL")
	}
	parts := strings.SplitN(dataURL, ",", 2)
	if len(parts) != 2 || !strings.HasSuffix(parts[0], ";base64") {
		return nil, fmt.Errorf("invalid base64 data")
	}

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image data too large (%d bytes, max %d)", len(data), maxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return New(img, filename), nil
}
