package types

import (
	"time"
)

// Property is an adjustment the recommendation model may suggest
type Property string

// Recommended adjustment properties
const (
	PropertyBrightness Property = "brightness"
	PropertyContrast   Property = "contrast"
	PropertyHighlights Property = "highlights"
	PropertyShadows    Property = "shadows"
)

// KnownProperties lists the accepted properties in canonical order
var KnownProperties = []Property{
	PropertyBrightness,
	PropertyContrast,
	PropertyHighlights,
	PropertyShadows,
}

// IsKnownProperty reports whether name is one of KnownProperties
func IsKnownProperty(name string) bool {
	for _, p := range KnownProperties {
		if string(p) == name {
			return true
		}
	}
	return false
}

// Adjustments is a sparse mapping of property to integer delta.
// Absent keys mean "no change".
type Adjustments map[Property]int

// Ordered returns the present properties in canonical order
func (a Adjustments) Ordered() []Property {
	props := make([]Property, 0, len(a))
	for _, p := range KnownProperties {
		if _, ok := a[p]; ok {
			props = append(props, p)
		}
	}
	return props
}

// ToMap converts adjustments into a plain map for JSON/YAML output
func (a Adjustments) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for p, v := range a {
		out[string(p)] = v
	}
	return out
}

// FilterName is an editor slider
type FilterName string

// Editor filters
const (
	FilterBrightness FilterName = "brightness"
	FilterContrast   FilterName = "contrast"
	FilterSaturate   FilterName = "saturate"
)

// FilterNames lists editor filters in display order
var FilterNames = []FilterName{
	FilterBrightness,
	FilterContrast,
	FilterSaturate,
}

// Slider range for editor filters
const (
	FilterMin = -100
	FilterMax = 100
)

// Operations recorded in stored metadata
const (
	OperationApplyFilters = "apply_filters"
	OperationAutoAdjust   = "auto_adjust"
)

// ImageMetadata represents the metadata stored for each saved image
type ImageMetadata struct {
	Version    string                 `yaml:"version" json:"version"`
	ID         string                 `yaml:"id" json:"id"`
	Operation  string                 `yaml:"operation" json:"operation"`
	Timestamp  time.Time              `yaml:"timestamp" json:"timestamp"`
	SourcePath string                 `yaml:"source_path,omitempty" json:"source_path,omitempty"`
	Model      string                 `yaml:"model,omitempty" json:"model,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters" json:"parameters"`
	Filters    string                 `yaml:"filters,omitempty" json:"filters,omitempty"`
	Reasoning  string                 `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
	Result     *OperationResult       `yaml:"result,omitempty" json:"result,omitempty"`
	Error      *string                `yaml:"error,omitempty" json:"error,omitempty"`
}

// OperationResult contains the result of an operation
type OperationResult struct {
	Filename       string  `yaml:"filename" json:"filename"`
	ProcessingTime float64 `yaml:"processing_time" json:"processing_time"`
	Width          int     `yaml:"width,omitempty" json:"width,omitempty"`
	Height         int     `yaml:"height,omitempty" json:"height,omitempty"`
	FileSize       int64   `yaml:"file_size,omitempty" json:"file_size,omitempty"`
}

// ListImagesResponse represents the response from list_images
type ListImagesResponse struct {
	Images []ImageInfo `json:"images"`
	Total  int         `json:"total"`
}

// ImageInfo represents information about a stored image
type ImageInfo struct {
	ID        string                 `json:"id"`
	Operation string                 `json:"operation"`
	Timestamp time.Time              `json:"timestamp"`
	FilePath  string                 `json:"file_path"`
	Filters   string                 `json:"filters,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// GetImageResponse represents the response from get_image
type GetImageResponse struct {
	ID       string         `json:"id"`
	FilePath string         `json:"file_path"`
	Metadata *ImageMetadata `json:"metadata"`
}
