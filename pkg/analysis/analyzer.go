// Package analysis asks a remote vision model for automatic adjustment suggestions.
//
// Analyze makes two sequential calls: the first describes the image, the
// second recommends adjustments from that description and the compressed
// luminance histogram.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/photo_adjust_ai/pkg/client"
	"github.com/gomcpgo/photo_adjust_ai/pkg/histogram"
	"github.com/gomcpgo/photo_adjust_ai/pkg/recommend"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	"go.uber.org/zap"
)

// Pipeline stages, reported by Error
const (
	StageHistogram = "histogram"
	StageEncode    = "encode"
	StageDescribe  = "describe"
	StageRecommend = "recommend"
)

// maxUploadEdge bounds the longest side of the image sent to the vision model
const maxUploadEdge = 1024

// Options selects models and request limits
type Options struct {
	VisionModel    string
	RecommendModel string
	MaxTokens      int
	JPEGQuality    int
}

// Result is the outcome of one analysis
type Result struct {
	Description    string
	Recommendation string
	Reasoning      string
	Adjustments    types.Adjustments
	Histogram      histogram.Histogram
	Duration       time.Duration
}

// Error reports which stage of the pipeline failed
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Requestor runs the two-call analysis against a chat completions client
type Requestor struct {
	client client.Client
	opts   Options
	logger *zap.Logger
}

// NewRequestor creates a Requestor
func NewRequestor(c client.Client, opts Options, logger *zap.Logger) *Requestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = 85
	}
	return &Requestor{
		client: c,
		opts:   opts,
		logger: logger,
	}
}

// Analyze samples img, runs the description and recommendation calls in
// order and parses the answer. The context cancels whichever call is in flight.
func (r *Requestor) Analyze(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()

	full, err := histogram.Sample(img)
	if err != nil {
		return nil, &Error{Stage: StageHistogram, Err: err}
	}
	compressed := histogram.Compress(full, histogram.CompressedBuckets)

	description, err := r.Describe(ctx, img)
	if err != nil {
		return nil, err
	}

	recommendation, err := r.Recommend(ctx, description, compressed)
	if err != nil {
		return nil, err
	}

	adjustments := recommend.Parse(recommendation)
	r.logger.Debug("Analysis complete",
		zap.Int("adjustments", len(adjustments)),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		Description:    description,
		Recommendation: recommendation,
		Reasoning:      joinReasoning(description, recommendation),
		Adjustments:    adjustments,
		Histogram:      compressed,
		Duration:       time.Since(start),
	}, nil
}

// Describe sends the image with a low detail hint and returns the model's description
func (r *Requestor) Describe(ctx context.Context, img image.Image) (string, error) {
	dataURL, err := EncodeDataURL(img, r.opts.JPEGQuality)
	if err != nil {
		return "", &Error{Stage: StageEncode, Err: err}
	}

	r.logger.Debug("Requesting image description",
		zap.String("model", r.opts.VisionModel),
		zap.Int("data_url_bytes", len(dataURL)))

	resp, err := r.client.ChatCompletion(ctx, &client.ChatCompletionRequest{
		Model:     r.opts.VisionModel,
		MaxTokens: r.opts.MaxTokens,
		Messages: []client.ChatMessage{
			client.ImageMessage(dataURL, client.DetailLow, describePrompt),
		},
	})
	if err != nil {
		return "", &Error{Stage: StageDescribe, Err: err}
	}

	description := resp.Content()
	if description == "" {
		r.logger.Warn("Vision model returned no description", zap.String("model", r.opts.VisionModel))
	}
	return description, nil
}

// Recommend asks for adjustments given a description and compressed histogram
func (r *Requestor) Recommend(ctx context.Context, description string, compressed histogram.Histogram) (string, error) {
	prompt := buildRecommendPrompt(description, compressed)

	r.logger.Debug("Requesting adjustment recommendation",
		zap.String("model", r.opts.RecommendModel),
		zap.Int("prompt_bytes", len(prompt)))

	resp, err := r.client.ChatCompletion(ctx, &client.ChatCompletionRequest{
		Model:     r.opts.RecommendModel,
		MaxTokens: r.opts.MaxTokens,
		Messages: []client.ChatMessage{
			client.TextMessage(client.RoleUser, prompt),
		},
	})
	if err != nil {
		return "", &Error{Stage: StageRecommend, Err: err}
	}
	return resp.Content(), nil
}

// EncodeDataURL encodes img as a base64 JPEG data URL, downscaling large images first
func EncodeDataURL(img image.Image, quality int) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", histogram.ErrEmptySurface
	}

	b := img.Bounds()
	if b.Dx() > maxUploadEdge || b.Dy() > maxUploadEdge {
		img = imaging.Fit(img, maxUploadEdge, maxUploadEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func joinReasoning(description, recommendation string) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{description, recommendation} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
