package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomcpgo/mcp/pkg/protocol"
	"github.com/gomcpgo/photo_adjust_ai/pkg/editor"
	"github.com/gomcpgo/photo_adjust_ai/pkg/histogram"
	"github.com/gomcpgo/photo_adjust_ai/pkg/responses"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	"go.uber.org/zap"
)

var errMissingImage = errors.New("file_path or data_url parameter is required")

// importImage loads the image named by file_path, or decodes data_url
func (h *PhotoAdjustHandler) importImage(args map[string]interface{}) (*editor.Editor, error) {
	if filePath, ok := stringArg(args, "file_path"); ok && filePath != "" {
		return editor.Import(filePath, h.cfg.MaxImageBytes())
	}
	if dataURL, ok := stringArg(args, "data_url"); ok && dataURL != "" {
		filename, _ := stringArg(args, "filename")
		return editor.ImportDataURL(dataURL, filename, h.cfg.MaxImageBytes())
	}
	return nil, errMissingImage
}

// handleApplyFilters handles the apply_filters tool
func (h *PhotoAdjustHandler) handleApplyFilters(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = types.OperationApplyFilters
	start := time.Now()

	// Validate every slider before doing any image work
	values := map[types.FilterName]int{}
	for _, name := range types.FilterNames {
		v, present, err := intArg(args, string(name))
		if err != nil {
			return h.errorResponse(op, responses.ErrorInvalidParameters, err.Error(), nil)
		}
		if present {
			values[name] = v
		}
	}

	ed, err := h.importImage(args)
	if err != nil {
		return h.errorResponse(op, errorType(err), err.Error(), nil)
	}

	params := map[string]interface{}{}
	for _, name := range types.FilterNames {
		if v, ok := values[name]; ok {
			clamped, _ := ed.SetFilter(name, v)
			params[string(name)] = clamped
		}
	}
	chain := ed.Chain()

	id, err := h.storage.GenerateID()
	if err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}

	outputName := ed.ExportFilename()
	if name, ok := stringArg(args, "output_filename"); ok && name != "" {
		outputName = name
	}
	result, err := h.storage.SaveImage(id, ed.Render(), outputName, h.cfg.JPEGQuality)
	if err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}
	result.ProcessingTime = time.Since(start).Seconds()

	sourcePath, _ := stringArg(args, "file_path")
	metadata := &types.ImageMetadata{
		Operation:  op,
		SourcePath: sourcePath,
		Parameters: params,
		Filters:    chain.String(),
		Result:     result,
	}
	if err := h.storage.SaveMetadata(id, metadata); err != nil {
		h.logger.Warn("Failed to save metadata", zap.String("id", id), zap.Error(err))
	}

	outputPath := h.storage.GetImagePath(id, result.Filename)
	h.logger.Info("Filters applied", zap.String("id", id), zap.String("filters", chain.String()))

	return h.successResponse(responses.BuildSuccessResponse(
		op,
		id,
		map[string]string{"output": outputPath},
		params,
		map[string]interface{}{
			"filters":         chain.String(),
			"processing_time": result.ProcessingTime,
			"width":           result.Width,
			"height":          result.Height,
			"file_size":       result.FileSize,
		},
	))
}

// handleComputeHistogram handles the compute_histogram tool
func (h *PhotoAdjustHandler) handleComputeHistogram(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "compute_histogram"

	buckets, present, err := intArg(args, "buckets")
	if err != nil {
		return h.errorResponse(op, responses.ErrorInvalidParameters, err.Error(), nil)
	}
	if !present {
		buckets = histogram.CompressedBuckets
	}
	if buckets <= 0 || buckets > histogram.Buckets || histogram.Buckets%buckets != 0 {
		return h.errorResponse(op, responses.ErrorInvalidParameters,
			fmt.Sprintf("buckets must divide %d", histogram.Buckets),
			map[string]interface{}{"buckets": buckets})
	}

	ed, err := h.importImage(args)
	if err != nil {
		return h.errorResponse(op, errorType(err), err.Error(), nil)
	}

	full, err := histogram.Sample(ed.Source())
	if err != nil {
		return h.errorResponse(op, errorType(err), err.Error(), nil)
	}

	values := full
	if buckets != histogram.Buckets {
		values = histogram.Compress(full, buckets)
	}

	return h.successResponse(responses.BuildSimpleSuccessResponse(
		op,
		fmt.Sprintf("Luminance histogram with %d buckets", buckets),
		map[string]interface{}{
			"buckets":     buckets,
			"sample_size": histogram.SampleSize,
			"values":      []float64(values),
			"formatted":   histogram.Format(values),
		},
	))
}
