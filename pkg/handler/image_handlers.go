package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gomcpgo/mcp/pkg/protocol"
	"github.com/gomcpgo/photo_adjust_ai/pkg/responses"
	"github.com/gomcpgo/photo_adjust_ai/pkg/storage"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
)

// handleListImages handles the list_images tool
func (h *PhotoAdjustHandler) handleListImages(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "list_images"

	images, err := h.storage.ListImages()
	if err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}

	if operation, ok := stringArg(args, "operation"); ok && operation != "" {
		filtered := images[:0]
		for _, img := range images {
			if img.Operation == operation {
				filtered = append(filtered, img)
			}
		}
		images = filtered
	}

	limit, present, err := intArg(args, "limit")
	if err != nil {
		return h.errorResponse(op, responses.ErrorInvalidParameters, err.Error(), nil)
	}
	if present && limit > 0 && limit < len(images) {
		images = images[:limit]
	}

	data, _ := json.MarshalIndent(types.ListImagesResponse{Images: images, Total: len(images)}, "", "  ")
	return h.successResponse(string(data))
}

// handleGetImage handles the get_image tool
func (h *PhotoAdjustHandler) handleGetImage(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "get_image"

	id, ok := stringArg(args, "id")
	if !ok || id == "" {
		return h.errorResponse(op, responses.ErrorInvalidParameters, "id parameter is required", nil)
	}

	metadata, err := h.storage.LoadMetadata(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return h.errorResponse(op, responses.ErrorFileNotFound, err.Error(), map[string]interface{}{"id": id})
		}
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}

	filePath := ""
	if metadata.Result != nil {
		filePath = h.storage.GetImagePath(id, metadata.Result.Filename)
	}

	response := struct {
		types.GetImageResponse
		DataURL string `json:"data_url,omitempty"`
	}{
		GetImageResponse: types.GetImageResponse{
			ID:       id,
			FilePath: filePath,
			Metadata: metadata,
		},
	}

	if include, _ := args["include_data"].(bool); include && filePath != "" {
		dataURL, err := storage.ImageToDataURL(filePath, h.cfg.MaxImageBytes())
		if err != nil {
			return h.errorResponse(op, errorType(err), err.Error(), map[string]interface{}{"id": id})
		}
		response.DataURL = dataURL
	}

	data, _ := json.MarshalIndent(response, "", "  ")
	return h.successResponse(string(data))
}
