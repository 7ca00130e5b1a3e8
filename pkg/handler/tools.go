package handler

import (
	"context"
	"encoding/json"

	"github.com/gomcpgo/mcp/pkg/protocol"
)

// ListTools provides a list of all available tools
func (h *PhotoAdjustHandler) ListTools(ctx context.Context) (*protocol.ListToolsResponse, error) {
	tools := []protocol.Tool{
		{
			Name:        "apply_filters",
			Description: `Apply brightness, contrast and saturation sliders to an image and save the result. Each slider ranges from -100 to 100 (0 = unchanged) and maps to a percentage filter of value + 100, so brightness 20 renders as brightness(120%). The output is saved as "<name>-edited.<ext>" unless output_filename is given.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"file_path": {
						"type": "string",
						"description": "Path to a local JPEG, PNG, GIF or WebP image"
					},
					"data_url": {
						"type": "string",
						"description": "Base64 image data URL, e.g. from a camera capture. Used when file_path is not given."
					},
					"filename": {
						"type": "string",
						"description": "Original filename for a data_url import; drives the output name"
					},
					"brightness": {
						"type": "integer",
						"description": "Brightness slider, -100 to 100",
						"minimum": -100,
						"maximum": 100,
						"default": 0
					},
					"contrast": {
						"type": "integer",
						"description": "Contrast slider, -100 to 100",
						"minimum": -100,
						"maximum": 100,
						"default": 0
					},
					"saturate": {
						"type": "integer",
						"description": "Saturation slider, -100 to 100 (-100 = grayscale)",
						"minimum": -100,
						"maximum": 100,
						"default": 0
					},
					"output_filename": {
						"type": "string",
						"description": "Custom filename for the saved image"
					}
				}
			}`),
		},
		{
			Name:        "compute_histogram",
			Description: `Compute the normalized luminance histogram of an image. The image is downsampled to 144x144, converted to grayscale and counted into 256 buckets, then optionally merged into fewer buckets. The largest bucket is always 1.0.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"file_path": {
						"type": "string",
						"description": "Path to a local image"
					},
					"data_url": {
						"type": "string",
						"description": "Base64 image data URL, used when file_path is not given"
					},
					"buckets": {
						"type": "integer",
						"description": "Number of buckets; must divide 256",
						"default": 32
					}
				}
			}`),
		},
		{
			Name:        "auto_adjust",
			Description: `Open an auto-adjust session for an image. A vision model first describes the image, then a second call recommends brightness, contrast, highlights and shadows changes from the description and the luminance histogram. Brightness and contrast are applied; highlights and shadows are reported only. If the analysis takes longer than the initial wait, a processing status with a session_id is returned; use continue_adjustment to check on it.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"file_path": {
						"type": "string",
						"description": "Path to a local image"
					},
					"data_url": {
						"type": "string",
						"description": "Base64 image data URL, used when file_path is not given"
					},
					"filename": {
						"type": "string",
						"description": "Original filename for a data_url import"
					}
				}
			}`),
		},
		{
			Name:        "continue_adjustment",
			Description: `Wait for a running auto-adjust analysis and return its state: the reasoning text, the parsed adjustments and the applied filters once ready, or the error if it failed.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"session_id": {
						"type": "string",
						"description": "Session ID returned by auto_adjust"
					},
					"wait_time": {
						"type": "integer",
						"description": "Seconds to wait for completion",
						"minimum": 1,
						"maximum": 30
					}
				},
				"required": ["session_id"]
			}`),
		},
		{
			Name:        "compare_original",
			Description: `Hold or release the compare control of a ready session. pressed=true shows the original image, pressed=false returns to the adjusted one. Never calls the remote model again.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"session_id": {
						"type": "string",
						"description": "Session ID returned by auto_adjust"
					},
					"pressed": {
						"type": "boolean",
						"description": "true to show the original, false to show the adjusted image",
						"default": true
					}
				},
				"required": ["session_id"]
			}`),
		},
		{
			Name:        "retry_adjustment",
			Description: `Run the analysis of a failed session again.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"session_id": {
						"type": "string",
						"description": "Session ID of a failed analysis"
					}
				},
				"required": ["session_id"]
			}`),
		},
		{
			Name:        "save_adjusted",
			Description: `Save the adjusted image of a ready session, along with its reasoning and filters.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"session_id": {
						"type": "string",
						"description": "Session ID returned by auto_adjust"
					},
					"filename": {
						"type": "string",
						"description": "Custom filename; defaults to \"<name>-edited.<ext>\""
					}
				},
				"required": ["session_id"]
			}`),
		},
		{
			Name:        "close_adjustment",
			Description: `Close an auto-adjust session. Any analysis still in flight is cancelled.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"session_id": {
						"type": "string",
						"description": "Session ID to close"
					}
				},
				"required": ["session_id"]
			}`),
		},
		{
			Name:        "get_settings",
			Description: `Show the API key (masked) and base URL used for analysis, and where each value comes from.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
		{
			Name:        "update_settings",
			Description: `Set the API key or base URL used for analysis. An empty string clears the stored value; the OPENAI_API_KEY / OPENAI_BASE_URL environment values (or the default base URL) then apply again, and the response reports each value's source. Takes effect on the next analysis.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"api_key": {
						"type": "string",
						"description": "API key for the OpenAI-compatible endpoint"
					},
					"base_url": {
						"type": "string",
						"description": "Alternate base URL, e.g. http://localhost:11434/v1"
					}
				}
			}`),
		},
		{
			Name:        "list_images",
			Description: `List saved images, newest first.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"operation": {
						"type": "string",
						"description": "Only list images from this operation",
						"enum": ["apply_filters", "auto_adjust"]
					},
					"limit": {
						"type": "integer",
						"description": "Maximum number of images to return"
					}
				}
			}`),
		},
		{
			Name:        "get_image",
			Description: `Get a saved image's path and metadata, optionally with its data as a base64 data URL.`,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {
						"type": "string",
						"description": "Image ID from list_images or a save response"
					},
					"include_data": {
						"type": "boolean",
						"description": "Include the image as a data URL",
						"default": false
					}
				},
				"required": ["id"]
			}`),
		},
	}

	return &protocol.ListToolsResponse{
		Tools: tools,
	}, nil
}
