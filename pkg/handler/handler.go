package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/gomcpgo/mcp/pkg/protocol"
	"github.com/gomcpgo/photo_adjust_ai/pkg/analysis"
	"github.com/gomcpgo/photo_adjust_ai/pkg/client"
	"github.com/gomcpgo/photo_adjust_ai/pkg/config"
	"github.com/gomcpgo/photo_adjust_ai/pkg/histogram"
	"github.com/gomcpgo/photo_adjust_ai/pkg/responses"
	"github.com/gomcpgo/photo_adjust_ai/pkg/session"
	"github.com/gomcpgo/photo_adjust_ai/pkg/settings"
	"github.com/gomcpgo/photo_adjust_ai/pkg/storage"
	"go.uber.org/zap"
)

// PhotoAdjustHandler handles MCP requests for photo adjustment
type PhotoAdjustHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	settings *settings.Store
	client   client.Client
	sessions *session.Manager
	logger   *zap.Logger
}

// NewPhotoAdjustHandler creates a handler backed by the OpenAI-compatible client.
// Credentials are read from the settings file on each call, falling back to cfg.
func NewPhotoAdjustHandler(cfg *config.Config, logger *zap.Logger) (*PhotoAdjustHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := settings.NewStoreInDir(cfg.ImagesRoot, settings.Settings{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	c := client.NewOpenAIClient(store, logger.Named("client"))
	return newHandler(cfg, c, store, logger), nil
}

func newHandler(cfg *config.Config, c client.Client, store *settings.Store, logger *zap.Logger) *PhotoAdjustHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	requestor := analysis.NewRequestor(c, analysis.Options{
		VisionModel:    cfg.VisionModel,
		RecommendModel: cfg.RecommendModel,
		MaxTokens:      cfg.MaxTokens,
		JPEGQuality:    cfg.JPEGQuality,
	}, logger.Named("analysis"))

	sessions := session.NewManager(
		requestor,
		session.Options{Timeout: cfg.Timeouts.AnalysisTimeout},
		cfg.Timeouts.MaxSessionIdle,
		logger.Named("session"),
	)

	return &PhotoAdjustHandler{
		cfg:      cfg,
		storage:  storage.NewStorage(cfg.ImagesRoot),
		settings: store,
		client:   c,
		sessions: sessions,
		logger:   logger,
	}
}

// Close stops the session manager and closes every open dialog
func (h *PhotoAdjustHandler) Close() {
	h.sessions.Stop()
}

// CallTool handles execution of photo adjustment tools
func (h *PhotoAdjustHandler) CallTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResponse, error) {
	h.logger.Debug("MCP CallTool received", zap.String("tool", req.Name))

	switch req.Name {
	// Manual editing
	case "apply_filters":
		return h.handleApplyFilters(ctx, req.Arguments)
	case "compute_histogram":
		return h.handleComputeHistogram(ctx, req.Arguments)

	// Auto-adjust dialog
	case "auto_adjust":
		return h.handleAutoAdjust(ctx, req.Arguments)
	case "continue_adjustment":
		return h.handleContinueAdjustment(ctx, req.Arguments)
	case "compare_original":
		return h.handleCompareOriginal(ctx, req.Arguments)
	case "retry_adjustment":
		return h.handleRetryAdjustment(ctx, req.Arguments)
	case "save_adjusted":
		return h.handleSaveAdjusted(ctx, req.Arguments)
	case "close_adjustment":
		return h.handleCloseAdjustment(ctx, req.Arguments)

	// Settings
	case "get_settings":
		return h.handleGetSettings(ctx, req.Arguments)
	case "update_settings":
		return h.handleUpdateSettings(ctx, req.Arguments)

	// Stored images
	case "list_images":
		return h.handleListImages(ctx, req.Arguments)
	case "get_image":
		return h.handleGetImage(ctx, req.Arguments)

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

// errorResponse builds an error response
func (h *PhotoAdjustHandler) errorResponse(operation, code, message string, details map[string]interface{}) (*protocol.CallToolResponse, error) {
	content := responses.BuildErrorResponse(operation, code, message, details)

	return &protocol.CallToolResponse{
		Content: []protocol.ToolContent{
			{
				Type: "text",
				Text: content,
			},
		},
	}, nil
}

// successResponse builds a success response
func (h *PhotoAdjustHandler) successResponse(content string) (*protocol.CallToolResponse, error) {
	return &protocol.CallToolResponse{
		Content: []protocol.ToolContent{
			{
				Type: "text",
				Text: content,
			},
		},
	}, nil
}

// errorType maps an error onto an error envelope type
func errorType(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, errMissingImage):
		return responses.ErrorInvalidParameters
	case errors.Is(err, client.ErrMissingCredentials):
		return responses.ErrorMissingCredentials
	case errors.Is(err, client.ErrUnauthorized):
		return responses.ErrorUnauthorized
	case errors.As(err, &apiErr):
		return responses.ErrorAPIError
	case errors.Is(err, context.DeadlineExceeded):
		return responses.ErrorTimeout
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrManagerStopped):
		return responses.ErrorInvalidState
	case errors.Is(err, histogram.ErrEmptySurface):
		return responses.ErrorInvalidFormat
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return responses.ErrorFileNotFound
	case strings.Contains(err.Error(), "too large"):
		return responses.ErrorFileTooLarge
	case strings.Contains(err.Error(), "failed to decode"):
		return responses.ErrorInvalidFormat
	default:
		return responses.ErrorAnalysisFailed
	}
}

func stringArg(args map[string]interface{}, name string) (string, bool) {
	v, ok := args[name].(string)
	return v, ok
}

// intArg reads an integer argument. JSON numbers arrive as float64; values
// beyond the int32 range saturate so callers can clamp them.
func intArg(args map[string]interface{}, name string) (int, bool, error) {
	raw, present := args[name]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%s must be an integer", name)
		}
		switch {
		case v > math.MaxInt32:
			return math.MaxInt32, true, nil
		case v < math.MinInt32:
			return math.MinInt32, true, nil
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	default:
		return 0, true, fmt.Errorf("%s must be a number", name)
	}
}
