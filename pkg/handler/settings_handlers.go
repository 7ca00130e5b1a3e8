package handler

import (
	"context"

	"github.com/gomcpgo/mcp/pkg/protocol"
	"github.com/gomcpgo/photo_adjust_ai/pkg/responses"
	"github.com/gomcpgo/photo_adjust_ai/pkg/settings"
	"go.uber.org/zap"
)

// handleGetSettings handles the get_settings tool
func (h *PhotoAdjustHandler) handleGetSettings(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "get_settings"

	data, err := h.settingsView()
	if err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}
	return h.successResponse(responses.BuildSimpleSuccessResponse(op, "Current settings", data))
}

// settingsView describes the effective settings and where each value comes from
func (h *PhotoAdjustHandler) settingsView() (map[string]interface{}, error) {
	stored, err := h.settings.Load()
	if err != nil {
		return nil, err
	}
	effective, err := h.settings.Effective()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"api_key":         settings.MaskKey(effective.APIKey),
		"api_key_set":     effective.APIKey != "",
		"api_key_source":  source(stored.APIKey, effective.APIKey),
		"base_url":        effective.BaseURL,
		"base_url_source": source(stored.BaseURL, effective.BaseURL),
		"settings_file":   h.settings.Path(),
	}, nil
}

// source reports where an effective value came from
func source(stored, effective string) string {
	switch {
	case stored != "":
		return "settings"
	case effective != "":
		return "environment"
	default:
		return "unset"
	}
}

// handleUpdateSettings handles the update_settings tool. An empty string clears a value.
func (h *PhotoAdjustHandler) handleUpdateSettings(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "update_settings"

	var apiKey, baseURL *string
	if v, ok := stringArg(args, "api_key"); ok {
		apiKey = &v
	}
	if v, ok := stringArg(args, "base_url"); ok {
		baseURL = &v
	}
	if apiKey == nil && baseURL == nil {
		return h.errorResponse(op, responses.ErrorInvalidParameters, "api_key or base_url parameter is required", nil)
	}

	if err := h.settings.Update(apiKey, baseURL); err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}
	h.logger.Info("Settings updated",
		zap.Bool("api_key_changed", apiKey != nil),
		zap.Bool("base_url_changed", baseURL != nil))

	data, err := h.settingsView()
	if err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}

	// A cleared value falls back to the environment default
	var notes []string
	if apiKey != nil && *apiKey == "" && data["api_key_source"] == "environment" {
		notes = append(notes, "api_key cleared from settings; the OPENAI_API_KEY environment value is now in effect")
	}
	if baseURL != nil && *baseURL == "" && data["base_url_source"] == "environment" {
		notes = append(notes, "base_url cleared from settings; the environment or default base URL is now in effect")
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	return h.successResponse(responses.BuildSimpleSuccessResponse(op, "Settings updated", data))
}
