package responses

import (
	"encoding/json"
	"fmt"
)

// Error types used in error envelopes
const (
	ErrorFileNotFound       = "file_not_found"
	ErrorFileTooLarge       = "file_too_large"
	ErrorInvalidFormat      = "invalid_format"
	ErrorInvalidParameters  = "invalid_parameters"
	ErrorMissingCredentials = "missing_credentials"
	ErrorUnauthorized       = "unauthorized"
	ErrorAPIError           = "api_error"
	ErrorAnalysisFailed     = "analysis_failed"
	ErrorSessionNotFound    = "session_not_found"
	ErrorInvalidState       = "invalid_state"
	ErrorTimeout            = "timeout"
	ErrorStorage            = "storage_error"
)

// BuildSuccessResponse creates a standardized success response
func BuildSuccessResponse(operation string, id string, paths map[string]string, params map[string]interface{}, metrics map[string]interface{}) string {
	response := map[string]interface{}{
		"success":    true,
		"operation":  operation,
		"id":         id,
		"paths":      paths,
		"parameters": params,
		"metrics":    metrics,
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// BuildErrorResponse creates a standardized error response
func BuildErrorResponse(operation string, errorType string, message string, details map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   false,
		"operation": operation,
		"error": map[string]interface{}{
			"type":       errorType,
			"message":    message,
			"details":    details,
			"suggestion": GetSuggestion(errorType),
		},
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// BuildProcessingResponse creates a response for an analysis still in progress
func BuildProcessingResponse(operation string, sessionID string, elapsedSeconds float64) string {
	response := map[string]interface{}{
		"success":    false,
		"operation":  operation,
		"status":     "processing",
		"state":      "analyzing",
		"session_id": sessionID,
		"elapsed":    elapsedSeconds,
		"message":    fmt.Sprintf("Analysis still in progress. Use continue_adjustment with session_id='%s' to check status.", sessionID),
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// BuildSimpleSuccessResponse creates a simple success response with a message and extra fields
func BuildSimpleSuccessResponse(operation string, message string, data map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   true,
		"operation": operation,
		"message":   message,
	}

	for k, v := range data {
		response[k] = v
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// GetSuggestion provides helpful suggestions for different error types
func GetSuggestion(errorType string) string {
	suggestions := map[string]string{
		ErrorFileNotFound:       "Please check the file path and ensure the file exists",
		ErrorFileTooLarge:       "Please compress or resize the image, or raise MAX_IMAGE_SIZE_MB",
		ErrorInvalidFormat:      "Please provide an image in JPEG, PNG, GIF, or WebP format",
		ErrorInvalidParameters:  "Check the parameter values and ensure they meet the requirements",
		ErrorMissingCredentials: "Set an API key with update_settings or the OPENAI_API_KEY environment variable",
		ErrorUnauthorized:       "The API key was rejected. Update it with update_settings",
		ErrorAPIError:           "Check your API key, base URL and network connection",
		ErrorAnalysisFailed:     "Use retry_adjustment with the same session_id to run the analysis again",
		ErrorSessionNotFound:    "The session was closed or expired. Start a new one with auto_adjust",
		ErrorInvalidState:       "Check the session state with continue_adjustment before this action",
		ErrorTimeout:            "The analysis is taking longer than expected. Use continue_adjustment to check status",
		ErrorStorage:            "Check that the images folder exists and is writable",
	}

	if suggestion, ok := suggestions[errorType]; ok {
		return suggestion
	}
	return "Please check your input and try again"
}
