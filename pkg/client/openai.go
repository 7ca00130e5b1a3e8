package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultBaseURL is used when the credential source does not name an endpoint
const DefaultBaseURL = "https://api.openai.com/v1"

// maxLoggedBody keeps data URLs out of the debug log
const maxLoggedBody = 1000

// OpenAIClient handles communication with an OpenAI-compatible chat completions API
type OpenAIClient struct {
	credentials CredentialSource
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewOpenAIClient creates a new client. No timeout is set on the HTTP client;
// callers bound requests through the context.
func NewOpenAIClient(credentials CredentialSource, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		credentials: credentials,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

// ChatCompletion sends a chat completion request
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	creds, err := c.credentials.Credentials()
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if creds.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + "/chat/completions"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if len(body) > maxLoggedBody {
		c.logger.Debug("Creating chat completion",
			zap.String("url", url),
			zap.String("model", req.Model),
			zap.Int("body_bytes", len(body)))
	} else {
		c.logger.Debug("Creating chat completion",
			zap.String("url", url),
			zap.String("model", req.Model),
			zap.ByteString("body", body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+creds.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Chat completion response",
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &completion, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Type = parsed.Error.Type
		return apiErr
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxLoggedBody {
		msg = msg[:maxLoggedBody]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	apiErr.Message = msg
	return apiErr
}
