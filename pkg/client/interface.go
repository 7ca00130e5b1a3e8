package client

import (
	"context"
)

// Client defines the interface for interacting with a chat completions API
type Client interface {
	// ChatCompletion sends one request and returns the full (non-streamed) completion
	ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Credentials identify the caller to the remote model service
type Credentials struct {
	APIKey  string
	BaseURL string
}

// CredentialSource supplies credentials at call time, so edits to the
// settings take effect without a restart
type CredentialSource interface {
	Credentials() (Credentials, error)
}

// StaticCredentials is a CredentialSource with fixed values
type StaticCredentials Credentials

// Credentials returns the fixed credentials
func (s StaticCredentials) Credentials() (Credentials, error) {
	return Credentials(s), nil
}

// Ensure OpenAIClient implements the Client interface
var _ Client = (*OpenAIClient)(nil)
