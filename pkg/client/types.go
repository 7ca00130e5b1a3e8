package client

import (
	"errors"
	"fmt"
	"strings"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image detail hints
const (
	DetailLow  = "low"
	DetailHigh = "high"
	DetailAuto = "auto"
)

// ChatCompletionRequest is the body of POST /chat/completions
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// ChatMessage carries either a string or a []ContentPart as Content
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart is one element of a multi-part message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image, usually as a base64 data URL
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// TextMessage builds a text-only message
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: text}
}

// ImageMessage builds a user message with an image followed by a text instruction
func ImageMessage(dataURL, detail, text string) ChatMessage {
	parts := []ContentPart{
		{Type: "image_url", ImageURL: &ImageURL{URL: dataURL, Detail: detail}},
		{Type: "text", Text: text},
	}
	return ChatMessage{Role: RoleUser, Content: parts}
}

// Text returns the textual content of a message, joining text parts
func (m ChatMessage) Text() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []ContentPart:
		var texts []string
		for _, p := range c {
			if p.Type == "text" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

// ChatCompletionResponse represents the response from the chat completions API
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion alternative
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a choice
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Content returns the first choice's text, or "" when there is none
func (r *ChatCompletionResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

var (
	// ErrMissingCredentials is returned before any request when no API key is configured
	ErrMissingCredentials = errors.New("API key is not configured")

	// ErrUnauthorized is wrapped by APIError for 401/403 responses
	ErrUnauthorized = errors.New("API key was rejected")
)

// APIError is a non-2xx response from the remote service
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap maps authentication failures to ErrUnauthorized
func (e *APIError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	return nil
}
