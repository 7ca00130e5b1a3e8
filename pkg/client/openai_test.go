package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "sk-test"

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestChatCompletion_Success(t *testing.T) {
	var gotBody map[string]interface{}
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chat-1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"A gray square."},"finish_reason":"stop"}]}`))
	})

	c := NewOpenAIClient(StaticCredentials{APIKey: testAPIKey, BaseURL: server.URL + "/v1/"}, nil)
	resp, err := c.ChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []ChatMessage{ImageMessage("data:image/jpeg;base64,AAAA", DetailLow, "Describe.")},
	})
	require.NoError(t, err)
	assert.Equal(t, "A gray square.", resp.Content())

	messages := gotBody["messages"].([]interface{})
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, parts, 2)
	imagePart := parts[0].(map[string]interface{})
	assert.Equal(t, "image_url", imagePart["type"])
	imageURL := imagePart["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/jpeg;base64,AAAA", imageURL["url"])
	assert.Equal(t, "low", imageURL["detail"])
}

func TestChatCompletion_MissingCredentials(t *testing.T) {
	called := false
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	c := NewOpenAIClient(StaticCredentials{BaseURL: server.URL}, nil)
	_, err := c.ChatCompletion(context.Background(), &ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.False(t, called, "no request should be sent without an API key")
}

func TestChatCompletion_APIErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantMessage  string
		unauthorized bool
	}{
		{
			name:         "unauthorized",
			status:       http.StatusUnauthorized,
			body:         `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			wantMessage:  "Incorrect API key provided",
			unauthorized: true,
		},
		{
			name:        "server error with plain body",
			status:      http.StatusBadGateway,
			body:        "upstream unavailable",
			wantMessage: "upstream unavailable",
		},
		{
			name:        "empty body",
			status:      http.StatusTooManyRequests,
			body:        "",
			wantMessage: "Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			c := NewOpenAIClient(StaticCredentials{APIKey: testAPIKey, BaseURL: server.URL}, nil)
			_, err := c.ChatCompletion(context.Background(), &ChatCompletionRequest{Model: "m"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.unauthorized, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestChatCompletion_MalformedResponse(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	c := NewOpenAIClient(StaticCredentials{APIKey: testAPIKey, BaseURL: server.URL}, nil)
	_, err := c.ChatCompletion(context.Background(), &ChatCompletionRequest{Model: "m"})
	assert.ErrorContains(t, err, "failed to unmarshal response")
}

func TestChatCompletion_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	c := NewOpenAIClient(StaticCredentials{APIKey: testAPIKey, BaseURL: server.URL}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.ChatCompletion(ctx, &ChatCompletionRequest{Model: "m"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChatCompletionResponse_ContentEmpty(t *testing.T) {
	var nilResp *ChatCompletionResponse
	assert.Equal(t, "", nilResp.Content())
	assert.Equal(t, "", (&ChatCompletionResponse{}).Content())
}

func TestChatMessage_Text(t *testing.T) {
	assert.Equal(t, "hello", TextMessage(RoleUser, "hello").Text())
	assert.Equal(t, "Describe.", ImageMessage("data:,", DetailLow, "Describe.").Text())
}

func TestMockClient_Sequence(t *testing.T) {
	m := NewMockClient("first", "second")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		resp, err := m.ChatCompletion(ctx, &ChatCompletionRequest{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content())
	}
	assert.Equal(t, 3, m.CallCount())

	m.ShouldFail = true
	m.FailOnCall = 5
	_, err := m.ChatCompletion(ctx, &ChatCompletionRequest{Model: "m"})
	assert.NoError(t, err)
	_, err = m.ChatCompletion(ctx, &ChatCompletionRequest{Model: "m"})
	assert.Error(t, err)
}
