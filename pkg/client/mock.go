package client

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a mock implementation of the Client interface for testing
type MockClient struct {
	// Control behavior
	ResponseDelay time.Duration // How long each call takes
	ShouldFail    bool          // Whether calls should fail
	FailOnCall    int           // Fail only the Nth call (1-based); 0 fails every call when ShouldFail
	FailMessage   string        // Custom failure message
	Block         bool          // Block until the context is done

	// Track calls for assertions
	Calls []ChatCall

	responses []string
	mu        sync.Mutex
}

// ChatCall records a call to ChatCompletion
type ChatCall struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
	Timestamp time.Time
}

// NewMockClient creates a mock that answers with the given contents in order.
// When the queue runs out the last response repeats.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{
		responses: responses,
		Calls:     []ChatCall{},
	}
}

// SetResponseDelay sets how long each call takes
func (m *MockClient) SetResponseDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseDelay = delay
}

// CallCount returns the number of calls made so far
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Call returns a copy of the nth recorded call
func (m *MockClient) Call(n int) ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[n]
}

// ChatCompletion returns the next queued response
func (m *MockClient) ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ChatCall{
		Model:     req.Model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
		Timestamp: time.Now(),
	})
	callNum := len(m.Calls)
	delay := m.ResponseDelay
	block := m.Block
	fail := m.ShouldFail && (m.FailOnCall == 0 || m.FailOnCall == callNum)
	failMessage := m.FailMessage

	content := ""
	if len(m.responses) > 0 {
		idx := callNum - 1
		if idx >= len(m.responses) {
			idx = len(m.responses) - 1
		}
		content = m.responses[idx]
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		if failMessage != "" {
			return nil, fmt.Errorf("%s", failMessage)
		}
		return nil, fmt.Errorf("mock client configured to fail")
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chat-%d", callNum),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{{
			Index:        0,
			Message:      ResponseMessage{Role: RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
	}, nil
}

var _ Client = (*MockClient)(nil)
