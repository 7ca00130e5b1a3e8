package handler

import (
	"context"
	"encoding/json"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/mcp/pkg/protocol"
	"github.com/gomcpgo/photo_adjust_ai/pkg/client"
	"github.com/gomcpgo/photo_adjust_ai/pkg/config"
	"github.com/gomcpgo/photo_adjust_ai/pkg/settings"
)

// newTestHandler builds a handler over a temp root with the given client
func newTestHandler(t *testing.T, c client.Client, timeouts config.TimeoutConfig) *PhotoAdjustHandler {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		ImagesRoot:     root,
		VisionModel:    "vision",
		RecommendModel: "recommend",
		MaxImageSizeMB: 5,
		JPEGQuality:    90,
		MaxTokens:      300,
		Timeouts:       timeouts,
	}
	h := newHandler(cfg, c, settings.NewStoreInDir(root, settings.Settings{}), nil)
	t.Cleanup(h.Close)
	return h
}

// writeGray writes a 100x100 mid-gray PNG and returns its path
func writeGray(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gray.png")
	if err := imaging.Save(imaging.New(100, 100, color.NRGBA{R: 128, G: 128, B: 128, A: 255}), path); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
	return path
}

// call invokes a tool and decodes the JSON envelope
func call(t *testing.T, h *PhotoAdjustHandler, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()
	resp, err := h.CallTool(context.Background(), &protocol.CallToolRequest{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	if len(resp.Content) == 0 {
		t.Fatalf("%s: expected content in response", name)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(resp.Content[0].Text), &data); err != nil {
		t.Fatalf("%s: failed to parse response: %v", name, err)
	}
	return data
}

func errorTypeOf(data map[string]interface{}) string {
	e, _ := data["error"].(map[string]interface{})
	s, _ := e["type"].(string)
	return s
}

// TestAutoAdjust_CompleteFlow tests opening, comparing, saving and closing a session
func TestAutoAdjust_CompleteFlow(t *testing.T) {
	mockClient := client.NewMockClient("A gray square.", "[brightness] +5\n[contrast] +0")
	h := newTestHandler(t, mockClient, config.TestTimeouts())

	data := call(t, h, "auto_adjust", map[string]interface{}{"file_path": writeGray(t)})
	if data["success"] != true {
		t.Fatalf("Expected success, got: %v", data)
	}
	if data["state"] != "ready" {
		t.Errorf("Expected ready state, got %v", data["state"])
	}
	if !strings.Contains(data["reasoning"].(string), "A gray square.") {
		t.Errorf("Expected reasoning to contain the description, got %q", data["reasoning"])
	}
	if data["filters"] != "brightness(105%)" {
		t.Errorf("Expected brightness(105%%), got %v", data["filters"])
	}
	sessionID := data["session_id"].(string)

	// Hold and release the compare control
	data = call(t, h, "compare_original", map[string]interface{}{"session_id": sessionID, "pressed": true})
	if data["state"] != "comparing" || data["displayed"] != "original" {
		t.Errorf("Expected comparing/original, got %v/%v", data["state"], data["displayed"])
	}
	data = call(t, h, "compare_original", map[string]interface{}{"session_id": sessionID, "pressed": false})
	if data["state"] != "ready" || data["displayed"] != "adjusted" {
		t.Errorf("Expected ready/adjusted, got %v/%v", data["state"], data["displayed"])
	}

	if mockClient.CallCount() != 2 {
		t.Errorf("Expected exactly 2 remote calls, got %d", mockClient.CallCount())
	}
	for i := 0; i < 2; i++ {
		if got := mockClient.Call(i).MaxTokens; got != 300 {
			t.Errorf("Expected call %d to carry max_tokens 300, got %d", i+1, got)
		}
	}

	// Save the adjusted image
	data = call(t, h, "save_adjusted", map[string]interface{}{"session_id": sessionID})
	if data["success"] != true {
		t.Fatalf("Expected save success, got: %v", data)
	}
	output := data["paths"].(map[string]interface{})["output"].(string)
	if filepath.Base(output) != "gray-edited.png" {
		t.Errorf("Expected gray-edited.png, got %s", filepath.Base(output))
	}
	saved, err := imaging.Open(output)
	if err != nil {
		t.Fatalf("Failed to open saved image: %v", err)
	}
	if r := imaging.Clone(saved).NRGBAAt(10, 10).R; r != 134 {
		t.Errorf("Expected saved pixel 134, got %d", r)
	}

	// The saved image is listed with its reasoning
	list := call(t, h, "list_images", nil)
	if list["total"].(float64) != 1 {
		t.Fatalf("Expected 1 stored image, got %v", list["total"])
	}
	id := data["id"].(string)
	img := call(t, h, "get_image", map[string]interface{}{"id": id, "include_data": true})
	meta := img["metadata"].(map[string]interface{})
	if !strings.Contains(meta["reasoning"].(string), "A gray square.") {
		t.Errorf("Expected stored reasoning, got %v", meta["reasoning"])
	}
	if !strings.HasPrefix(img["data_url"].(string), "data:image/png;base64,") {
		t.Error("Expected a PNG data URL")
	}

	// Close, then the session is gone
	data = call(t, h, "close_adjustment", map[string]interface{}{"session_id": sessionID})
	if data["success"] != true {
		t.Errorf("Expected close success, got: %v", data)
	}
	data = call(t, h, "continue_adjustment", map[string]interface{}{"session_id": sessionID})
	if errorTypeOf(data) != "session_not_found" {
		t.Errorf("Expected session_not_found, got: %v", data)
	}
}

// TestAutoAdjust_ProcessingThenContinue tests the initial wait expiring before the analysis settles
func TestAutoAdjust_ProcessingThenContinue(t *testing.T) {
	mockClient := client.NewMockClient("desc", "[contrast] -10")
	mockClient.SetResponseDelay(300 * time.Millisecond)

	timeouts := config.TestTimeouts()
	timeouts.InitialWait = 50 * time.Millisecond
	h := newTestHandler(t, mockClient, timeouts)

	data := call(t, h, "auto_adjust", map[string]interface{}{"file_path": writeGray(t)})
	if data["status"] != "processing" {
		t.Fatalf("Expected processing status, got: %v", data)
	}
	sessionID, ok := data["session_id"].(string)
	if !ok || sessionID == "" {
		t.Fatal("Expected session_id in response")
	}

	// Comparing is not possible while analyzing
	data = call(t, h, "compare_original", map[string]interface{}{"session_id": sessionID})
	if errorTypeOf(data) != "invalid_state" {
		t.Errorf("Expected invalid_state, got: %v", data)
	}

	data = call(t, h, "continue_adjustment", map[string]interface{}{"session_id": sessionID, "wait_time": 2})
	if data["state"] != "ready" {
		t.Fatalf("Expected ready after continue, got: %v", data)
	}
	if data["filters"] != "contrast(90%)" {
		t.Errorf("Expected contrast(90%%), got %v", data["filters"])
	}
}

// TestAutoAdjust_FailureAndRetry tests the failed state and retry affordance
func TestAutoAdjust_FailureAndRetry(t *testing.T) {
	mockClient := client.NewMockClient("ignored", "desc", "[brightness] -20")
	mockClient.ShouldFail = true
	mockClient.FailOnCall = 1
	h := newTestHandler(t, mockClient, config.TestTimeouts())

	data := call(t, h, "auto_adjust", map[string]interface{}{"file_path": writeGray(t)})
	if data["success"] != false || errorTypeOf(data) != "analysis_failed" {
		t.Fatalf("Expected analysis_failed, got: %v", data)
	}
	details := data["error"].(map[string]interface{})["details"].(map[string]interface{})
	sessionID := details["session_id"].(string)

	data = call(t, h, "save_adjusted", map[string]interface{}{"session_id": sessionID})
	if errorTypeOf(data) != "invalid_state" {
		t.Errorf("Expected invalid_state when saving a failed session, got: %v", data)
	}

	data = call(t, h, "retry_adjustment", map[string]interface{}{"session_id": sessionID})
	if data["state"] != "ready" {
		t.Fatalf("Expected ready after retry, got: %v", data)
	}
	if data["filters"] != "brightness(80%)" {
		t.Errorf("Expected brightness(80%%), got %v", data["filters"])
	}

	data = call(t, h, "retry_adjustment", map[string]interface{}{"session_id": sessionID})
	if errorTypeOf(data) != "invalid_state" {
		t.Errorf("Expected invalid_state when retrying a ready session, got: %v", data)
	}
}

// TestAutoAdjust_MissingCredentials tests that settings are read at call time
func TestAutoAdjust_MissingCredentials(t *testing.T) {
	root := t.TempDir()
	store := settings.NewStoreInDir(root, settings.Settings{})
	cfg := &config.Config{
		ImagesRoot:     root,
		VisionModel:    "vision",
		RecommendModel: "recommend",
		MaxImageSizeMB: 5,
		JPEGQuality:    90,
		Timeouts:       config.TestTimeouts(),
	}
	h := newHandler(cfg, client.NewOpenAIClient(store, nil), store, nil)
	defer h.Close()

	data := call(t, h, "auto_adjust", map[string]interface{}{"file_path": writeGray(t)})
	if errorTypeOf(data) != "missing_credentials" {
		t.Fatalf("Expected missing_credentials, got: %v", data)
	}

	data = call(t, h, "update_settings", map[string]interface{}{"api_key": "sk-abcdef1234"})
	if data["api_key"] != "****1234" || data["api_key_source"] != "settings" {
		t.Errorf("Expected masked stored key, got: %v", data)
	}

	data = call(t, h, "update_settings", map[string]interface{}{"api_key": ""})
	if data["api_key_set"] != false {
		t.Errorf("Expected empty api_key to clear the key, got: %v", data)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("Expected settings file to be removed when every value is cleared")
	}
}

// TestUpdateSettings_ClearFallsBackToEnvironment tests reporting the environment key after clearing the stored one
func TestUpdateSettings_ClearFallsBackToEnvironment(t *testing.T) {
	root := t.TempDir()
	store := settings.NewStoreInDir(root, settings.Settings{APIKey: "sk-env-5678", BaseURL: "https://api.openai.com/v1"})
	cfg := &config.Config{
		ImagesRoot:     root,
		VisionModel:    "vision",
		RecommendModel: "recommend",
		MaxImageSizeMB: 5,
		JPEGQuality:    90,
		Timeouts:       config.TestTimeouts(),
	}
	h := newHandler(cfg, client.NewMockClient(), store, nil)
	defer h.Close()

	data := call(t, h, "update_settings", map[string]interface{}{"api_key": "sk-stored-1234"})
	if data["api_key"] != "****1234" || data["api_key_source"] != "settings" {
		t.Errorf("Expected the stored key, got: %v", data)
	}
	if _, ok := data["notes"]; ok {
		t.Errorf("Expected no notes when setting a key, got: %v", data["notes"])
	}

	data = call(t, h, "update_settings", map[string]interface{}{"api_key": ""})
	if data["api_key"] != "****5678" || data["api_key_source"] != "environment" {
		t.Errorf("Expected the environment key after clearing, got: %v", data)
	}
	if data["api_key_set"] != true {
		t.Errorf("Expected api_key_set to stay true, got: %v", data["api_key_set"])
	}
	notes, _ := data["notes"].([]interface{})
	if len(notes) != 1 || !strings.Contains(notes[0].(string), "OPENAI_API_KEY") {
		t.Errorf("Expected a note about the environment key, got: %v", data["notes"])
	}

	data = call(t, h, "get_settings", nil)
	if data["api_key_source"] != "environment" {
		t.Errorf("Expected get_settings to report the environment source, got: %v", data)
	}
}

// TestApplyFilters tests manual slider editing and export naming
func TestApplyFilters(t *testing.T) {
	h := newTestHandler(t, client.NewMockClient(), config.TestTimeouts())

	data := call(t, h, "apply_filters", map[string]interface{}{
		"file_path":  writeGray(t),
		"brightness": float64(50),
		"saturate":   float64(-250),
	})
	if data["success"] != true {
		t.Fatalf("Expected success, got: %v", data)
	}
	params := data["parameters"].(map[string]interface{})
	if params["saturate"].(float64) != -100 {
		t.Errorf("Expected saturate clamped to -100, got %v", params["saturate"])
	}

	output := data["paths"].(map[string]interface{})["output"].(string)
	if filepath.Base(output) != "gray-edited.png" {
		t.Errorf("Expected gray-edited.png, got %s", filepath.Base(output))
	}
	saved, err := imaging.Open(output)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	if r := imaging.Clone(saved).NRGBAAt(0, 0).R; r != 192 {
		t.Errorf("Expected brightened pixel 192, got %d", r)
	}

	data = call(t, h, "apply_filters", map[string]interface{}{"brightness": float64(10)})
	if errorTypeOf(data) != "invalid_parameters" {
		t.Errorf("Expected invalid_parameters without an image, got: %v", data)
	}

	data = call(t, h, "apply_filters", map[string]interface{}{"file_path": "/does/not/exist.png"})
	if errorTypeOf(data) != "file_not_found" {
		t.Errorf("Expected file_not_found, got: %v", data)
	}
}

// TestSaveOutputs_FilenameStaysInImagesRoot tests that caller-supplied names cannot leave the images root
func TestSaveOutputs_FilenameStaysInImagesRoot(t *testing.T) {
	mockClient := client.NewMockClient("A gray square.", "[brightness] +5")
	h := newTestHandler(t, mockClient, config.TestTimeouts())
	root := h.storage.Root()

	data := call(t, h, "auto_adjust", map[string]interface{}{"file_path": writeGray(t)})
	if data["state"] != "ready" {
		t.Fatalf("Expected ready state, got: %v", data)
	}
	sessionID := data["session_id"].(string)

	data = call(t, h, "save_adjusted", map[string]interface{}{
		"session_id": sessionID,
		"filename":   "../../escaped.png",
	})
	if data["success"] != true {
		t.Fatalf("Expected save success, got: %v", data)
	}
	output := data["paths"].(map[string]interface{})["output"].(string)
	want := filepath.Join(root, data["id"].(string), "escaped.png")
	if output != want {
		t.Errorf("Expected output %s, got %s", want, output)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escaped.png")); !os.IsNotExist(err) {
		t.Error("Expected nothing written outside the images root")
	}

	data = call(t, h, "apply_filters", map[string]interface{}{
		"file_path":       writeGray(t),
		"brightness":      float64(10),
		"output_filename": "../outside.png",
	})
	if data["success"] != true {
		t.Fatalf("Expected apply_filters success, got: %v", data)
	}
	output = data["paths"].(map[string]interface{})["output"].(string)
	if filepath.Dir(filepath.Dir(output)) != root || filepath.Base(output) != "outside.png" {
		t.Errorf("Expected output under %s, got %s", root, output)
	}
}

// TestApplyFilters_NumericArguments tests out-of-range and fractional slider values
func TestApplyFilters_NumericArguments(t *testing.T) {
	h := newTestHandler(t, client.NewMockClient(), config.TestTimeouts())

	data := call(t, h, "apply_filters", map[string]interface{}{
		"file_path":  writeGray(t),
		"brightness": float64(1e30),
		"contrast":   float64(-1e30),
	})
	if data["success"] != true {
		t.Fatalf("Expected success, got: %v", data)
	}
	params := data["parameters"].(map[string]interface{})
	if params["brightness"].(float64) != 100 {
		t.Errorf("Expected brightness clamped to 100, got %v", params["brightness"])
	}
	if params["contrast"].(float64) != -100 {
		t.Errorf("Expected contrast clamped to -100, got %v", params["contrast"])
	}

	data = call(t, h, "apply_filters", map[string]interface{}{
		"file_path":  writeGray(t),
		"brightness": 12.5,
	})
	if errorTypeOf(data) != "invalid_parameters" {
		t.Errorf("Expected invalid_parameters for a fractional slider, got: %v", data)
	}
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name    string
		raw     interface{}
		want    int
		present bool
		wantErr bool
	}{
		{"missing", nil, 0, false, false},
		{"whole float", float64(42), 42, true, false},
		{"huge", 1e30, math.MaxInt32, true, false},
		{"huge negative", -1e30, math.MinInt32, true, false},
		{"fractional", 0.5, 0, true, true},
		{"infinite", math.Inf(1), 0, true, true},
		{"not a number", math.NaN(), 0, true, true},
		{"string", "7", 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{}
			if tt.raw != nil {
				args["v"] = tt.raw
			}
			got, present, err := intArg(args, "v")
			if (err != nil) != tt.wantErr {
				t.Fatalf("intArg() error = %v, wantErr %v", err, tt.wantErr)
			}
			if present != tt.present {
				t.Errorf("intArg() present = %v, want %v", present, tt.present)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("intArg() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestComputeHistogram tests histogram buckets over the tool surface
func TestComputeHistogram(t *testing.T) {
	h := newTestHandler(t, client.NewMockClient(), config.TestTimeouts())

	data := call(t, h, "compute_histogram", map[string]interface{}{"file_path": writeGray(t)})
	values := data["values"].([]interface{})
	if len(values) != 32 {
		t.Fatalf("Expected 32 buckets, got %d", len(values))
	}
	if values[16].(float64) != 1 {
		t.Errorf("Expected mid-gray in bucket 16, got %v", values[16])
	}

	data = call(t, h, "compute_histogram", map[string]interface{}{"file_path": writeGray(t), "buckets": float64(30)})
	if errorTypeOf(data) != "invalid_parameters" {
		t.Errorf("Expected invalid_parameters for 30 buckets, got: %v", data)
	}
}

// TestListTools tests that every tool routed by CallTool is advertised
func TestListTools(t *testing.T) {
	h := newTestHandler(t, client.NewMockClient(), config.TestTimeouts())

	resp, err := h.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(resp.Tools) != 12 {
		t.Errorf("Expected 12 tools, got %d", len(resp.Tools))
	}
	for _, tool := range resp.Tools {
		var schema map[string]interface{}
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			t.Errorf("Tool %s has invalid schema: %v", tool.Name, err)
		}
	}

	if _, err := h.CallTool(context.Background(), &protocol.CallToolRequest{Name: "generate_image"}); err == nil {
		t.Error("Expected error for unknown tool")
	}
}
