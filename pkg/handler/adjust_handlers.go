package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gomcpgo/mcp/pkg/protocol"
	"github.com/gomcpgo/photo_adjust_ai/pkg/editor"
	"github.com/gomcpgo/photo_adjust_ai/pkg/responses"
	"github.com/gomcpgo/photo_adjust_ai/pkg/session"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	"go.uber.org/zap"
)

// handleAutoAdjust handles the auto_adjust tool
func (h *PhotoAdjustHandler) handleAutoAdjust(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = types.OperationAutoAdjust

	ed, err := h.importImage(args)
	if err != nil {
		return h.errorResponse(op, errorType(err), err.Error(), nil)
	}

	d, err := h.sessions.Open(ed.Source(), ed.Filename())
	if err != nil {
		return h.errorResponse(op, errorType(err), err.Error(), nil)
	}
	h.logger.Info("Auto-adjust started", zap.String("session_id", d.ID()), zap.String("filename", ed.Filename()))

	return h.awaitDialog(ctx, op, d, h.cfg.Timeouts.InitialWait)
}

// handleContinueAdjustment handles the continue_adjustment tool
func (h *PhotoAdjustHandler) handleContinueAdjustment(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "continue_adjustment"

	d, resp, err := h.lookupDialog(op, args)
	if d == nil {
		return resp, err
	}

	waitTime := h.cfg.Timeouts.ContinueWait
	if seconds, present, err := intArg(args, "wait_time"); err != nil {
		return h.errorResponse(op, responses.ErrorInvalidParameters, err.Error(), nil)
	} else if present {
		if seconds < 1 {
			seconds = 1
		}
		if max := int(h.cfg.Timeouts.ContinueWait.Seconds()); max > 0 && seconds > max {
			seconds = max
		}
		waitTime = time.Duration(seconds) * time.Second
	}

	return h.awaitDialog(ctx, op, d, waitTime)
}

// awaitDialog waits up to wait for the dialog to settle and reports its state
func (h *PhotoAdjustHandler) awaitDialog(ctx context.Context, op string, d *session.Dialog, wait time.Duration) (*protocol.CallToolResponse, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	state, err := d.Wait(waitCtx)
	if err != nil {
		snap := d.Snapshot()
		return h.successResponse(responses.BuildProcessingResponse(op, d.ID(), time.Since(snap.StartedAt).Seconds()))
	}

	return h.dialogResponse(op, d, state)
}

// dialogResponse renders the dialog's state as a tool response
func (h *PhotoAdjustHandler) dialogResponse(op string, d *session.Dialog, state session.State) (*protocol.CallToolResponse, error) {
	snap := d.Snapshot()

	if state == session.StateFailed {
		return h.errorResponse(op, errorType(d.Err()), snap.Error, map[string]interface{}{
			"session_id": snap.ID,
			"state":      string(snap.State),
		})
	}
	if state == session.StateClosed {
		return h.errorResponse(op, responses.ErrorSessionNotFound, "session is closed", map[string]interface{}{
			"session_id": snap.ID,
		})
	}

	data := map[string]interface{}{
		"session_id": snap.ID,
		"state":      string(snap.State),
		"displayed":  displayedView(snap.State),
	}
	message := "Analysis in progress"
	if state == session.StateReady || state == session.StateComparing {
		message = "Adjustment ready"
		data["reasoning"] = snap.Reasoning
		data["adjustments"] = snap.Adjustments.ToMap()
		data["filters"] = snap.Chain.String()
		data["analysis_time"] = snap.Duration.Seconds()
	}

	return h.successResponse(responses.BuildSimpleSuccessResponse(op, message, data))
}

func displayedView(state session.State) string {
	if state == session.StateReady {
		return "adjusted"
	}
	return "original"
}

// lookupDialog resolves session_id. A nil dialog means the returned response should be sent as is.
func (h *PhotoAdjustHandler) lookupDialog(op string, args map[string]interface{}) (*session.Dialog, *protocol.CallToolResponse, error) {
	id, ok := stringArg(args, "session_id")
	if !ok || id == "" {
		resp, err := h.errorResponse(op, responses.ErrorInvalidParameters, "session_id parameter is required", nil)
		return nil, resp, err
	}

	d, exists := h.sessions.Get(id)
	if !exists {
		resp, err := h.errorResponse(op, responses.ErrorSessionNotFound,
			fmt.Sprintf("no open session with id %s", id),
			map[string]interface{}{"session_id": id})
		return nil, resp, err
	}
	return d, nil, nil
}

// handleCompareOriginal handles the compare_original tool
func (h *PhotoAdjustHandler) handleCompareOriginal(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "compare_original"

	d, resp, err := h.lookupDialog(op, args)
	if d == nil {
		return resp, err
	}

	pressed := true
	if v, ok := args["pressed"].(bool); ok {
		pressed = v
	}

	if pressed {
		err = d.PointerDown()
	} else {
		err = d.PointerUp()
	}
	if err != nil {
		return h.errorResponse(op, errorType(err), err.Error(), map[string]interface{}{
			"session_id": d.ID(),
			"state":      string(d.State()),
		})
	}

	return h.dialogResponse(op, d, d.State())
}

// handleRetryAdjustment handles the retry_adjustment tool
func (h *PhotoAdjustHandler) handleRetryAdjustment(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "retry_adjustment"

	d, resp, err := h.lookupDialog(op, args)
	if d == nil {
		return resp, err
	}

	if err := d.Retry(); err != nil {
		return h.errorResponse(op, errorType(err), err.Error(), map[string]interface{}{
			"session_id": d.ID(),
			"state":      string(d.State()),
		})
	}
	h.logger.Info("Retrying analysis", zap.String("session_id", d.ID()))

	return h.awaitDialog(ctx, op, d, h.cfg.Timeouts.InitialWait)
}

// handleSaveAdjusted handles the save_adjusted tool
func (h *PhotoAdjustHandler) handleSaveAdjusted(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "save_adjusted"
	start := time.Now()

	d, resp, err := h.lookupDialog(op, args)
	if d == nil {
		return resp, err
	}

	adjusted := d.Adjusted()
	snap := d.Snapshot()
	if adjusted == nil {
		return h.errorResponse(op, responses.ErrorInvalidState,
			fmt.Sprintf("no adjusted image while %s", snap.State),
			map[string]interface{}{"session_id": snap.ID, "state": string(snap.State)})
	}

	id, err := h.storage.GenerateID()
	if err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}

	filename := editor.ExportFilename(snap.Filename)
	if name, ok := stringArg(args, "filename"); ok && name != "" {
		filename = name
	}
	result, err := h.storage.SaveImage(id, adjusted, filename, h.cfg.JPEGQuality)
	if err != nil {
		return h.errorResponse(op, responses.ErrorStorage, err.Error(), nil)
	}
	result.ProcessingTime = time.Since(start).Seconds()

	params := snap.Adjustments.ToMap()
	metadata := &types.ImageMetadata{
		Operation:  types.OperationAutoAdjust,
		Model:      fmt.Sprintf("%s,%s", h.cfg.VisionModel, h.cfg.RecommendModel),
		Parameters: params,
		Filters:    snap.Chain.String(),
		Reasoning:  snap.Reasoning,
		Result:     result,
	}
	if err := h.storage.SaveMetadata(id, metadata); err != nil {
		h.logger.Warn("Failed to save metadata", zap.String("id", id), zap.Error(err))
	}

	return h.successResponse(responses.BuildSuccessResponse(
		op,
		id,
		map[string]string{"output": h.storage.GetImagePath(id, result.Filename)},
		params,
		map[string]interface{}{
			"session_id": snap.ID,
			"filters":    snap.Chain.String(),
			"width":      result.Width,
			"height":     result.Height,
			"file_size":  result.FileSize,
		},
	))
}

// handleCloseAdjustment handles the close_adjustment tool
func (h *PhotoAdjustHandler) handleCloseAdjustment(ctx context.Context, args map[string]interface{}) (*protocol.CallToolResponse, error) {
	const op = "close_adjustment"

	id, ok := stringArg(args, "session_id")
	if !ok || id == "" {
		return h.errorResponse(op, responses.ErrorInvalidParameters, "session_id parameter is required", nil)
	}
	if !h.sessions.Close(id) {
		return h.errorResponse(op, responses.ErrorSessionNotFound,
			fmt.Sprintf("no open session with id %s", id),
			map[string]interface{}{"session_id": id})
	}

	return h.successResponse(responses.BuildSimpleSuccessResponse(op, "Session closed", map[string]interface{}{
		"session_id": id,
		"state":      string(session.StateClosed),
	}))
}
