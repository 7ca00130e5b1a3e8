package session

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/photo_adjust_ai/pkg/analysis"
	"github.com/gomcpgo/photo_adjust_ai/pkg/client"
	"github.com/gomcpgo/photo_adjust_ai/pkg/histogram"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func graySquare() *image.NRGBA {
	return imaging.New(100, 100, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
}

func newDialog(mock *client.MockClient, opts Options) *Dialog {
	requestor := analysis.NewRequestor(mock, analysis.Options{VisionModel: "v", RecommendModel: "r"}, nil)
	return New("test", "gray.png", requestor, opts, nil)
}

func waitSettled(t *testing.T, d *Dialog) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := d.Wait(ctx)
	require.NoError(t, err)
	return state
}

func redAt(img image.Image) uint8 {
	return imaging.Clone(img).NRGBAAt(50, 50).R
}

func TestDialog_EndToEndGraySquare(t *testing.T) {
	mock := client.NewMockClient("A gray square.", "[brightness] +5\n[contrast] +0")
	d := newDialog(mock, Options{})
	src := graySquare()

	require.NoError(t, d.Open(src))
	assert.Equal(t, StateReady, waitSettled(t, d))

	snap := d.Snapshot()
	assert.Contains(t, snap.Reasoning, "A gray square.")
	assert.Equal(t, types.Adjustments{types.PropertyBrightness: 5, types.PropertyContrast: 0}, snap.Adjustments)
	assert.Equal(t, "brightness(105%)", snap.Chain.String())
	assert.Empty(t, snap.Error)

	assert.Equal(t, uint8(134), redAt(d.Displayed()), "adjusted view is brightened by 5%")

	require.NoError(t, d.PointerDown())
	assert.Equal(t, StateComparing, d.State())
	assert.Equal(t, uint8(128), redAt(d.Displayed()), "comparing shows the original")

	require.NoError(t, d.PointerUp())
	assert.Equal(t, StateReady, d.State())
	assert.Equal(t, uint8(134), redAt(d.Displayed()))

	assert.Equal(t, 2, mock.CallCount(), "toggling must not call the remote service")
	assert.Equal(t, uint8(128), src.NRGBAAt(0, 0).R, "source is never modified")

	d.Close()
	assert.Equal(t, StateClosed, d.State())
	assert.Empty(t, d.Snapshot().Reasoning)
	assert.Nil(t, d.Displayed())
}

func TestDialog_UnrenderedPropertiesLeaveImageUnchanged(t *testing.T) {
	mock := client.NewMockClient("desc", "[highlights] -20\n[shadows] +15")
	d := newDialog(mock, Options{})
	defer d.Close()

	require.NoError(t, d.Open(graySquare()))
	assert.Equal(t, StateReady, waitSettled(t, d))

	snap := d.Snapshot()
	assert.True(t, snap.Chain.Empty())
	assert.Equal(t, -20, snap.Adjustments[types.PropertyHighlights])
	assert.Equal(t, uint8(128), redAt(d.Displayed()))
}

func TestDialog_FailureThenRetry(t *testing.T) {
	mock := client.NewMockClient("ignored", "A gray square.", "[brightness] +10")
	mock.ShouldFail = true
	mock.FailOnCall = 1
	mock.FailMessage = "connection refused"
	d := newDialog(mock, Options{})
	defer d.Close()

	require.NoError(t, d.Open(graySquare()))
	assert.Equal(t, StateFailed, waitSettled(t, d))
	require.Error(t, d.Err())
	assert.Contains(t, d.Snapshot().Error, "connection refused")
	assert.Equal(t, uint8(128), redAt(d.Displayed()), "failed dialog keeps showing the original")
	assert.ErrorIs(t, d.PointerDown(), ErrInvalidTransition)

	require.NoError(t, d.Retry())
	assert.Equal(t, StateReady, waitSettled(t, d))
	assert.NoError(t, d.Err())
	assert.Equal(t, types.Adjustments{types.PropertyBrightness: 10}, d.Snapshot().Adjustments)
	assert.Equal(t, 3, mock.CallCount())
}

func TestDialog_InvalidTransitions(t *testing.T) {
	mock := client.NewMockClient("x")
	mock.Block = true
	d := newDialog(mock, Options{})

	assert.ErrorIs(t, d.PointerDown(), ErrInvalidTransition, "closed")
	assert.ErrorIs(t, d.Retry(), ErrInvalidTransition, "closed")

	require.NoError(t, d.Open(graySquare()))
	assert.Equal(t, StateAnalyzing, d.State())
	assert.ErrorIs(t, d.Open(graySquare()), ErrInvalidTransition)
	assert.ErrorIs(t, d.PointerDown(), ErrInvalidTransition)
	assert.ErrorIs(t, d.PointerUp(), ErrInvalidTransition)
	assert.ErrorIs(t, d.Retry(), ErrInvalidTransition)

	d.Close()
}

func TestDialog_OpenEmptySurface(t *testing.T) {
	d := newDialog(client.NewMockClient("x"), Options{})
	assert.ErrorIs(t, d.Open(image.NewNRGBA(image.Rect(0, 0, 0, 0))), histogram.ErrEmptySurface)
	assert.Equal(t, StateClosed, d.State())
}

func TestDialog_CloseCancelsInFlightCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := client.NewMockClient("x")
	mock.Block = true
	d := newDialog(mock, Options{})

	require.NoError(t, d.Open(graySquare()))
	done := d.done
	d.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("analysis goroutine did not stop after close")
	}
	assert.Equal(t, StateClosed, d.State())
	assert.Equal(t, 1, mock.CallCount())
}

type gatedAnalyzer struct {
	release chan struct{}
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, img image.Image) (*analysis.Result, error) {
	<-g.release
	return &analysis.Result{
		Reasoning:   "late",
		Adjustments: types.Adjustments{types.PropertyBrightness: 50},
	}, nil
}

func TestDialog_LateResultIsDropped(t *testing.T) {
	gate := &gatedAnalyzer{release: make(chan struct{})}
	d := New("late", "", gate, Options{}, nil)

	require.NoError(t, d.Open(graySquare()))
	done := d.done
	d.Close()
	close(gate.release)
	<-done

	assert.Equal(t, StateClosed, d.State())
	assert.Empty(t, d.Snapshot().Reasoning)
	assert.Nil(t, d.Displayed())
}

func TestDialog_TimeoutFails(t *testing.T) {
	mock := client.NewMockClient("x")
	mock.Block = true
	d := newDialog(mock, Options{Timeout: 50 * time.Millisecond})
	defer d.Close()

	require.NoError(t, d.Open(graySquare()))
	assert.Equal(t, StateFailed, waitSettled(t, d))
	assert.ErrorIs(t, d.Err(), context.DeadlineExceeded)
}

func TestDialog_WaitRespectsContext(t *testing.T) {
	mock := client.NewMockClient("x")
	mock.Block = true
	d := newDialog(mock, Options{})
	defer d.Close()

	require.NoError(t, d.Open(graySquare()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := d.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateAnalyzing, state)
}
