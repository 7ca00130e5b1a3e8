// Package session runs the auto-adjust dialog: an explicit state machine over
// one source image, the analysis pipeline that feeds it, and a registry of
// open dialogs.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/photo_adjust_ai/pkg/adjust"
	"github.com/gomcpgo/photo_adjust_ai/pkg/analysis"
	"github.com/gomcpgo/photo_adjust_ai/pkg/histogram"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	"go.uber.org/zap"
)

// State is the dialog's current view state
type State string

const (
	StateClosed    State = "closed"
	StateAnalyzing State = "analyzing"
	StateReady     State = "ready"
	StateComparing State = "comparing"
	StateFailed    State = "failed"
)

// ErrInvalidTransition is returned when an event does not apply to the current state
var ErrInvalidTransition = errors.New("invalid state transition")

// Analyzer produces adjustment suggestions for an image
type Analyzer interface {
	Analyze(ctx context.Context, img image.Image) (*analysis.Result, error)
}

var _ Analyzer = (*analysis.Requestor)(nil)

// Options configures a dialog
type Options struct {
	// Timeout bounds one analysis run. Zero means no bound.
	Timeout time.Duration
}

// Snapshot is a copy of the dialog's observable state
type Snapshot struct {
	ID          string
	Filename    string
	State       State
	Reasoning   string
	Adjustments types.Adjustments
	Chain       adjust.Chain
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
}

// Dialog is one auto-adjust dialog instance
type Dialog struct {
	id       string
	filename string
	analyzer Analyzer
	opts     Options
	logger   *zap.Logger

	mu         sync.Mutex
	state      State
	original   *image.NRGBA
	adjusted   *image.NRGBA
	result     *analysis.Result
	chain      adjust.Chain
	err        error
	startedAt  time.Time
	lastActive time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	run        uint64
}

// New creates a closed dialog
func New(id, filename string, analyzer Analyzer, opts Options, logger *zap.Logger) *Dialog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialog{
		id:         id,
		filename:   filename,
		analyzer:   analyzer,
		opts:       opts,
		logger:     logger.With(zap.String("session_id", id)),
		state:      StateClosed,
		lastActive: time.Now(),
	}
}

// ID returns the dialog's identifier
func (d *Dialog) ID() string {
	return d.id
}

// Filename returns the name of the image the dialog was opened on
func (d *Dialog) Filename() string {
	return d.filename
}

// Open copies src and starts the analysis. Only valid from closed.
func (d *Dialog) Open(src image.Image) error {
	if src == nil || src.Bounds().Empty() {
		return histogram.ErrEmptySurface
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActive = time.Now()

	if d.state != StateClosed {
		return fmt.Errorf("%w: open from %s", ErrInvalidTransition, d.state)
	}

	d.original = imaging.Clone(src)
	d.adjusted = nil
	d.result = nil
	d.chain = nil
	d.err = nil
	d.start()
	return nil
}

// Retry re-runs the analysis after a failure
func (d *Dialog) Retry() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActive = time.Now()

	if d.state != StateFailed {
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, d.state)
	}

	d.err = nil
	d.start()
	return nil
}

// start launches a pipeline run. Caller holds d.mu.
func (d *Dialog) start() {
	d.run++
	run := d.run

	var ctx context.Context
	var cancel context.CancelFunc
	if d.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), d.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.state = StateAnalyzing
	d.startedAt = time.Now()

	d.logger.Info("Starting analysis", zap.Uint64("run", run))
	go d.execute(ctx, cancel, run, d.original, done)
}

func (d *Dialog) execute(ctx context.Context, cancel context.CancelFunc, run uint64, src *image.NRGBA, done chan struct{}) {
	defer close(done)
	defer cancel()

	result, err := d.analyzer.Analyze(ctx, src)

	var chain adjust.Chain
	var adjusted *image.NRGBA
	if err == nil {
		chain = adjust.FromAdjustments(result.Adjustments)
		adjusted = chain.Apply(src)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if run != d.run || d.state != StateAnalyzing {
		d.logger.Debug("Dropping result of superseded run", zap.Uint64("run", run))
		return
	}

	if err != nil {
		d.state = StateFailed
		d.err = err
		d.logger.Warn("Analysis failed", zap.Error(err))
		return
	}

	d.state = StateReady
	d.result = result
	d.chain = chain
	d.adjusted = adjusted
	d.logger.Info("Analysis ready",
		zap.String("filters", chain.String()),
		zap.Duration("elapsed", time.Since(d.startedAt)))
}

// Wait blocks until the current run settles or ctx is done, and returns the
// resulting state
func (d *Dialog) Wait(ctx context.Context) (State, error) {
	d.mu.Lock()
	state, done := d.state, d.done
	d.mu.Unlock()

	if state != StateAnalyzing {
		return state, nil
	}

	select {
	case <-done:
		return d.State(), nil
	case <-ctx.Done():
		return StateAnalyzing, ctx.Err()
	}
}

// PointerDown reveals the original while the pointer is held
func (d *Dialog) PointerDown() error {
	return d.transition(StateReady, StateComparing)
}

// PointerUp returns to the adjusted view
func (d *Dialog) PointerUp() error {
	return d.transition(StateComparing, StateReady)
}

func (d *Dialog) transition(from, to State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActive = time.Now()

	if d.state != from {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, d.state, to)
	}
	d.state = to
	return nil
}

// Close cancels any in-flight analysis, clears the reasoning and returns to closed
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	// Bump the run so a late completion is dropped.
	d.run++
	if d.state != StateClosed {
		d.logger.Info("Closing dialog", zap.String("from", string(d.state)))
	}

	d.state = StateClosed
	d.original = nil
	d.adjusted = nil
	d.result = nil
	d.chain = nil
	d.err = nil
}

// State returns the current state
func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the failure of the last run, if any
func (d *Dialog) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Displayed returns the surface currently shown: the adjusted image when
// ready, otherwise the original. Nil when closed.
func (d *Dialog) Displayed() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateClosed:
		return nil
	case StateReady:
		return d.adjusted
	default:
		return d.original
	}
}

// Original returns the copied source, nil when closed
func (d *Dialog) Original() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.original == nil {
		return nil
	}
	return d.original
}

// Adjusted returns the adjusted image, nil until ready
func (d *Dialog) Adjusted() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.adjusted == nil {
		return nil
	}
	return d.adjusted
}

// Snapshot returns a copy of the observable state
func (d *Dialog) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		ID:        d.id,
		Filename:  d.filename,
		State:     d.state,
		Chain:     d.chain,
		StartedAt: d.startedAt,
	}
	if d.result != nil {
		s.Reasoning = d.result.Reasoning
		s.Adjustments = d.result.Adjustments
		s.Duration = d.result.Duration
	}
	if d.err != nil {
		s.Error = d.err.Error()
	}
	return s
}

func (d *Dialog) idleSince() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastActive
}

func (d *Dialog) touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActive = time.Now()
}
