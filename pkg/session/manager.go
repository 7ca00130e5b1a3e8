package session

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrManagerStopped is returned by Open after Stop
var ErrManagerStopped = errors.New("session manager stopped")

// Manager tracks open dialogs and removes idle ones
type Manager struct {
	analyzer Analyzer
	opts     Options
	maxIdle  time.Duration
	logger   *zap.Logger

	dialogs map[string]*Dialog
	closed  bool
	mu      sync.RWMutex

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager and starts its cleanup goroutine.
// maxIdle of zero disables cleanup.
func NewManager(analyzer Analyzer, opts Options, maxIdle time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		analyzer: analyzer,
		opts:     opts,
		maxIdle:  maxIdle,
		logger:   logger,
		dialogs:  make(map[string]*Dialog),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go m.cleanupExpired()
	return m
}

// Open creates a dialog for src and starts its analysis
func (m *Manager) Open(src image.Image, filename string) (*Dialog, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrManagerStopped
	}

	d := New(uuid.NewString(), filename, m.analyzer, m.opts, m.logger)
	if err := d.Open(src); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		// Stop ran while the dialog was starting
		m.mu.Unlock()
		d.Close()
		return nil, ErrManagerStopped
	}
	m.dialogs[d.ID()] = d
	m.mu.Unlock()
	return d, nil
}

// Get retrieves a dialog by ID and marks it active
func (m *Manager) Get(id string) (*Dialog, bool) {
	m.mu.RLock()
	d, ok := m.dialogs[id]
	m.mu.RUnlock()
	if ok {
		d.touch()
	}
	return d, ok
}

// Close closes and forgets a dialog. It reports whether the dialog existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	d, ok := m.dialogs[id]
	delete(m.dialogs, id)
	m.mu.Unlock()

	if ok {
		d.Close()
	}
	return ok
}

// Len returns the number of open dialogs
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dialogs)
}

// Stop closes every dialog and ends the cleanup goroutine
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.stopped

		m.mu.Lock()
		m.closed = true
		dialogs := m.dialogs
		m.dialogs = make(map[string]*Dialog)
		m.mu.Unlock()

		for _, d := range dialogs {
			d.Close()
		}
	})
}

func (m *Manager) cleanupExpired() {
	defer close(m.stopped)
	if m.maxIdle <= 0 {
		<-m.stop
		return
	}

	interval := time.Minute
	if m.maxIdle < interval {
		interval = m.maxIdle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.expire(time.Now())
		}
	}
}

// expire closes dialogs idle for longer than maxIdle as of now
func (m *Manager) expire(now time.Time) int {
	var expired []*Dialog

	m.mu.Lock()
	for id, d := range m.dialogs {
		if now.Sub(d.idleSince()) > m.maxIdle {
			expired = append(expired, d)
			delete(m.dialogs, id)
		}
	}
	m.mu.Unlock()

	for _, d := range expired {
		m.logger.Debug("Expiring idle dialog", zap.String("session_id", d.ID()))
		d.Close()
	}
	return len(expired)
}
