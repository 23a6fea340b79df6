// Package tracker maintains the operator's current position and keeps the
// user marker and camera in step with it.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// UserMarkerLabel labels the operator's marker.
const UserMarkerLabel = "Vous êtes ici"

// FallbackNotice is shown once when the live source cannot be used.
const FallbackNotice = "Position indisponible, utilisation de la position par défaut"

// Options configures a Tracker.
type Options struct {
	Fallback     domain.Coordinate
	PollInterval time.Duration
	MaxAge       time.Duration
	AutoCenter   bool
	Zoom         int
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock sets the clock driving the polling ticker.
func WithClock(c clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// Tracker records position updates from a PositionSource, or holds a fixed
// coordinate when no source is configured. Updates bit-identical to the last
// recorded coordinate are ignored.
type Tracker struct {
	source domain.PositionSource
	view   domain.MapView
	opts   Options
	clock  clockwork.Clock

	// emitMu serializes recording with the map and subscriber calls that
	// follow it, so they are seen in the order positions were recorded.
	emitMu sync.Mutex

	mu          sync.Mutex
	current     domain.Coordinate
	hasCurrent  bool
	liveFix     bool
	startedAt   time.Time
	subscribers map[int]func(domain.Coordinate)
	nextSubID   int

	autoCenter atomic.Bool
	noticeOnce sync.Once

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Tracker. A nil source selects fixed mode.
func New(source domain.PositionSource, view domain.MapView, opts Options, metrics *observability.Metrics, logger *slog.Logger, options ...Option) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 5 * time.Second
	}
	t := &Tracker{
		source:      source,
		view:        view,
		opts:        opts,
		clock:       clockwork.NewRealClock(),
		subscribers: make(map[int]func(domain.Coordinate)),
		metrics:     metrics,
		logger:      logger.With("component", "tracker"),
	}
	t.autoCenter.Store(opts.AutoCenter)
	for _, o := range options {
		o(t)
	}
	return t
}

// Live reports whether the tracker polls a live source.
func (t *Tracker) Live() bool { return t.source != nil }

// Start records an initial position and, in live mode, begins polling.
// Calling Start on a running tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.cancel != nil {
		return
	}

	if t.source == nil {
		t.Update(t.opts.Fallback)
		t.cancel = func() {}
		return
	}

	t.mu.Lock()
	t.startedAt = t.clock.Now()
	t.mu.Unlock()
	t.poll(ctx)

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(ctx, t.done)
	t.logger.Info("position tracking started", "interval", t.opts.PollInterval, "max_age", t.opts.MaxAge)
}

// Stop halts polling and waits for the polling goroutine to exit.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.cancel == nil {
		return
	}
	t.cancel()
	if t.done != nil {
		<-t.done
	}
	t.cancel = nil
	t.done = nil
}

func (t *Tracker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := t.clock.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.poll(ctx)
		}
	}
}

func (t *Tracker) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, t.opts.MaxAge)
	defer cancel()

	c, err := t.source.CurrentPosition(pollCtx, t.opts.MaxAge)
	if err == nil && !c.Valid() {
		err = domain.ErrPositionUnavailable
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		t.metrics.PositionUpdates.WithLabelValues("error").Inc()
		t.fallback(err)
		return
	}

	t.mu.Lock()
	t.liveFix = true
	t.mu.Unlock()
	t.Update(c)
}

// fallback substitutes the default coordinate until a live fix has been
// recorded; afterwards the last known position is kept. Failures during the
// first MaxAge after Start, while the source is still connecting, do not use
// up the one-time notice.
func (t *Tracker) fallback(err error) {
	t.mu.Lock()
	hadFix := t.liveFix
	warmingUp := t.clock.Since(t.startedAt) < t.opts.MaxAge
	t.mu.Unlock()

	if hadFix {
		t.logger.Debug("position poll failed, keeping last fix", "error", err)
		return
	}
	if !errors.Is(err, domain.ErrPositionUnavailable) {
		t.logger.Warn("position source failed", "error", err)
	}
	if !warmingUp {
		t.noticeOnce.Do(func() {
			t.view.Notify(domain.Notice{Level: domain.NoticeWarning, Message: FallbackNotice})
		})
	}
	if t.Update(t.opts.Fallback) {
		t.metrics.PositionUpdates.WithLabelValues("fallback").Inc()
	}
}

// Update records c as the current position. It returns false when c is
// bit-identical to the last recorded coordinate, in which case nothing else
// happens.
func (t *Tracker) Update(c domain.Coordinate) bool {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if t.hasCurrent && t.current.Same(c) {
		t.mu.Unlock()
		t.metrics.PositionUpdates.WithLabelValues("duplicate").Inc()
		return false
	}
	t.current = c
	t.hasCurrent = true
	subs := make([]func(domain.Coordinate), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	t.metrics.PositionUpdates.WithLabelValues("recorded").Inc()
	t.view.SetMarker(domain.MarkerUser, c, UserMarkerLabel)
	if t.autoCenter.Load() {
		t.view.SetView(c, t.opts.Zoom)
	}
	for _, fn := range subs {
		fn(c)
	}
	return true
}

// Current returns the last recorded position.
func (t *Tracker) Current() (domain.Coordinate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.hasCurrent
}

// AutoCenter reports whether updates recenter the camera.
func (t *Tracker) AutoCenter() bool { return t.autoCenter.Load() }

// SetAutoCenter toggles camera recentering. Enabling it recenters on the
// current position immediately.
func (t *Tracker) SetAutoCenter(enabled bool) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	was := t.autoCenter.Swap(enabled)
	if !enabled || was {
		return
	}
	if c, ok := t.Current(); ok {
		t.view.SetView(c, t.opts.Zoom)
	}
}

// Subscribe registers fn to receive every recorded position. The returned
// function removes the subscription.
func (t *Tracker) Subscribe(fn func(domain.Coordinate)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers, id)
	}
}
