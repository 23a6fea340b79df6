// Package wsfeed implements domain.PositionSource over a websocket telemetry
// stream. The stream pushes JSON readings; the most recent one is served to
// the tracker as long as it is fresh.
package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Reading is one telemetry frame. Error is set when the device reports that
// positioning was denied or failed.
type Reading struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"` // meters
	TS       int64   `json:"ts,omitempty"`       // device time, Unix milliseconds
	Error    string  `json:"error,omitempty"`
}

// Option customizes a Feed.
type Option func(*Feed)

// WithClock sets the clock used for staleness checks and reconnect backoff.
func WithClock(c clockwork.Clock) Option {
	return func(f *Feed) { f.clock = c }
}

// Feed keeps the latest reading from a telemetry websocket.
type Feed struct {
	url    string
	clock  clockwork.Clock
	logger *slog.Logger

	mu        sync.Mutex
	last      domain.Coordinate
	lastAt    time.Time
	hasLast   bool
	lastErr   string
	connected bool
}

// New creates a Feed for rawURL. The URL is requested with highAccuracy=true.
func New(rawURL string, logger *slog.Logger, opts ...Option) (*Feed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url scheme must be ws or wss, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set("highAccuracy", "true")
	u.RawQuery = q.Encode()

	f := &Feed{
		url:    u.String(),
		clock:  clockwork.NewRealClock(),
		logger: logger.With("component", "position_feed"),
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Run connects to the feed and reconnects with exponential backoff until ctx
// is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		received, err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if received {
			backoff = initialBackoff
		}
		f.logger.Warn("position feed disconnected", "error", err, "retry_in", backoff)
		if !sleepWithContext(ctx, f.clock, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// session reads readings until the connection fails. It reports whether at
// least one reading was received.
func (f *Feed) session(ctx context.Context) (bool, error) {
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	f.setConnected(true)
	defer f.setConnected(false)
	f.logger.Info("position feed connected")

	received := false
	for {
		var r Reading
		if err := wsjson.Read(ctx, conn, &r); err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				return received, errors.New("closed by peer")
			}
			return received, err
		}
		received = true
		f.record(r)
	}
}

func (f *Feed) record(r Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Error != "" {
		f.hasLast = false
		f.lastErr = r.Error
		return
	}
	c := domain.Coordinate{Lat: r.Lat, Lng: r.Lng}
	if !c.Valid() {
		f.logger.Debug("ignoring invalid reading", "lat", r.Lat, "lng", r.Lng)
		return
	}
	f.last = c
	f.lastAt = f.clock.Now()
	f.hasLast = true
	f.lastErr = ""
}

func (f *Feed) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

// Connected reports whether the feed currently holds an open connection.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// CurrentPosition returns the latest reading if it is no older than maxAge.
func (f *Feed) CurrentPosition(ctx context.Context, maxAge time.Duration) (domain.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %v", domain.ErrPositionUnavailable, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lastErr != "" {
		return domain.Coordinate{}, fmt.Errorf("%w: %s", domain.ErrPositionUnavailable, f.lastErr)
	}
	if !f.hasLast {
		return domain.Coordinate{}, fmt.Errorf("%w: no reading", domain.ErrPositionUnavailable)
	}
	if age := f.clock.Since(f.lastAt); maxAge > 0 && age > maxAge {
		return domain.Coordinate{}, fmt.Errorf("%w: reading is %s old", domain.ErrPositionUnavailable, age.Round(time.Millisecond))
	}
	return f.last, nil
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
