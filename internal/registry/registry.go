// Package registry keeps the live widgets of the server keyed by session id and
// closes the ones that sat idle past their TTL.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/clock"
	"github.com/likecoin/likecoin-button/internal/widget"
)

// DefaultTTL bounds how long an untouched widget is kept.
const DefaultTTL = 30 * time.Minute

// ErrNotFound is returned when no live widget matches a session id.
var ErrNotFound = errors.New("registry: widget not found")

// Gauge tracks the number of live widgets.
type Gauge interface {
	Set(float64)
}

// Options configures New.
type Options struct {
	TTL    time.Duration
	Clock  clock.Clock
	Logger *zap.Logger
	Gauge  Gauge
}

type entry struct {
	widget    *widget.Widget
	expiresAt time.Time
}

// Registry is an in-memory widget store with idle expiry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Clock
	logger  *zap.Logger
	gauge   Gauge
	closed  bool
}

// New constructs an empty registry.
func New(opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]entry),
		ttl:     opts.TTL,
		clock:   opts.Clock,
		logger:  opts.Logger.Named("registry"),
		gauge:   opts.Gauge,
	}
}

// Put stores w under its session id. A widget already stored under that id is closed.
func (r *Registry) Put(w *widget.Widget) error {
	if w == nil {
		return errors.New("registry: nil widget")
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = w.Close()
		return widget.ErrClosed
	}
	id := w.SessionID()
	prev, replaced := r.entries[id]
	r.entries[id] = entry{widget: w, expiresAt: r.clock.Now().Add(r.ttl)}
	r.updateGaugeLocked()
	r.mu.Unlock()

	if replaced && prev.widget != w {
		_ = prev.widget.Close()
	}
	return nil
}

// Get returns the widget stored under sessionID and extends its TTL.
func (r *Registry) Get(sessionID string) (*widget.Widget, error) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sessionID]
	if !ok || !now.Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	e.expiresAt = now.Add(r.ttl)
	r.entries[sessionID] = e
	return e.widget, nil
}

// Len reports how many widgets are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CleanupExpired closes and removes idle widgets, returning how many were evicted.
func (r *Registry) CleanupExpired() int {
	now := r.clock.Now()
	r.mu.Lock()
	var expired []*widget.Widget
	for id, e := range r.entries {
		if now.Before(e.expiresAt) {
			continue
		}
		delete(r.entries, id)
		expired = append(expired, e.widget)
	}
	r.updateGaugeLocked()
	r.mu.Unlock()

	for _, w := range expired {
		_ = w.Close()
	}
	if len(expired) > 0 {
		r.logger.Debug("evicted idle widgets", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps expired widgets every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := r.clock.TickFunc(interval, func() { r.CleanupExpired() })
	<-ctx.Done()
	t.Stop()
}

// Close closes every held widget and rejects later Puts.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	widgets := make([]*widget.Widget, 0, len(r.entries))
	for id, e := range r.entries {
		widgets = append(widgets, e.widget)
		delete(r.entries, id)
	}
	r.updateGaugeLocked()
	r.mu.Unlock()

	for _, w := range widgets {
		_ = w.Close()
	}
	for _, w := range widgets {
		w.Wait()
	}
}

func (r *Registry) updateGaugeLocked() {
	if r.gauge != nil {
		r.gauge.Set(float64(len(r.entries)))
	}
}
