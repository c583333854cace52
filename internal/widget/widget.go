// Package widget holds the per-page-load like button state machine: debounced like
// batching, the super-like cooldown, bookmark and follow toggles and status sync.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/clock"
	"github.com/likecoin/likecoin-button/internal/likecoin"
	"github.com/likecoin/likecoin-button/internal/referrer"
	"github.com/likecoin/likecoin-button/internal/requestctx"
)

// Default timings of the button interactions.
const (
	DefaultDebounce           = 500 * time.Millisecond
	DefaultCooldownStartDelay = 3 * time.Second
	DefaultCooldownTick       = 16 * time.Millisecond
)

// ErrClosed is returned by operations on a widget after Close.
var ErrClosed = errors.New("widget: closed")

// API is the subset of the LikeCoin client a widget talks to. *likecoin.Session satisfies it.
type API interface {
	GetLikeButtonMyStatus(ctx context.Context, id string, meta likecoin.RequestMeta) (likecoin.MyStatus, error)
	GetLikeButtonSelfCount(ctx context.Context, id, referrer string) (likecoin.SelfCount, error)
	GetLikeButtonTotalCount(ctx context.Context, id, referrer string) (likecoin.TotalCount, error)
	GetSuperLikeMyStatus(ctx context.Context, tz, referrer string) (likecoin.SuperLikeStatus, error)
	PostLikeButton(ctx context.Context, id string, count int, meta likecoin.RequestMeta) error
	PostLikeButtonReadEvent(ctx context.Context, id string, meta likecoin.RequestMeta) error
	PostSuperLike(ctx context.Context, id string, req likecoin.SuperLikeRequest, meta likecoin.RequestMeta) error
	GetMyBookmark(ctx context.Context, pageURL string) (likecoin.Bookmark, error)
	AddMyBookmark(ctx context.Context, pageURL string, meta likecoin.RequestMeta) (likecoin.Bookmark, error)
	DeleteMyBookmark(ctx context.Context, bookmarkID string, meta likecoin.RequestMeta) error
	GetMyFollower(ctx context.Context, id string) (likecoin.Follower, error)
	AddMyFollower(ctx context.Context, id string, meta likecoin.RequestMeta) error
}

// Recorder receives interaction counters.
type Recorder interface {
	RecordLikeFlush(count int)
	RecordSuperLike(result string)
	RecordToggle(kind, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLikeFlush(int)         {}
func (nopRecorder) RecordSuperLike(string)      {}
func (nopRecorder) RecordToggle(string, string) {}

// Options configures New.
type Options struct {
	ID                 string
	Creator            Creator
	Context            referrer.Context
	API                API
	Clock              clock.Clock
	Logger             *zap.Logger
	Recorder           Recorder
	Links              Links
	DebounceDelay      time.Duration
	CooldownStartDelay time.Duration
	CooldownTick       time.Duration
}

// Widget is one page load's like button. All methods are safe for concurrent use.
type Widget struct {
	id       string
	creator  Creator
	rc       referrer.Context
	api      API
	clock    clock.Clock
	logger   *zap.Logger
	recorder Recorder
	links    Links

	startDelay time.Duration
	tickEvery  time.Duration

	mu       sync.Mutex
	st       state
	debounce *debouncer
	delay    clock.Timer
	tick     clock.Timer
	closed   bool

	tz        string
	// tzPending holds back super-like status until the viewer's own offset is known
	tzPending bool

	bg sync.WaitGroup
}

// New constructs a widget in its initial state. Call Sync to load the viewer's status.
func New(opts Options) (*Widget, error) {
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		return nil, errors.New("widget: id is required")
	}
	if opts.API == nil {
		return nil, errors.New("widget: api is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounce
	}
	if opts.CooldownStartDelay <= 0 {
		opts.CooldownStartDelay = DefaultCooldownStartDelay
	}
	if opts.CooldownTick <= 0 {
		opts.CooldownTick = DefaultCooldownTick
	}
	if opts.Creator.ID == "" {
		opts.Creator.ID = id
	}

	w := &Widget{
		id:      id,
		creator: opts.Creator,
		rc:      opts.Context,
		api:     opts.API,
		clock:   opts.Clock,
		logger: opts.Logger.Named("widget").With(
			zap.String("button_id", id),
			zap.String("session_id", opts.Context.SessionID.String()),
		),
		recorder:   opts.Recorder,
		links:      opts.Links,
		startDelay: opts.CooldownStartDelay,
		tickEvery:  opts.CooldownTick,
		st:         newState(opts.Context.ParentSuperLikeID, opts.Context.CookieSupport),
		tz:         opts.Context.Timezone,
		tzPending:  !opts.Context.ClientTimezone,
	}
	w.debounce = newDebouncer(opts.Clock, opts.DebounceDelay, w.flush)
	return w, nil
}

// ID is the liker id the button belongs to.
func (w *Widget) ID() string { return w.id }

// SessionID keys the widget in the registry.
func (w *Widget) SessionID() string { return w.rc.SessionID.String() }

// Context returns the page-load context with the viewer's current UTC offset.
func (w *Widget) Context() referrer.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	rc := w.rc
	rc.Timezone = w.tz
	rc.ClientTimezone = !w.tzPending
	return rc
}

// SetTimezone replaces the UTC offset sent with super-like calls. The embed page learns
// it from the browser after the first render; an invalid offset is ignored.
func (w *Widget) SetTimezone(param string) bool {
	tz, ok := referrer.ParseTimezone(param)
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tz = tz
	w.tzPending = false
	return true
}

// Creator returns the profile loaded for the page.
func (w *Widget) Creator() Creator { return w.creator }

// Snapshot copies the current state.
func (w *Widget) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.snapshot()
}

// Closed reports whether Close ran.
func (w *Widget) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// RecordRead reports that the button was displayed.
func (w *Widget) RecordRead(ctx context.Context) {
	w.mu.Lock()
	meta := w.metaLocked()
	w.mu.Unlock()
	if err := w.api.PostLikeButtonReadEvent(ctx, w.id, meta); err != nil {
		w.logger.Warn("read event failed", zap.Error(err))
	}
}

// Close stops every timer and sends likes still waiting for the debounce, once.
// Further calls are no-ops.
func (w *Widget) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.debounce.stop()
	w.stopCooldownLocked()
	delta, meta := w.takeDeltaLocked()
	if delta > 0 {
		w.bg.Add(1)
	}
	w.mu.Unlock()

	if delta > 0 {
		defer w.bg.Done()
		w.postLikes(delta, meta)
	}
	return nil
}

// Wait blocks until background submissions finish.
func (w *Widget) Wait() {
	w.bg.Wait()
}

func (w *Widget) metaLocked() likecoin.RequestMeta {
	return w.rc.Meta(w.st.viewer.HasCookieSupport)
}

// background runs calls that outlive the request that triggered them.
func (w *Widget) background(fn func(ctx context.Context)) {
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		fn(requestctx.Background(w.logger))
	}()
}
