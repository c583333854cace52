package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	handlersPkg "github.com/likecoin/likecoin-button/internal/handlers"
	"github.com/likecoin/likecoin-button/internal/httpx"
	"github.com/likecoin/likecoin-button/internal/likecoin"
	mw "github.com/likecoin/likecoin-button/internal/middleware"
	"github.com/likecoin/likecoin-button/internal/observability"
	"github.com/likecoin/likecoin-button/internal/referrer"
	"github.com/likecoin/likecoin-button/internal/widget"
)

const (
	pageTitleSuffix = "LikeCoin Widget By LikerLand"
	openWindowEvent = "likebutton:open-window"
	probeMaxAge     = 365 * 24 * 60 * 60
)

// ButtonPageHandler renders the embed page and starts a widget for this page load.
func (a *app) ButtonPageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := mw.Lang(r)
	logger := observability.FromContext(ctx)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	rc := referrer.FromRequest(r, a.clock.Now())

	creator, err := widget.LoadCreator(ctx, a.client, id, rc.SocialType(), referrer.ParseAmount(chi.URLParam(r, "amount")))
	if err != nil {
		logger.Warn("load creator failed", zap.String("button_id", id), zap.Error(err))
		a.renderNotFound(w, r, lang)
		return
	}

	sess, err := a.client.NewSession()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInternal, "cannot start widget session", http.StatusInternalServerError))
		return
	}
	wd, err := widget.New(widget.Options{
		ID:       id,
		Creator:  creator,
		Context:  rc,
		API:      sess,
		Clock:    a.clock,
		Logger:   a.logger,
		Recorder: a.metrics,
		Links: widget.Links{
			LikeCoHostname:   a.cfg.API.LikeCoHostname,
			LikerLandURLBase: a.cfg.API.LikerLandURLBase,
		},
		DebounceDelay:      a.cfg.Widget.Debounce,
		CooldownStartDelay: a.cfg.Widget.CooldownStartDelay,
		CooldownTick:       a.cfg.Widget.CooldownTick,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidWidget, err.Error(), http.StatusBadRequest))
		return
	}
	if err := a.registry.Put(wd); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnavailable, "server is shutting down", http.StatusServiceUnavailable))
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, a.cfg.API.Timeout)
	defer cancel()
	var g errgroup.Group
	g.Go(func() error { return wd.Sync(syncCtx) })
	g.Go(func() error {
		wd.RecordRead(syncCtx)
		return nil
	})
	// sync failures are logged by the widget and leave the defaults in place
	_ = g.Wait()

	a.setCookieProbe(w)
	view := a.buttonView(r, wd)
	render(w, r, http.StatusOK, handlersPkg.PageData{
		Title:     view.DisplayName + " | " + pageTitleSuffix,
		Lang:      lang,
		Analytics: a.analytics,
		Path:      r.URL.Path,
		Button:    &view,
	})
}

// StateHandler returns the current state as a fragment, or as JSON for API clients.
func (a *app) StateHandler(w http.ResponseWriter, r *http.Request) {
	wd, ok := a.lookup(w, r)
	if !ok {
		return
	}
	a.respond(w, r, wd)
}

// TimezoneHandler takes the viewer's UTC offset from the browser and loads the super-like
// status that depends on it.
func (a *app) TimezoneHandler(w http.ResponseWriter, r *http.Request) {
	wd, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if !wd.SetTimezone(r.FormValue("tz")) {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidTimezone, "tz must be a UTC offset in hours", http.StatusBadRequest))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.cfg.API.Timeout)
	defer cancel()
	if err := wd.RefreshSuperLike(ctx); errors.Is(err, widget.ErrClosed) {
		a.writeWidgetError(w, r, err)
		return
	}
	a.respond(w, r, wd)
}

// LikeHandler handles a like click.
func (a *app) LikeHandler(w http.ResponseWriter, r *http.Request) {
	wd, ok := a.lookup(w, r)
	if !ok {
		return
	}
	outcome, err := wd.Like()
	if err != nil {
		a.writeWidgetError(w, r, err)
		return
	}
	observability.FromContext(r.Context()).Debug("like click", zap.String("outcome", outcome.String()))
	a.respond(w, r, wd)
}

// BookmarkHandler toggles the page bookmark.
func (a *app) BookmarkHandler(w http.ResponseWriter, r *http.Request) {
	wd, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := wd.ToggleBookmark(r.Context()); err != nil && (errors.Is(err, widget.ErrClosed) || !mw.IsHTMX(r.Context())) {
		a.writeWidgetError(w, r, err)
		return
	}
	a.respond(w, r, wd)
}

// FollowHandler follows the creator.
func (a *app) FollowHandler(w http.ResponseWriter, r *http.Request) {
	wd, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := wd.ToggleFollow(r.Context()); err != nil && (errors.Is(err, widget.ErrClosed) || !mw.IsHTMX(r.Context())) {
		a.writeWidgetError(w, r, err)
		return
	}
	a.respond(w, r, wd)
}

// SignUpHandler opens registration.
func (a *app) SignUpHandler(w http.ResponseWriter, r *http.Request) {
	a.launch(w, r, func(l widget.Launcher, opts widget.LaunchOptions) widget.Launch { return l.SignUp(opts) })
}

// SuperLikeHandler opens the creator's super-like page.
func (a *app) SuperLikeHandler(w http.ResponseWriter, r *http.Request) {
	a.launch(w, r, func(l widget.Launcher, _ widget.LaunchOptions) widget.Launch { return l.SuperLikePage() })
}

// StatsHandler opens the liker list.
func (a *app) StatsHandler(w http.ResponseWriter, r *http.Request) {
	a.launch(w, r, func(l widget.Launcher, opts widget.LaunchOptions) widget.Launch { return l.LikeStats(opts) })
}

// CivicLikerHandler opens the Civic Liker page.
func (a *app) CivicLikerHandler(w http.ResponseWriter, r *http.Request) {
	a.launch(w, r, func(l widget.Launcher, _ widget.LaunchOptions) widget.Launch { return l.CivicLiker() })
}

func (a *app) launch(w http.ResponseWriter, r *http.Request, build func(widget.Launcher, widget.LaunchOptions) widget.Launch) {
	wd, ok := a.lookup(w, r)
	if !ok {
		return
	}
	current := mw.HTMXFrom(r.Context()).CurrentURL
	if current == "" {
		current = r.FormValue("current_url")
	}
	l := build(wd.Launcher(), widget.LaunchOptions{
		NewWindow:  r.FormValue("new_window") != "0",
		CurrentURL: current,
	})

	if !mw.IsHTMX(r.Context()) {
		httpx.WriteJSON(w, http.StatusOK, l)
		return
	}
	if !l.NewWindow {
		w.Header().Set("HX-Redirect", l.URL)
		w.WriteHeader(http.StatusOK)
		return
	}
	raw, err := json.Marshal(map[string]widget.Launch{openWindowEvent: l})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInternal, "cannot encode launch", http.StatusInternalServerError))
		return
	}
	w.Header().Set("HX-Trigger", string(raw))
	w.WriteHeader(http.StatusOK)
}

// lookup finds the widget named by the sid form or query value. The widget must belong to
// the {id} in the path.
func (a *app) lookup(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	sid := strings.TrimSpace(r.FormValue("sid"))
	wd, err := a.registry.Get(sid)
	if err != nil || wd.ID() != chi.URLParam(r, "id") {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeWidgetNotFound, "widget session not found or expired", http.StatusNotFound))
		return nil, false
	}
	return wd, true
}

func (a *app) writeWidgetError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, widget.ErrClosed) {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeWidgetClosed, "widget session has ended", http.StatusGone))
		return
	}
	status := http.StatusBadGateway
	if errors.Is(err, likecoin.ErrMissingBookmarkID) {
		status = http.StatusConflict
	}
	httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeUpstream, err.Error(), status))
}

type stateResponse struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sid"`
	State     widget.State `json:"state"`
}

func (a *app) respond(w http.ResponseWriter, r *http.Request, wd *widget.Widget) {
	if wantsJSON(r) {
		httpx.WriteJSON(w, http.StatusOK, stateResponse{ID: wd.ID(), SessionID: wd.SessionID(), State: wd.Snapshot()})
		return
	}
	renderTemplate(w, r, http.StatusOK, "frag_button", a.buttonView(r, wd))
}

func (a *app) buttonView(r *http.Request, wd *widget.Widget) handlersPkg.ButtonView {
	sid := wd.SessionID()
	view := handlersPkg.BuildButtonView(i18nBundle, mw.Lang(r), wd.Creator(), wd.Snapshot(), sid, a.sessions.CSRFToken(sid))
	view.AwaitTimezone = !wd.Context().ClientTimezone
	return view
}

func (a *app) renderNotFound(w http.ResponseWriter, r *http.Request, lang string) {
	render(w, r, http.StatusNotFound, handlersPkg.PageData{
		Title:     pageTitleSuffix,
		Lang:      lang,
		Analytics: a.analytics,
		Path:      r.URL.Path,
		Message:   i18nBundle.T(lang, "NotFound"),
	})
}

// setCookieProbe marks the browser; the next page load carrying it proves cookie support.
func (a *app) setCookieProbe(w http.ResponseWriter) {
	c := &http.Cookie{
		Name:     referrer.CookieProbe,
		Value:    "1",
		Path:     "/",
		MaxAge:   probeMaxAge,
		SameSite: http.SameSiteLaxMode,
	}
	if a.cfg.IsProd() {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, c)
}

func wantsJSON(r *http.Request) bool {
	if mw.IsHTMX(r.Context()) {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
