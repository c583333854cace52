package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/clock"
	"github.com/likecoin/likecoin-button/internal/config"
	"github.com/likecoin/likecoin-button/internal/i18n"
)

// fakeBackend serves the LikeCoin endpoints the embed page needs.
type fakeBackend struct {
	mu       sync.Mutex
	loggedIn bool
	posts    []string
	superTZ  []string
}

func (b *fakeBackend) record(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = append(b.posts, r.Method+" "+r.URL.Path)
}

func (b *fakeBackend) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.posts...)
}

func (b *fakeBackend) timezones() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.superTZ...)
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /api/users/id/{id}/min", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"user": id, "displayName": "<b>" + strings.ToUpper(id) + "</b>", "avatar": "https://static.like.co/" + id + ".png"})
	})
	mux.HandleFunc("GET /api/social/list/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("GET /api/like/likebutton/{id}/self", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		in := b.loggedIn
		b.mu.Unlock()
		if !in {
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, map[string]any{"liker": "viewer", "isSubscribed": false})
	})
	mux.HandleFunc("GET /api/like/likebutton/{id}/self/like", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"count": 2})
	})
	mux.HandleFunc("GET /api/like/likebutton/{id}/total", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"total": 1234})
	})
	mux.HandleFunc("GET /api/like/likebutton/{id}/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []string{"alice", "bob"})
	})
	mux.HandleFunc("POST /api/like/likebutton/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
	})
	mux.HandleFunc("POST /api/like/likebutton/{id}/{count}", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
	})
	mux.HandleFunc("GET /api/like/share/self", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.superTZ = append(b.superTZ, r.URL.Query().Get("tz"))
		b.mu.Unlock()
		writeJSON(w, map[string]any{"canSuperLike": true, "nextSuperLikeTime": -1})
	})
	mux.HandleFunc("POST /api/like/share/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
	})
	mux.HandleFunc("GET /api/like/like/suggest/info/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"title": "A Post"})
	})
	mux.HandleFunc("GET /api/reader/bookmark", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("POST /api/reader/bookmark", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		writeJSON(w, map[string]any{"id": "bm-1", "url": r.URL.Query().Get("url")})
	})
	mux.HandleFunc("GET /api/reader/follower/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"isFollowed": false})
	})
	mux.HandleFunc("POST /api/reader/follower/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
	})
	return mux
}

type testServer struct {
	handler http.Handler
	backend *fakeBackend
	clock   *clock.Fake
	app     *app
}

// newTestServer builds the router as main() does, against a fake backend.
func newTestServer(t *testing.T, loggedIn bool) *testServer {
	t.Helper()
	// ensure templates reparse each request and set correct paths
	devMode = true
	templatesDir = "../../templates"
	publicDir = "../../public"
	if _, err := parseTemplates(); err != nil {
		t.Fatalf("parseTemplates failed: %v", err)
	}
	var err error
	i18nBundle, err = i18n.Load("../../locales", "en", []string{"en", "zh"})
	require.NoError(t, err)

	backend := &fakeBackend{loggedIn: loggedIn}
	upstream := httptest.NewServer(backend.handler())
	t.Cleanup(upstream.Close)

	cfg, err := config.Load(context.Background(), config.WithoutSystemEnv(), config.WithEnvFile(""), config.WithEnvMap(map[string]string{
		"LIKEBUTTON_LIKECOIN_API":  upstream.URL,
		"LIKEBUTTON_MISC_API":      upstream.URL,
		"LIKEBUTTON_LIKERLAND_API": upstream.URL,
	}))
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a, err := newApp(cfg, zap.NewNop(), clk)
	require.NoError(t, err)
	t.Cleanup(a.registry.Close)
	return &testServer{handler: newRouter(a), backend: backend, clock: clk, app: a}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type embedded struct {
	sid  string
	csrf string
	doc  *goquery.Document
}

func (s *testServer) openButton(t *testing.T, target string) embedded {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	root := doc.Find("#likebutton")
	require.Equal(t, 1, root.Length())
	sid, _ := root.Attr("data-sid")
	rawHeaders, _ := root.Attr("hx-headers")
	var headers map[string]string
	require.NoError(t, json.Unmarshal([]byte(rawHeaders), &headers))
	require.NotEmpty(t, sid)
	require.NotEmpty(t, headers["X-CSRF-Token"])
	return embedded{sid: sid, csrf: headers["X-CSRF-Token"], doc: doc}
}

func (s *testServer) post(path string, e embedded, extra url.Values) *httptest.ResponseRecorder {
	form := url.Values{"sid": {e.sid}}
	for k, v := range extra {
		form[k] = v
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.Header.Set("X-CSRF-Token", e.csrf)
	return s.do(req)
}

func fragment(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func TestHealthzOK(t *testing.T) {
	srv := newTestServer(t, false)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
}

func TestButtonPageRendersSyncedState(t *testing.T) {
	srv := newTestServer(t, true)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/in/embed/abc/button/8?referrer=https%3A%2F%2Fexample.com%2Fpost", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors *")

	var probe *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "likebutton_cookie" {
			probe = c
		}
	}
	require.NotNil(t, probe, "cookie probe is set")

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "ABC | LikeCoin Widget By LikerLand", doc.Find("title").Text())
	assert.Equal(t, "ABC", doc.Find(".likebutton__name").Text())
	assert.Equal(t, "2", doc.Find(".likebutton__count").Text())
	assert.Equal(t, "1,234 Likes", doc.Find(".likebutton__label").Text())
	assert.Equal(t, "Follow", strings.TrimSpace(doc.Find(".likebutton__follow").Text()))
	assert.Equal(t, "Save", strings.TrimSpace(doc.Find(".likebutton__save").Text()))
	assert.Equal(t, 0, doc.Find(".likebutton__signup").Length())
	assert.Equal(t, 1, srv.app.registry.Len())

	assert.Contains(t, srv.backend.recorded(), "POST /api/like/likebutton/abc/read")
}

func TestAnonymousButtonOffersSignUp(t *testing.T) {
	srv := newTestServer(t, false)
	e := srv.openButton(t, "/in/embed/abc/button")
	assert.Equal(t, 1, e.doc.Find(".likebutton__signup").Length())
	assert.Equal(t, 0, e.doc.Find(".likebutton__save").Length())
	assert.Equal(t, 0, e.doc.Find(".likebutton__follow").Length())

	rec := srv.post("/in/embed/abc/button/signup", e, url.Values{"new_window": {"0"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("HX-Redirect"), "https://like.co/in/register?from=abc"))
}

func TestUnknownCreatorRendersNotFound(t *testing.T) {
	srv := newTestServer(t, false)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/in/embed/missing/button", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, doc.Find(".not-found p").Text(), "does not exist")
	assert.Equal(t, 0, srv.app.registry.Len())
}

func TestLikeFlowCoalescesClicks(t *testing.T) {
	srv := newTestServer(t, true)
	e := srv.openButton(t, "/in/embed/abc/button?referrer=https%3A%2F%2Fexample.com%2Fpost")

	fragment(t, srv.post("/in/embed/abc/button/like", e, nil))
	doc := fragment(t, srv.post("/in/embed/abc/button/like", e, nil))
	assert.Equal(t, "4", doc.Find(".likebutton__count").Text())

	srv.clock.Advance(500 * time.Millisecond)
	assert.Contains(t, srv.backend.recorded(), "POST /api/like/likebutton/abc/2")

	req := httptest.NewRequest(http.MethodGet, "/in/embed/abc/button/state?sid="+e.sid, nil)
	req.Header.Set("Accept", "application/json")
	rec := srv.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ID    string `json:"id"`
		State struct {
			LikeCount int `json:"likeCount"`
			LikeSent  int `json:"likeSent"`
			TotalLike int `json:"totalLike"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "abc", body.ID)
	assert.Equal(t, 4, body.State.LikeCount)
	assert.Equal(t, 4, body.State.LikeSent)
	assert.Equal(t, 1236, body.State.TotalLike)
}

func TestSuperLikeStartsPolling(t *testing.T) {
	srv := newTestServer(t, true)
	e := srv.openButton(t, "/in/embed/abc/button?tz=8")
	// the viewer starts with two likes
	for i := 0; i < 2; i++ {
		fragment(t, srv.post("/in/embed/abc/button/like", e, nil))
	}
	doc := fragment(t, srv.post("/in/embed/abc/button/like", e, nil))
	assert.Equal(t, "5", doc.Find(".likebutton__count").Text())
	assert.Equal(t, "Super Like", doc.Find(".likebutton__label").Text())

	doc = fragment(t, srv.post("/in/embed/abc/button/like", e, nil))
	root := doc.Find("#likebutton")
	assert.True(t, root.HasClass("is-super-liked"))
	poll, ok := root.Attr("hx-get")
	require.True(t, ok, "cooldown fragment polls the state route")
	assert.Equal(t, "/in/embed/abc/button/state", poll)
	_, disabled := doc.Find(".likebutton__like").Attr("disabled")
	assert.True(t, disabled)

	srv.app.registry.Close()
	assert.Contains(t, srv.backend.recorded(), "POST /api/like/share/abc")
}

func TestBookmarkAndFollow(t *testing.T) {
	srv := newTestServer(t, true)
	e := srv.openButton(t, "/in/embed/abc/button?referrer=https%3A%2F%2Fexample.com%2Fpost")

	doc := fragment(t, srv.post("/in/embed/abc/button/bookmark", e, nil))
	assert.Equal(t, "Saved", strings.TrimSpace(doc.Find(".likebutton__save").Text()))

	doc = fragment(t, srv.post("/in/embed/abc/button/follow", e, nil))
	assert.Equal(t, "Following", strings.TrimSpace(doc.Find(".likebutton__follow").Text()))

	posts := srv.backend.recorded()
	assert.Contains(t, posts, "POST /api/reader/bookmark")
	assert.Contains(t, posts, "POST /api/reader/follower/abc")
}

func TestLauncherTriggersOpenWindow(t *testing.T) {
	srv := newTestServer(t, true)
	e := srv.openButton(t, "/in/embed/abc/button?referrer=https%3A%2F%2Fexample.com%2Fpost")

	rec := srv.post("/in/embed/abc/button/stats", e, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trigger map[string]struct {
		URL        string `json:"url"`
		WindowName string `json:"windowName"`
		NewWindow  bool   `json:"newWindow"`
	}
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &trigger))
	launch := trigger["likebutton:open-window"]
	assert.Equal(t, "LIKER_LIST_STATS_WINDOW", launch.WindowName)
	assert.True(t, launch.NewWindow)
	assert.Equal(t, "/in/embed/abc/list?from=abc&referrer=https%3A%2F%2Fexample.com%2Fpost&utm_source=button", launch.URL)

	rec = srv.post("/in/embed/abc/button/civic", e, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "https://liker.land/civic?from=abc")
}

func TestWidgetRoutesRejectBadRequests(t *testing.T) {
	srv := newTestServer(t, false)
	e := srv.openButton(t, "/in/embed/abc/button")

	rec := srv.post("/in/embed/abc/button/like", embedded{sid: "nope", csrf: srv.app.sessions.CSRFToken("nope")}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"widget_not_found"`)

	rec = srv.post("/in/embed/other/button/like", embedded{sid: e.sid, csrf: e.csrf}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "widgets are bound to their button id")

	rec = srv.post("/in/embed/abc/button/like", embedded{sid: e.sid, csrf: "forged"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListPage(t *testing.T) {
	srv := newTestServer(t, false)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/in/embed/abc/list?referrer=https%3A%2F%2Fexample.com%2Fpost&show_back=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, "A Post | Likers", doc.Find("title").Text())
	assert.Equal(t, "1,234", doc.Find(".likers__total").Text())
	names := doc.Find(".likers__item a").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	assert.Equal(t, []string{"ALICE", "BOB"}, names)
	back, _ := doc.Find(".likers__back").Attr("href")
	assert.Equal(t, "/in/embed/abc/button?referrer=https%3A%2F%2Fexample.com%2Fpost", back)
}

func TestMetricsExposeWidgetGauge(t *testing.T) {
	srv := newTestServer(t, false)
	srv.openButton(t, "/in/embed/abc/button")
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "likebutton_active_widgets 1")
	assert.Contains(t, string(body), "likebutton_upstream_request_duration_seconds")
}

func TestAssetsServed(t *testing.T) {
	srv := newTestServer(t, false)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/assets/likebutton.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "likebutton:open-window")
}

func TestBrowserTimezoneReachesSuperLikeStatus(t *testing.T) {
	srv := newTestServer(t, true)
	e := srv.openButton(t, "/in/embed/abc/button?referrer=https%3A%2F%2Fexample.com%2Fpost")
	assert.Empty(t, srv.backend.timezones())
	root := e.doc.Find("#likebutton")
	assert.Equal(t, "/in/embed/abc/button/tz", root.AttrOr("hx-get", ""))
	assert.Equal(t, "load", root.AttrOr("hx-trigger", ""))

	bad := httptest.NewRequest(http.MethodGet, "/in/embed/abc/button/tz?"+url.Values{"sid": {e.sid}, "tz": {"utc"}}.Encode(), nil)
	bad.Header.Set("HX-Request", "true")
	rec := srv.do(bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"invalid_timezone"`)

	req := httptest.NewRequest(http.MethodGet, "/in/embed/abc/button/tz?"+url.Values{"sid": {e.sid}, "tz": {"8"}}.Encode(), nil)
	req.Header.Set("HX-Request", "true")
	doc := fragment(t, srv.do(req))
	assert.Equal(t, []string{"8"}, srv.backend.timezones())
	_, awaiting := doc.Find("#likebutton").Attr("hx-trigger")
	assert.False(t, awaiting)

	// the super-like itself carries the same offset
	for i := 0; i < 4; i++ {
		srv.post("/in/embed/abc/button/like", e, nil)
	}
	srv.app.registry.Close()
	assert.Contains(t, srv.backend.recorded(), "POST /api/like/share/abc")
}

func TestButtonPageWithTimezoneSyncsSuperLikeAtOnce(t *testing.T) {
	srv := newTestServer(t, false)
	e := srv.openButton(t, "/in/embed/abc/button?tz=-3.5")
	assert.Equal(t, []string{"-3.5"}, srv.backend.timezones())
	_, awaiting := e.doc.Find("#likebutton").Attr("hx-trigger")
	assert.False(t, awaiting)
}
