package likecoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"
)

const defaultTimeout = 8 * time.Second

// Header names understood by the like backend.
const (
	HeaderDocumentReferrer = "Document-Referrer"
	HeaderSessionID        = "X-Likecoin-Session-ID"
	HeaderButtonType       = "X-Likecoin-Button-Type"
)

// ErrMissingBookmarkID is returned when a bookmark deletion has nothing to delete.
var ErrMissingBookmarkID = errors.New("likecoin: missing bookmark id")

var tracer = otel.Tracer("github.com/likecoin/likecoin-button/internal/likecoin")

// APIError reports a non-2xx response from an upstream endpoint.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("likecoin: %s status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("likecoin: %s status %d: %s", e.Op, e.Status, e.Body)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Observer receives the latency of every upstream call.
type Observer interface {
	ObserveUpstream(op, outcome string, elapsed time.Duration)
}

// Options configures NewClient. Empty base URLs make the matching endpoints serve canned data.
type Options struct {
	LikeCoinAPI  string
	MiscAPI      string
	LikerLandAPI string
	Timeout      time.Duration
	Transport    http.RoundTripper
	Observer     Observer
}

// Client issues the anonymous calls against the LikeCoin backends. Calls that need the
// viewer's cookies go through a Session.
type Client struct {
	likecoinBase  string
	miscBase      string
	likerLandBase string
	http          *http.Client
	observer      Observer
}

// RequestMeta tags a widget call with where the click came from.
type RequestMeta struct {
	Referrer         string
	DocumentReferrer string
	SessionID        string
	ButtonType       string
	CookieSupport    *bool
}

// NewClient constructs an API client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		likecoinBase:  trimBase(opts.LikeCoinAPI),
		miscBase:      trimBase(opts.MiscAPI),
		likerLandBase: trimBase(opts.LikerLandAPI),
		http: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		observer: opts.Observer,
	}
}

// Session is a Client bound to one widget's cookie jar.
type Session struct {
	*Client
	jar  http.CookieJar
	http *http.Client
}

// NewSession returns a session with an empty public-suffix aware cookie jar.
func (c *Client) NewSession() (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("likecoin: cookie jar: %w", err)
	}
	return &Session{
		Client: c,
		jar:    jar,
		http: &http.Client{
			Timeout:   c.http.Timeout,
			Transport: c.http.Transport,
			Jar:       jar,
		},
	}, nil
}

// Jar exposes the session's cookie jar.
func (s *Session) Jar() http.CookieJar { return s.jar }

// UserMin is the public profile of a liker.
type UserMin struct {
	User                   string `json:"user"`
	DisplayName            string `json:"displayName"`
	Avatar                 string `json:"avatar"`
	IsPreRegCivicLiker     bool   `json:"isPreRegCivicLiker"`
	IsSubscribedCivicLiker bool   `json:"isSubscribedCivicLiker"`
	CivicLikerSince        int64  `json:"civicLikerSince"`
}

// SocialList maps platform names to their public link payloads.
type SocialList map[string]any

// MyStatus is the viewer's sign-in status for one button.
type MyStatus struct {
	Liker                 string `json:"liker"`
	IsSubscribed          bool   `json:"isSubscribed"`
	IsTrialSubscriber     bool   `json:"isTrialSubscriber"`
	ServerCookieSupported *bool  `json:"serverCookieSupported"`
}

// SelfCount is how many times the viewer liked the referrer.
type SelfCount struct {
	Count int    `json:"count"`
	Liker string `json:"liker"`
}

// TotalCount is the all-time like total of the referrer.
type TotalCount struct {
	Total int `json:"total"`
}

// SuperLikeStatus reports whether the viewer may super-like now.
type SuperLikeStatus struct {
	CanSuperLike       bool              `json:"canSuperLike"`
	LastSuperLikeInfos []json.RawMessage `json:"lastSuperLikeInfos"`
	NextSuperLikeTime  int64             `json:"nextSuperLikeTime"`
	Cooldown           float64           `json:"cooldown"`
}

// SuperLikeInfo describes one super-like.
type SuperLikeInfo struct {
	ID        string `json:"id"`
	Liker     string `json:"liker"`
	URL       string `json:"url"`
	Timestamp int64  `json:"ts"`
}

// Bookmark is a saved reader bookmark.
type Bookmark struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Follower reports whether the viewer follows a creator.
type Follower struct {
	IsFollowed bool `json:"isFollowed"`
}

// SuperLikeRequest is the body of a super-like submission.
type SuperLikeRequest struct {
	Referrer          string `json:"referrer"`
	Timezone          string `json:"tz"`
	ParentSuperLikeID string `json:"parentSuperLikeID"`
}

// GetUserMin loads the public profile of id.
func (c *Client) GetUserMin(ctx context.Context, id string) (UserMin, error) {
	if c.likecoinBase == "" {
		return fakeUserMin(id), nil
	}
	var out UserMin
	err := c.do(ctx, c.http, call{
		op:   "get_user_min",
		base: c.likecoinBase,
		path: []string{"api", "users", "id", id, "min"},
	}, &out)
	return out, err
}

// GetSocialList loads the creator's linked platforms.
func (c *Client) GetSocialList(ctx context.Context, id, buttonType string) (SocialList, error) {
	if c.likecoinBase == "" {
		return SocialList{}, nil
	}
	var out SocialList
	err := c.do(ctx, c.http, call{
		op:    "get_social_list",
		base:  c.likecoinBase,
		path:  []string{"api", "social", "list", id},
		query: url.Values{"type": {buttonType}},
	}, &out)
	return out, err
}

// GetLikeButtonTotalCount loads the total like count of a referrer.
func (c *Client) GetLikeButtonTotalCount(ctx context.Context, id, referrer string) (TotalCount, error) {
	if c.miscBase == "" {
		return TotalCount{}, nil
	}
	var out TotalCount
	err := c.do(ctx, c.http, call{
		op:    "get_total_count",
		base:  c.miscBase,
		path:  []string{"api", "like", "likebutton", id, "total"},
		query: url.Values{"referrer": {referrer}},
	}, &out)
	return out, err
}

// GetLikeButtonLikerList loads the likers of a referrer.
func (c *Client) GetLikeButtonLikerList(ctx context.Context, id, referrer string) ([]string, error) {
	if c.miscBase == "" {
		return fakeLikerList(id), nil
	}
	var out []string
	err := c.do(ctx, c.http, call{
		op:    "get_liker_list",
		base:  c.miscBase,
		path:  []string{"api", "like", "likebutton", id, "list"},
		query: url.Values{"referrer": {referrer}},
	}, &out)
	return out, err
}

// GetSuperLikeInfo loads one super-like by id.
func (c *Client) GetSuperLikeInfo(ctx context.Context, id string) (SuperLikeInfo, error) {
	if c.miscBase == "" {
		return SuperLikeInfo{ID: id}, nil
	}
	var out SuperLikeInfo
	err := c.do(ctx, c.http, call{
		op:   "get_super_like_info",
		base: c.miscBase,
		path: []string{"api", "like", "share", id},
	}, &out)
	return out, err
}

// GetPageTitle asks the backend for the title of pageURL. Any failure yields "".
func (c *Client) GetPageTitle(ctx context.Context, pageURL string) string {
	if c.miscBase == "" || strings.TrimSpace(pageURL) == "" {
		return ""
	}
	var out struct {
		Title string `json:"title"`
	}
	err := c.do(ctx, c.http, call{
		op:            "get_page_title",
		base:          c.miscBase,
		path:          []string{"api", "like", "like", "suggest", "info"},
		trailingSlash: true,
		query:         url.Values{"url": {pageURL}},
	}, &out)
	if err != nil {
		return ""
	}
	return out.Title
}

// GetLikeButtonMyStatus loads the viewer's sign-in status for the button.
func (s *Session) GetLikeButtonMyStatus(ctx context.Context, id string, meta RequestMeta) (MyStatus, error) {
	if s.miscBase == "" {
		return MyStatus{}, nil
	}
	query := meta.query()
	query.Set("show_count", "0")
	var out MyStatus
	err := s.do(ctx, s.http, call{
		op:    "get_my_status",
		base:  s.miscBase,
		path:  []string{"api", "like", "likebutton", id, "self"},
		query: query,
		meta:  &meta,
	}, &out)
	return out, err
}

// GetLikeButtonSelfCount loads how many times the viewer liked the referrer.
func (s *Session) GetLikeButtonSelfCount(ctx context.Context, id, referrer string) (SelfCount, error) {
	if s.miscBase == "" {
		return SelfCount{}, nil
	}
	var out SelfCount
	err := s.do(ctx, s.http, call{
		op:    "get_self_count",
		base:  s.miscBase,
		path:  []string{"api", "like", "likebutton", id, "self", "like"},
		query: url.Values{"referrer": {referrer}},
	}, &out)
	return out, err
}

// PostLikeButton submits count likes in one call.
func (s *Session) PostLikeButton(ctx context.Context, id string, count int, meta RequestMeta) error {
	if s.miscBase == "" {
		return nil
	}
	return s.do(ctx, s.http, call{
		op:     "post_like",
		method: http.MethodPost,
		base:   s.miscBase,
		path:   []string{"api", "like", "likebutton", id, strconv.Itoa(count)},
		query:  meta.query(),
		meta:   &meta,
		body:   struct{}{},
	}, nil)
}

// PostLikeButtonReadEvent records that the button was displayed.
func (s *Session) PostLikeButtonReadEvent(ctx context.Context, id string, meta RequestMeta) error {
	if s.miscBase == "" {
		return nil
	}
	return s.do(ctx, s.http, call{
		op:     "post_read_event",
		method: http.MethodPost,
		base:   s.miscBase,
		path:   []string{"api", "like", "likebutton", id, "read"},
		query:  meta.query(),
		meta:   &meta,
		body:   struct{}{},
	}, nil)
}

// PostLikeLink records a like of a link shared on the referrer page. payload is passed
// through as the JSON body; empty means {}.
func (s *Session) PostLikeLink(ctx context.Context, id string, payload json.RawMessage, meta RequestMeta) error {
	if s.miscBase == "" {
		return nil
	}
	var body any = struct{}{}
	if len(payload) > 0 {
		body = payload
	}
	return s.do(ctx, s.http, call{
		op:     "post_like_link",
		method: http.MethodPost,
		base:   s.miscBase,
		path:   []string{"api", "like", "likelink", id},
		query:  url.Values{"referrer": {meta.Referrer}},
		meta:   &meta,
		body:   body,
	}, nil)
}

// PostSuperLike submits a super-like of the referrer.
func (s *Session) PostSuperLike(ctx context.Context, id string, req SuperLikeRequest, meta RequestMeta) error {
	if s.miscBase == "" {
		return nil
	}
	return s.do(ctx, s.http, call{
		op:     "post_super_like",
		method: http.MethodPost,
		base:   s.miscBase,
		path:   []string{"api", "like", "share", id},
		meta:   &meta,
		body:   req,
	}, nil)
}

// GetSuperLikeMyStatus loads the viewer's super-like availability.
func (s *Session) GetSuperLikeMyStatus(ctx context.Context, tz, referrer string) (SuperLikeStatus, error) {
	if s.miscBase == "" {
		return SuperLikeStatus{NextSuperLikeTime: -1}, nil
	}
	var out SuperLikeStatus
	err := s.do(ctx, s.http, call{
		op:    "get_super_like_status",
		base:  s.miscBase,
		path:  []string{"api", "like", "share", "self"},
		query: url.Values{"tz": {tz}, "referrer": {referrer}},
	}, &out)
	return out, err
}

// GetMyBookmark loads the viewer's bookmark of pageURL.
func (s *Session) GetMyBookmark(ctx context.Context, pageURL string) (Bookmark, error) {
	if s.likerLandBase == "" {
		return Bookmark{}, nil
	}
	var out Bookmark
	err := s.do(ctx, s.http, call{
		op:    "get_bookmark",
		base:  s.likerLandBase,
		path:  []string{"api", "reader", "bookmark"},
		query: url.Values{"url": {pageURL}},
	}, &out)
	return out, err
}

// AddMyBookmark bookmarks pageURL and returns the new bookmark.
func (s *Session) AddMyBookmark(ctx context.Context, pageURL string, meta RequestMeta) (Bookmark, error) {
	if s.likerLandBase == "" {
		return fakeBookmark(pageURL), nil
	}
	var out Bookmark
	err := s.do(ctx, s.http, call{
		op:     "add_bookmark",
		method: http.MethodPost,
		base:   s.likerLandBase,
		path:   []string{"api", "reader", "bookmark"},
		query:  url.Values{"url": {pageURL}},
		meta:   &meta,
	}, &out)
	return out, err
}

// DeleteMyBookmark removes a bookmark by id.
func (s *Session) DeleteMyBookmark(ctx context.Context, bookmarkID string, meta RequestMeta) error {
	bookmarkID = strings.TrimSpace(bookmarkID)
	if bookmarkID == "" {
		return ErrMissingBookmarkID
	}
	if s.likerLandBase == "" {
		return nil
	}
	return s.do(ctx, s.http, call{
		op:     "delete_bookmark",
		method: http.MethodDelete,
		base:   s.likerLandBase,
		path:   []string{"api", "reader", "bookmark", bookmarkID},
		meta:   &meta,
	}, nil)
}

// GetMyFollower reports whether the viewer follows id.
func (s *Session) GetMyFollower(ctx context.Context, id string) (Follower, error) {
	if s.likerLandBase == "" {
		return Follower{}, nil
	}
	var out Follower
	err := s.do(ctx, s.http, call{
		op:   "get_follower",
		base: s.likerLandBase,
		path: []string{"api", "reader", "follower", id},
	}, &out)
	return out, err
}

// AddMyFollower follows id.
func (s *Session) AddMyFollower(ctx context.Context, id string, meta RequestMeta) error {
	if s.likerLandBase == "" {
		return nil
	}
	return s.do(ctx, s.http, call{
		op:     "add_follower",
		method: http.MethodPost,
		base:   s.likerLandBase,
		path:   []string{"api", "reader", "follower", id},
		meta:   &meta,
	}, nil)
}

type call struct {
	op            string
	method        string
	base          string
	path          []string
	trailingSlash bool
	query         url.Values
	meta          *RequestMeta
	body          any
}

func (c call) endpoint() string {
	var b strings.Builder
	b.WriteString(c.base)
	for _, seg := range c.path {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	if c.trailingSlash {
		b.WriteByte('/')
	}
	if len(c.query) > 0 {
		b.WriteByte('?')
		b.WriteString(c.query.Encode())
	}
	return b.String()
}

func (c *Client) do(ctx context.Context, hc *http.Client, cl call, out any) (err error) {
	method := cl.method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := cl.endpoint()

	ctx, span := tracer.Start(ctx, "likecoin."+cl.op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("likecoin.op", cl.op),
	)
	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if c.observer != nil {
			c.observer.ObserveUpstream(cl.op, outcome, time.Since(started))
		}
	}()

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.meta != nil {
		cl.meta.applyHeaders(req.Header)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("likecoin: %s: %w", cl.op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: cl.op, Status: resp.StatusCode, Body: drainError(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("likecoin: %s: decode: %w", cl.op, err)
	}
	return nil
}

func (m RequestMeta) query() url.Values {
	q := url.Values{"referrer": {m.Referrer}}
	if m.CookieSupport != nil {
		if *m.CookieSupport {
			q.Set("cookie_support", "1")
		} else {
			q.Set("cookie_support", "0")
		}
	}
	return q
}

func (m RequestMeta) applyHeaders(h http.Header) {
	h.Set(HeaderDocumentReferrer, m.DocumentReferrer)
	h.Set(HeaderSessionID, m.SessionID)
	if m.ButtonType != "" {
		h.Set(HeaderButtonType, m.ButtonType)
	}
}

func trimBase(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
