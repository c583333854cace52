package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"
)

const (
	sessionCookieName = "likebutton_session"
	sessionLifetime   = 30 * 24 * time.Hour
)

// ErrInvalidSessionConfig indicates the session keys are unusable.
var ErrInvalidSessionConfig = errors.New("session: invalid config")

// SessionData is the state persisted in the signed session cookie.
type SessionData struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	dirty bool
}

// MarkDirty flags the session for writing at end of request
func (s *SessionData) MarkDirty() { s.dirty = true; s.UpdatedAt = time.Now().UTC() }

// SessionConfig controls the cookie codec. Empty keys select a process-ephemeral hash key.
type SessionConfig struct {
	HashKey  []byte
	BlockKey []byte
	// Secure marks cookies Secure and SameSite=None so they survive third-party iframes.
	Secure bool
	Now    func() time.Time
}

// Sessions encodes the session cookie and the CSRF tokens with one securecookie codec.
type Sessions struct {
	codec    *securecookie.SecureCookie
	secure   bool
	sameSite http.SameSite
	now      func() time.Time
}

// NewSessions builds the codec.
func NewSessions(cfg SessionConfig) (*Sessions, error) {
	hashKey := cfg.HashKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil {
			return nil, fmt.Errorf("%w: generate hash key", ErrInvalidSessionConfig)
		}
	}
	blockKey := cfg.BlockKey
	if len(blockKey) > 0 {
		switch len(blockKey) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidSessionConfig)
		}
	} else {
		blockKey = nil
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(sessionLifetime.Seconds()))

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sameSite := http.SameSiteLaxMode
	if cfg.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &Sessions{codec: codec, secure: cfg.Secure, sameSite: sameSite, now: now}, nil
}

// Middleware loads or initializes a session and stores it in request context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := s.read(r)
		if sd.ID == "" {
			now := s.now().UTC()
			sd.ID = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
			sd.CreatedAt = now
			sd.UpdatedAt = now
			sd.dirty = true
		}
		ctx := context.WithValue(r.Context(), ctxKeySession, sd)
		rw := newBeforeWriteRecorder(w, func(w http.ResponseWriter) {
			if sd.dirty || !fromCookie {
				s.write(w, sd)
			}
		})
		next.ServeHTTP(rw, r.WithContext(ctx))
		rw.flushHook()
	})
}

// GetSession returns session data from context
func GetSession(r *http.Request) *SessionData {
	if v := r.Context().Value(ctxKeySession); v != nil {
		if sd, ok := v.(*SessionData); ok {
			return sd
		}
	}
	return &SessionData{}
}

func (s *Sessions) read(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := s.codec.Decode(sessionCookieName, c.Value, &sd); err != nil {
		return &SessionData{}, false
	}
	return &sd, true
}

func (s *Sessions) write(w http.ResponseWriter, sd *SessionData) {
	val, err := s.codec.Encode(sessionCookieName, sd)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    val,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: s.sameSite,
		Expires:  s.now().Add(sessionLifetime),
	})
}

// beforeWriteRecorder runs hook once, right before the first header or body write.
type beforeWriteRecorder struct {
	http.ResponseWriter
	hook  func(http.ResponseWriter)
	wrote bool
}

func newBeforeWriteRecorder(w http.ResponseWriter, hook func(http.ResponseWriter)) *beforeWriteRecorder {
	return &beforeWriteRecorder{ResponseWriter: w, hook: hook}
}

func (rw *beforeWriteRecorder) flushHook() {
	if rw.wrote {
		return
	}
	rw.wrote = true
	rw.hook(rw.ResponseWriter)
}

func (rw *beforeWriteRecorder) WriteHeader(statusCode int) {
	rw.flushHook()
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *beforeWriteRecorder) Write(b []byte) (int, error) {
	rw.flushHook()
	return rw.ResponseWriter.Write(b)
}

func (rw *beforeWriteRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
