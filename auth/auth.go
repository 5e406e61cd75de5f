// Package auth issues and verifies operator session cookies.
//
// A session cookie carries "<userID>.<expiryUnix>.<signature>", signed with
// HMAC-SHA256 over the first two fields. Nothing is stored server-side.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sunforge/solar-epc/httpx"
)

type ctxKey string

const (
	CookieName   = "session"
	DefaultTTL   = 14 * 24 * time.Hour
	userIDCtxKey = ctxKey("userID")
)

// UserVerifier reports whether a session's user may still sign in.
type UserVerifier func(ctx context.Context, userID uint) bool

// Sessions signs and checks session cookies.
type Sessions struct {
	secret   []byte
	ttl      time.Duration
	secure   bool
	verifier UserVerifier
	now      func() time.Time
}

// Option configures Sessions.
type Option func(*Sessions)

// WithTTL sets how long a new session stays valid.
func WithTTL(d time.Duration) Option { return func(s *Sessions) { s.ttl = d } }

// WithSecureCookie marks cookies Secure (HTTPS only).
func WithSecureCookie(v bool) Option { return func(s *Sessions) { s.secure = v } }

// WithVerifier rejects sessions whose user the verifier refuses, e.g. deactivated accounts.
func WithVerifier(v UserVerifier) Option { return func(s *Sessions) { s.verifier = v } }

func NewSessions(secret string, opts ...Option) *Sessions {
	s := &Sessions{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// With returns a copy of s with opts applied.
func (s *Sessions) With(opts ...Option) *Sessions {
	c := *s
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// HasVerifier reports whether sessions are checked against a UserVerifier.
func (s *Sessions) HasVerifier() bool { return s.verifier != nil }

func (s *Sessions) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Create sets a signed session cookie for userID.
func (s *Sessions) Create(w http.ResponseWriter, userID uint) {
	exp := s.now().Add(s.ttl)
	payload := strconv.FormatUint(uint64(userID), 10) + "." + strconv.FormatInt(exp.Unix(), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    payload + "." + s.sign(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// Parse returns the user id of a valid, unexpired session cookie.
func (s *Sessions) Parse(r *http.Request) (uint, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 3 {
		return 0, false
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.sign(payload))) {
		return 0, false
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || !s.now().Before(time.Unix(exp, 0)) {
		return 0, false
	}
	return uint(id), true
}

// Middleware attaches the session user to the request context when present.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := s.Parse(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless Middleware found a session the verifier accepts.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if s.verifier != nil && !s.verifier(r.Context(), uid) {
			s.Clear(w)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID stores the user id in ctx.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext returns the user id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok
}
