package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the signed admin session token.
const SessionCookieName = "admin_session"

const defaultSessionTTL = 24 * time.Hour

var (
	// ErrTokenExpired signals that the session token has expired.
	ErrTokenExpired = errors.New("auth: session token expired")
	// ErrTokenInvalid signals that the session token failed verification.
	ErrTokenInvalid = errors.New("auth: session token invalid")
	// ErrInvalidCredentials signals a failed credential check.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// SessionClaims is the JWT payload minted for an authenticated admin.
type SessionClaims struct {
	Admin    bool   `json:"admin"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionManager mints and verifies the signed admin session tokens and
// validates the shared credential pair.
type SessionManager struct {
	secret   []byte
	username string
	password string
	ttl      time.Duration
	now      func() time.Time
}

// SessionOption customises SessionManager behaviour.
type SessionOption func(*SessionManager)

// WithSessionTTL overrides the session token lifetime.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock injects the time source used for issued-at and expiry claims.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager constructs a SessionManager from the signing secret and
// the configured admin credential pair.
func NewSessionManager(secret, username, password string, opts ...SessionOption) (*SessionManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: session secret is required")
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, errors.New("auth: admin credentials are required")
	}

	m := &SessionManager{
		secret:   []byte(secret),
		username: username,
		password: password,
		ttl:      defaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Authenticate checks the supplied credentials against the configured pair
// using constant-time comparison.
func (m *SessionManager) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(m.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

// Issue mints a signed session token for the given username.
func (m *SessionManager) Issue(username string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)

	claims := SessionClaims{
		Admin:    true,
		Username: strings.TrimSpace(username),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses and validates a session token, returning its claims.
func (m *SessionManager) Verify(tokenStr string) (*SessionClaims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || !claims.Admin {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// SessionCookie builds the HTTP cookie carrying a freshly issued token.
func (m *SessionManager) SessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearedSessionCookie builds the expired cookie used on logout.
func (m *SessionManager) ClearedSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
