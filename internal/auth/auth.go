// Package auth validates user credentials and signs session cookies.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/printcost/internal/logger"
)

// SessionCookieName is the cookie carrying the signed session.
const SessionCookieName = "printcost_session"

// SessionTTL is how long a login stays valid.
const SessionTTL = 7 * 24 * time.Hour

var (
	ErrMalformedSession = errors.New("malformed session")
	ErrInvalidSignature = errors.New("invalid session signature")
	ErrSessionExpired   = errors.New("session expired")
)

// Session identifies the user an estimate is computed or saved for.
type Session struct {
	UserID    int64     `json:"uid"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"exp"`
}

// User is a stored account that passed the credential check.
type User struct {
	ID    int64
	Email string
}

// Service checks credentials stored in the users table.
type Service struct {
	db            *sql.DB
	sessionSecret []byte
	now           func() time.Time
}

// NewService returns a Service signing sessions with sessionSecret.
func NewService(db *sql.DB, sessionSecret string) *Service {
	return &Service{db: db, sessionSecret: []byte(sessionSecret), now: time.Now}
}

// HashPassword returns the bcrypt hash stored for password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate returns the user matching email and password. ok is false for unknown users and wrong passwords.
func (a *Service) Authenticate(ctx context.Context, email, password string) (User, bool, error) {
	user := User{Email: email}
	var passwordHash string
	err := a.db.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email = ?`, email).Scan(&user.ID, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("query user credentials: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return User{}, false, nil
	}
	if err != nil {
		logger.Warn("stored password hash is unusable", "user_id", user.ID, "error", err)
		return User{}, false, nil
	}
	return user, true, nil
}

func (a *Service) newSession(user User) Session {
	return Session{UserID: user.ID, Email: user.Email, ExpiresAt: a.now().Add(SessionTTL).UTC().Truncate(time.Second)}
}

func (a *Service) sign(payload string) []byte {
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func (a *Service) encodeSession(s Session) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + hex.EncodeToString(a.sign(payload)), nil
}

// DecodeSession verifies the signature and expiry of a cookie value.
func (a *Service) DecodeSession(value string) (Session, error) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok || payload == "" || strings.Contains(signature, ".") {
		return Session{}, ErrMalformedSession
	}

	provided, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(provided, a.sign(payload)) {
		return Session{}, ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrMalformedSession, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrMalformedSession, err)
	}
	if s.UserID <= 0 || s.Email == "" {
		return Session{}, ErrMalformedSession
	}
	if !a.now().Before(s.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}
	return s, nil
}

// SessionFrom returns the session carried by r, if any.
func (a *Service) SessionFrom(r *http.Request) (Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return Session{}, false
	}

	s, err := a.DecodeSession(cookie.Value)
	if err != nil {
		logger.Warn("rejected session cookie", "path", r.URL.Path, "error", err)
		return Session{}, false
	}
	return s, true
}

// IsAuthenticated reports whether r carries a valid session cookie.
func (a *Service) IsAuthenticated(r *http.Request) bool {
	_, ok := a.SessionFrom(r)
	return ok
}

// SetSessionCookie starts a session for user.
func (a *Service) SetSessionCookie(w http.ResponseWriter, user User) error {
	s := a.newSession(user)
	value, err := a.encodeSession(s)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie ends the current session.
func (a *Service) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
