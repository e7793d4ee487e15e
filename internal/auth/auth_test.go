package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Simplici0/printcost/internal/db"
	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/migrations"
)

func newAuthTestService(t *testing.T) *Service {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "auth-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := database.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, "admin@example.com", hash); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return NewService(database, "test-secret")
}

func TestHashPassword_IsSalted(t *testing.T) {
	first, err := HashPassword("12345")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("12345")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatalf("expected different hashes for the same password")
	}
	if !strings.HasPrefix(first, "$2a$") {
		t.Fatalf("expected bcrypt hash, got %q", first)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newAuthTestService(t)
	ctx := context.Background()

	user, ok, err := svc.Authenticate(ctx, "admin@example.com", "s3cret")
	if err != nil || !ok {
		t.Fatalf("expected valid credentials, got ok=%v err=%v", ok, err)
	}
	if user.ID <= 0 || user.Email != "admin@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	_, ok, err = svc.Authenticate(ctx, "admin@example.com", "wrong")
	if err != nil || ok {
		t.Fatalf("expected invalid password, got ok=%v err=%v", ok, err)
	}

	_, ok, err = svc.Authenticate(ctx, "nobody@example.com", "s3cret")
	if err != nil || ok {
		t.Fatalf("expected unknown user, got ok=%v err=%v", ok, err)
	}
}

func TestAuthenticate_LegacyHashIsRejected(t *testing.T) {
	svc := newAuthTestService(t)
	// hex sha256 of "12345"
	legacy := "5994471abb01112afcc18159f6cc74b4f511b99806da59b3caf5a9c173cacfc5"
	if _, err := svc.db.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, "old@example.com", legacy); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	_, ok, err := svc.Authenticate(context.Background(), "old@example.com", "12345")
	if err != nil || ok {
		t.Fatalf("expected legacy hash to be rejected, got ok=%v err=%v", ok, err)
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	svc := newAuthTestService(t)

	rec := httptest.NewRecorder()
	if err := svc.SetSessionCookie(rec, User{ID: 7, Email: "admin@example.com"}); err != nil {
		t.Fatalf("SetSessionCookie: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	session, ok := svc.SessionFrom(req)
	if !ok {
		t.Fatalf("expected request with session cookie to be authenticated")
	}
	if session.UserID != 7 || session.Email != "admin@example.com" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if ttl := time.Until(session.ExpiresAt); ttl <= 0 || ttl > SessionTTL {
		t.Fatalf("unexpected session expiry %v", session.ExpiresAt)
	}
}

func TestDecodeSession_Expired(t *testing.T) {
	svc := newAuthTestService(t)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	value, err := svc.encodeSession(svc.newSession(User{ID: 1, Email: "admin@example.com"}))
	if err != nil {
		t.Fatalf("encodeSession: %v", err)
	}
	if _, err := svc.DecodeSession(value); err != nil {
		t.Fatalf("fresh session rejected: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(SessionTTL) }
	if _, err := svc.DecodeSession(value); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestDecodeSession_RejectsTampering(t *testing.T) {
	svc := newAuthTestService(t)
	other := NewService(nil, "other-secret")

	forged, err := other.encodeSession(other.newSession(User{ID: 1, Email: "admin@example.com"}))
	if err != nil {
		t.Fatalf("encodeSession: %v", err)
	}
	anonymous, err := svc.encodeSession(svc.newSession(User{}))
	if err != nil {
		t.Fatalf("encodeSession: %v", err)
	}
	unsignedJSON := "bm90LWpzb24." + strings.Repeat("0", 64)

	cases := map[string]error{
		"":           ErrMalformedSession,
		"no-dot":     ErrMalformedSession,
		"a.b.c":      ErrMalformedSession,
		forged:       ErrInvalidSignature,
		anonymous:    ErrMalformedSession,
		unsignedJSON: ErrInvalidSignature,
	}
	for value, want := range cases {
		if _, err := svc.DecodeSession(value); !errors.Is(err, want) {
			t.Fatalf("DecodeSession(%q) = %v, want %v", value, err, want)
		}
	}
}

func TestSessionFrom_LogsRejectedCookie(t *testing.T) {
	svc := newAuthTestService(t)

	var buf bytes.Buffer
	prev := logger.Logger
	logger.Logger = logger.New(&buf, "info")
	t.Cleanup(func() { logger.Logger = prev })

	req := httptest.NewRequest(http.MethodGet, "/api/estimates", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	if svc.IsAuthenticated(req) {
		t.Fatalf("expected garbage cookie to be rejected")
	}
	if !strings.Contains(buf.String(), "rejected session cookie") || !strings.Contains(buf.String(), "malformed session") {
		t.Fatalf("expected rejection to be logged, got %q", buf.String())
	}
}
