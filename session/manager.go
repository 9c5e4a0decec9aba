package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milanbella/sa-oauth/logger"
)

type ctxKey string

const (
	CookieName               = "sa_session"
	sessionContextKey ctxKey = "session-info"

	rotationInterval = 15 * time.Minute
	sessionTTL       = 24 * time.Hour
)

// Info identifies the browser session attached to a request.
type Info struct {
	ID    string
	Token string
}

// Manager ensures every request has a valid session cookie and keeps the session fresh.
type Manager struct {
	db  *sql.DB
	now func() time.Time
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db, now: time.Now}
}

// Middleware sets or refreshes the session cookie as needed before calling the next handler.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		info, cookieToSet, err := m.ensureSession(ctx, r.Cookie)
		if err != nil {
			logger.Error(fmt.Errorf("ensure session: %w", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if cookieToSet != nil {
			http.SetCookie(w, cookieToSet)
		}

		next.ServeHTTP(w, r.WithContext(NewContext(ctx, info)))
	})
}

// Renew issues a fresh token for the session and sets it on w. The previous
// token stops resolving. Call it when the session's privilege changes, such
// as right after login.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, info Info) (Info, error) {
	renewed, cookie, err := m.rotateSession(ctx, info.ID)
	if err != nil {
		return Info{}, fmt.Errorf("renew session %s: %w", info.ID, err)
	}

	// drop a cookie the middleware may already have queued for this request
	header := w.Header()
	kept := header["Set-Cookie"][:0]
	for _, v := range header["Set-Cookie"] {
		if !strings.HasPrefix(v, CookieName+"=") {
			kept = append(kept, v)
		}
	}
	header["Set-Cookie"] = kept
	http.SetCookie(w, cookie)
	return renewed, nil
}

func (m *Manager) ensureSession(ctx context.Context, cookieFn func(name string) (*http.Cookie, error)) (Info, *http.Cookie, error) {
	cookie, err := cookieFn(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return m.createSession(ctx)
		}
		return Info{}, nil, err
	}

	if cookie.Value == "" {
		return m.createSession(ctx)
	}

	sessionToken := cookie.Value
	row := m.db.QueryRowContext(ctx, `
		SELECT id, expires_at, updated_at
		FROM session
		WHERE session_token = ?
	`, sessionToken)

	var (
		id        string
		expiresAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &expiresAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m.createSession(ctx)
		}
		return Info{}, nil, err
	}

	now := m.now().UTC()
	if now.After(expiresAt) {
		return m.replaceSession(ctx, id)
	}

	if now.Sub(updatedAt) >= rotationInterval {
		return m.rotateSession(ctx, id)
	}

	return Info{ID: id, Token: sessionToken}, nil, nil
}

func (m *Manager) createSession(ctx context.Context) (Info, *http.Cookie, error) {
	sessionID := uuid.NewString()
	sessionToken := uuid.NewString()
	now := m.now().UTC()
	expiresAt := now.Add(sessionTTL)

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO session (id, session_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, sessionToken, expiresAt, now, now)
	if err != nil {
		return Info{}, nil, err
	}

	return Info{ID: sessionID, Token: sessionToken}, buildCookie(sessionToken, expiresAt), nil
}

func (m *Manager) rotateSession(ctx context.Context, id string) (Info, *http.Cookie, error) {
	sessionToken := uuid.NewString()
	now := m.now().UTC()
	expiresAt := now.Add(sessionTTL)

	res, err := m.db.ExecContext(ctx, `
		UPDATE session
		SET session_token = ?, expires_at = ?, updated_at = ?
		WHERE id = ?
	`, sessionToken, expiresAt, now, id)
	if err != nil {
		return Info{}, nil, err
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return m.createSession(ctx)
	}

	return Info{ID: id, Token: sessionToken}, buildCookie(sessionToken, expiresAt), nil
}

func (m *Manager) replaceSession(ctx context.Context, id string) (Info, *http.Cookie, error) {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM session WHERE id = ?`, id); err != nil {
		return Info{}, nil, err
	}
	return m.createSession(ctx)
}

func buildCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		Expires:  expiresAt,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewContext returns a copy of ctx carrying the session info.
func NewContext(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, sessionContextKey, info)
}

// FromContext extracts the session info stored by the middleware.
func FromContext(ctx context.Context) (Info, bool) {
	val, ok := ctx.Value(sessionContextKey).(Info)
	return val, ok
}
