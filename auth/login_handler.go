package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/milanbella/sa-oauth/logger"
	"github.com/milanbella/sa-oauth/session"
)

// LoginHandler authenticates the resource owner and binds the user to the
// current session so a pending authorization request can proceed.
type LoginHandler struct {
	store    *Store
	hasher   PasswordHasher
	sessions *session.Manager
}

// NewLoginHandler constructs an http.Handler for login requests. The session
// token is renewed on every successful login.
func NewLoginHandler(store *Store, hasher PasswordHasher, sessions *session.Manager) http.Handler {
	return &LoginHandler{store: store, hasher: hasher, sessions: sessions}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.hasher == nil || h.sessions == nil {
		logger.Error(errors.New("login handler misconfigured: missing dependency"))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sessionInfo, ok := session.FromContext(r.Context())
	if !ok || sessionInfo.ID == "" {
		logger.Error(errors.New("session information missing in context"))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	username := r.Form.Get("username")
	password := r.Form.Get("password")

	if _, err := Login(r.Context(), h.store, h.hasher, sessionInfo.ID, username, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, ResponseLogin{Message: "invalid credentials"})
			return
		}
		logger.Error(fmt.Errorf("login failed for session %s: %w", sessionInfo.ID, err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if _, err := h.sessions.Renew(r.Context(), w, sessionInfo); err != nil {
		logger.Error(fmt.Errorf("login for session %s: %w", sessionInfo.ID, err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if returnTo := r.Form.Get("return_to"); isLocalPath(returnTo) {
		http.Redirect(w, r, returnTo, http.StatusFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// isLocalPath accepts only same-origin absolute paths. Browsers strip tab, CR
// and LF from URLs and treat a backslash like a slash, so either could turn
// "/x" into a scheme-relative "//host" after the check.
func isLocalPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	for _, c := range p {
		if c < 0x20 || c == 0x7f || c == '\\' {
			return false
		}
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return false
	}
	return strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(u.Path, "//")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(err)
	}
}
