package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/milanbella/sa-oauth/logger"
)

type tokenCtxKey struct{}

// TokenFromContext returns the live token attached by RequireBearer.
func TokenFromContext(ctx context.Context) (*Token, bool) {
	token, ok := ctx.Value(tokenCtxKey{}).(*Token)
	return token, ok && token != nil
}

// RequireBearer rejects requests that do not carry a live bearer access token
// and exposes the resolved token to next through the request context.
func RequireBearer(issuer *TokenIssuer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sa-auth"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		token, err := issuer.GetTokenByAccessToken(r.Context(), accessToken)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sa-auth", error="invalid_token"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			logger.Error(err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenCtxKey{}, token)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// TokenInfoHandler describes the bearer token the request was authenticated with.
func TokenInfoHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := TokenFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, ResponseTokenInfo{
		Active:    true,
		ClientID:  token.ClientID,
		UserID:    token.UserID,
		TokenType: token.TokenType,
		IssuedAt:  token.CreatedAt.Unix(),
		ExpiresAt: token.AccessTokenExpiresAt.Unix(),
	})
}
