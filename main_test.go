package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/milanbella/sa-oauth/config"
	"github.com/milanbella/sa-oauth/db"
)

func setSQLiteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sa_oauth.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", path)
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRouter(t *testing.T) {
	setSQLiteEnv(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	ctx := context.Background()
	sqlDB, err := db.New(ctx, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	_, err = db.Migrate(ctx, sqlDB, cfg.Database.Driver)
	require.NoError(t, err)

	router, err := newRouter(cfg, sqlDB, prometheus.NewRegistry())
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "hello", method: http.MethodGet, path: "/hello", wantStatus: http.StatusOK, wantBody: "Hello!"},
		{name: "hello wrong method", method: http.MethodPost, path: "/hello", wantStatus: http.StatusMethodNotAllowed},
		{name: "healthz", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantBody: "sa_oauth_codes_issued_total"},
		{name: "tokeninfo without bearer", method: http.MethodGet, path: "/auth/tokeninfo", wantStatus: http.StatusUnauthorized},
		{name: "token without client", method: http.MethodPost, path: "/auth/token", wantStatus: http.StatusBadRequest, wantBody: "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNewRouterDuplicateMetrics(t *testing.T) {
	setSQLiteEnv(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	sqlDB, err := db.New(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	reg := prometheus.NewRegistry()
	_, err = newRouter(cfg, sqlDB, reg)
	require.NoError(t, err)
	_, err = newRouter(cfg, sqlDB, reg)
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	setSQLiteEnv(t)

	out, err := runCommand(t, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "applied 1 migration(s)\n", out)

	out, err = runCommand(t, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "applied 0 migration(s)\n", out)
}

func TestMigrateCommandInvalidConfig(t *testing.T) {
	setSQLiteEnv(t)
	t.Setenv("DB_DRIVER", "postgres")

	_, err := runCommand(t, "", "migrate")
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func TestHashSecretCommand(t *testing.T) {
	setSQLiteEnv(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "argument", args: []string{"s1"}},
		{name: "stdin", stdin: "s1\n"},
		{name: "stdin without newline", stdin: "s1"},
		{name: "stdin crlf", stdin: "s1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, tt.stdin, append([]string{"hash-secret"}, tt.args...)...)
			require.NoError(t, err)

			hash := strings.TrimSpace(out)
			require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s1")))
			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, 4, cost)
		})
	}

	_, err := runCommand(t, "\n", "hash-secret")
	assert.ErrorContains(t, err, "must not be empty")
}

func TestRouterMachineEndpointsCreateNoSession(t *testing.T) {
	setSQLiteEnv(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	ctx := context.Background()
	sqlDB, err := db.New(ctx, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	_, err = db.Migrate(ctx, sqlDB, cfg.Database.Driver)
	require.NoError(t, err)

	router, err := newRouter(cfg, sqlDB, prometheus.NewRegistry())
	require.NoError(t, err)

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/metrics"},
		{http.MethodGet, "/healthz"},
		{http.MethodGet, "/hello"},
		{http.MethodGet, "/auth/tokeninfo"},
		{http.MethodPost, "/auth/token"},
	}
	for i := 0; i < 5; i++ {
		for _, r := range requests {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
			assert.Empty(t, rec.Header().Values("Set-Cookie"), "%s %s", r.method, r.path)
		}
	}

	var sessions int
	require.NoError(t, sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM session`).Scan(&sessions))
	assert.Zero(t, sessions)

	// browser routes still get one
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/authorize", nil))
	assert.NotEmpty(t, rec.Header().Values("Set-Cookie"))
}
