package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milanbella/sa-oauth/config"
)

func sqliteConfig(t *testing.T) config.DBConfig {
	t.Helper()
	return config.DBConfig{
		Driver:       config.DriverSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "auth.db"),
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}
}

func TestBuildDSNMySQL(t *testing.T) {
	driver, dsn, err := buildDSN(config.DBConfig{
		Driver:   config.DriverMySQL,
		Host:     "db.internal",
		Port:     3306,
		User:     "sa_auth",
		Password: "secret",
		Name:     "sa_auth",
	})
	require.NoError(t, err)

	assert.Equal(t, "mysql", driver)
	assert.True(t, strings.HasPrefix(dsn, "sa_auth:secret@tcp(db.internal:3306)/sa_auth?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestBuildDSNSQLite(t *testing.T) {
	driver, dsn, err := buildDSN(config.DBConfig{Driver: config.DriverSQLite, SQLitePath: "/var/lib/sa/auth.db"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", driver)
	assert.True(t, strings.HasPrefix(dsn, "file:/var/lib/sa/auth.db?"), dsn)
	assert.Contains(t, dsn, "foreign_keys")
	assert.Contains(t, dsn, "_time_format=sqlite")
}

func TestBuildDSNUnknownDriver(t *testing.T) {
	_, _, err := buildDSN(config.DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()

	sqlDB, err := New(ctx, sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	applied, err := Migrate(ctx, sqlDB, config.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	for _, table := range []string{"user", "clients", "redirect_uris", "codes", "tokens", "session", "session_user"} {
		var name string
		err := sqlDB.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	applied, err = Migrate(ctx, sqlDB, config.DriverSQLite)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestMigrateUnknownDriver(t *testing.T) {
	ctx := context.Background()

	sqlDB, err := New(ctx, sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = Migrate(ctx, sqlDB, "oracle")
	assert.Error(t, err)
}
