package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/milanbella/sa-oauth/config"
	"github.com/milanbella/sa-oauth/db"
)

type fixture struct {
	ctx    context.Context
	db     *sql.DB
	store  *Store
	hasher *BcryptHasher

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sqlDB, err := db.New(ctx, config.DBConfig{
		Driver:      config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "auth.db"),
		PingTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = db.Migrate(ctx, sqlDB, config.DriverSQLite)
	require.NoError(t, err)

	return &fixture{
		ctx:    ctx,
		db:     sqlDB,
		store:  NewStore(sqlDB),
		hasher: NewBcryptHasher(bcrypt.MinCost),
		now:    time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
	}
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) addUser(t *testing.T, username, password string) *User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	user := &User{ID: uuid.NewString(), Username: username, Email: username + "@example.com"}
	_, err = f.db.ExecContext(f.ctx, `
		INSERT INTO user (id, username, email, password_hash) VALUES (?, ?, ?, ?)
	`, user.ID, user.Username, user.Email, hash)
	require.NoError(t, err)
	return user
}

// addClient registers a client the way an operator would: secret stored as
// a bcrypt hash, redirect URIs as separate rows.
func (f *fixture) addClient(t *testing.T, clientID, secret string, owner *User, redirectURIs ...string) *Client {
	t.Helper()

	hash, err := f.hasher.Hash(secret)
	require.NoError(t, err)

	client := &Client{ID: uuid.NewString(), ClientID: clientID, SecretHash: hash}
	var ownerID interface{}
	if owner != nil {
		client.UserID = owner.ID
		ownerID = owner.ID
	}

	_, err = f.db.ExecContext(f.ctx, `
		INSERT INTO clients (id, client_id, client_secret_hash, user_id) VALUES (?, ?, ?, ?)
	`, client.ID, client.ClientID, client.SecretHash, ownerID)
	require.NoError(t, err)

	for _, uri := range redirectURIs {
		_, err = f.db.ExecContext(f.ctx, `INSERT INTO redirect_uris (client_id, uri) VALUES (?, ?)`, client.ID, uri)
		require.NoError(t, err)
	}
	return client
}

func (f *fixture) countRows(t *testing.T, table string) int {
	t.Helper()

	var n int
	require.NoError(t, f.db.QueryRowContext(f.ctx, `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func (f *fixture) codeStore(opts ...Option) *CodeStore {
	opts = append([]Option{WithClock(f.clock)}, opts...)
	return NewCodeStore(f.store, NewRandomGenerator(), DefaultCodeTTL, opts...)
}

func (f *fixture) tokenIssuer(codes *CodeStore, opts ...Option) *TokenIssuer {
	opts = append([]Option{WithClock(f.clock)}, opts...)
	return NewTokenIssuer(f.store, codes, f.store, NewRandomGenerator(), DefaultAccessTokenTTL, DefaultRefreshTokenTTL, opts...)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type mockUserResolver struct {
	mock.Mock
}

func (m *mockUserResolver) FindUserByID(ctx context.Context, id string) (*User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*User)
	return user, args.Error(1)
}
