package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientByClientID(t *testing.T) {
	f := newFixture(t)
	owner := f.addUser(t, "svc-owner", "pw")
	registered := f.addClient(t, "billing", "s1", owner, "https://billing.example/cb")
	f.addClient(t, "public-app", "s2", nil)

	dir := NewClientDirectory(f.store)

	client, err := dir.GetClientByClientID(f.ctx, "billing")
	require.NoError(t, err)
	assert.Equal(t, registered, client)

	client, err = dir.GetClientByClientID(f.ctx, "public-app")
	require.NoError(t, err)
	assert.Empty(t, client.UserID)
	assert.NotEmpty(t, client.SecretHash)

	for _, id := range []string{"unknown", "", "   ", "BILLING", "billing "} {
		client, err = dir.GetClientByClientID(f.ctx, id)
		if id == "billing " {
			// surrounding whitespace is trimmed before lookup
			require.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, ErrNotFound, "client id %q", id)
		assert.ErrorIs(t, err, ErrClientNotFound, "client id %q", id)
		assert.Nil(t, client)
	}
}

func TestValidateRedirectURI(t *testing.T) {
	f := newFixture(t)
	app := f.addClient(t, "app", "s1", nil, "https://app/cb", "http://localhost:3000/callback")
	other := f.addClient(t, "other", "s2", nil, "https://other/cb")

	dir := NewClientDirectory(f.store)

	tests := []struct {
		name   string
		client *Client
		uri    string
		want   bool
	}{
		{name: "exact match", client: app, uri: "https://app/cb", want: true},
		{name: "second uri", client: app, uri: "http://localhost:3000/callback", want: true},
		{name: "prefix only", client: app, uri: "https://app/c", want: false},
		{name: "extra path", client: app, uri: "https://app/cb/extra", want: false},
		{name: "extra query", client: app, uri: "https://app/cb?x=1", want: false},
		{name: "trailing slash", client: app, uri: "https://app/cb/", want: false},
		{name: "case differs", client: app, uri: "https://APP/cb", want: false},
		{name: "other client's uri", client: app, uri: "https://other/cb", want: false},
		{name: "own uri of other", client: other, uri: "https://other/cb", want: true},
		{name: "empty uri", client: app, uri: "", want: false},
		{name: "nil client", client: nil, uri: "https://app/cb", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := dir.ValidateRedirectURI(f.ctx, tt.client, tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
