package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/milanbella/sa-oauth/logger"
)

// ClientDirectory resolves public client identifiers and their registered redirect URIs.
type ClientDirectory struct {
	repo ClientRepository
}

func NewClientDirectory(repo ClientRepository) *ClientDirectory {
	return &ClientDirectory{repo: repo}
}

// GetClientByClientID looks up a client by its public identifier. It does not
// check the secret.
func (d *ClientDirectory) GetClientByClientID(ctx context.Context, clientID string) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrClientNotFound
	}
	return d.repo.GetClientByClientID(ctx, clientID)
}

// ValidateRedirectURI reports whether uri is registered, byte for byte, for client.
func (d *ClientDirectory) ValidateRedirectURI(ctx context.Context, client *Client, uri string) (bool, error) {
	if client == nil || uri == "" {
		return false, nil
	}
	return d.repo.HasRedirectURI(ctx, client.ID, uri)
}

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*Client, error) {
	var (
		client Client
		userID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, client_secret_hash, user_id
		FROM clients
		WHERE client_id = ?
	`, clientID).Scan(&client.ID, &client.ClientID, &client.SecretHash, &userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
		}
		return nil, logger.LogErr(fmt.Errorf("query client %s: %w", clientID, err))
	}
	client.UserID = userID.String

	return &client, nil
}

func (s *Store) HasRedirectURI(ctx context.Context, clientID, uri string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1
		FROM redirect_uris
		WHERE client_id = ? AND uri = ?
	`, clientID, uri).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, logger.LogErr(fmt.Errorf("query redirect uri for client %s: %w", clientID, err))
	}
	return true, nil
}
