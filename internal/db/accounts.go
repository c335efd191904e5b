package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectedAccountRepository handles connected-account database operations.
type ConnectedAccountRepository struct {
	pool *pgxpool.Pool
}

// Upsert creates or updates the connected account for (user, provider),
// overwriting the provider user id and tokens with the fresh values.
func (r *ConnectedAccountRepository) Upsert(ctx context.Context, account *ConnectedAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	query := `
		INSERT INTO connected_accounts
			(id, user_id, provider, provider_user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			provider_user_id = EXCLUDED.provider_user_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderUserID,
		account.AccessToken,
		account.RefreshToken,
		account.ExpiresAt,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting connected account: %w", err)
	}
	return nil
}

// Get retrieves the connected account for (user, provider).
func (r *ConnectedAccountRepository) Get(ctx context.Context, userID uuid.UUID, provider string) (*ConnectedAccount, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM connected_accounts
		WHERE user_id = $1 AND provider = $2
	`
	var account ConnectedAccount
	err := r.pool.QueryRow(ctx, query, userID, provider).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderUserID,
		&account.AccessToken,
		&account.RefreshToken,
		&account.ExpiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying connected account: %w", err)
	}
	return &account, nil
}

// UpdateTokens overwrites the stored tokens and expiry after a refresh.
func (r *ConnectedAccountRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE connected_accounts
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("updating account tokens: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete unlinks the provider account from the user.
func (r *ConnectedAccountRepository) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	query := `DELETE FROM connected_accounts WHERE user_id = $1 AND provider = $2`
	result, err := r.pool.Exec(ctx, query, userID, provider)
	if err != nil {
		return fmt.Errorf("deleting connected account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
