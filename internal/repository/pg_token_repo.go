package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradepoll/delivery-service/internal/domain"
)

type pgTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPgTokenRepository returns a TokenRepository backed by PostgreSQL.
func NewPgTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &pgTokenRepository{pool: pool}
}

func (r *pgTokenRepository) Insert(ctx context.Context, t *domain.UploadToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO upload_tokens
			(token, poll_id, option_id, user_id, username, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.Token, t.Key.PollID, t.Key.OptionID, t.Key.UserID,
		t.Username, t.CreatedAt, t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload token: %w", err)
	}
	return nil
}

func (r *pgTokenRepository) Get(ctx context.Context, token string) (*domain.UploadToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token, poll_id, option_id, user_id, username, created_at, expires_at, used_at
		FROM upload_tokens WHERE token = $1`, token)

	var t domain.UploadToken
	err := row.Scan(
		&t.Token, &t.Key.PollID, &t.Key.OptionID, &t.Key.UserID,
		&t.Username, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload token: %w", err)
	}
	return &t, nil
}

// Redeem is the single-use guarantee: the conditional UPDATE only matches an
// unused, unexpired row, so of two concurrent redemptions exactly one sees
// RowsAffected()==1. No application-level lock is involved.
func (r *pgTokenRepository) Redeem(ctx context.Context, token string, now time.Time) (domain.SelectionKey, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE upload_tokens
		SET used_at = $2
		WHERE token = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING poll_id, option_id, user_id`,
		token, now,
	)

	var key domain.SelectionKey
	err := row.Scan(&key.PollID, &key.OptionID, &key.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SelectionKey{}, domain.ErrTokenInvalid
	}
	if err != nil {
		return domain.SelectionKey{}, fmt.Errorf("redeem upload token: %w", err)
	}
	return key, nil
}
