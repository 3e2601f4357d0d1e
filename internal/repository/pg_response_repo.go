package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradepoll/delivery-service/internal/domain"
)

type pgResponseRepository struct {
	pool *pgxpool.Pool
}

// NewPgResponseRepository returns a ResponseRepository backed by PostgreSQL.
func NewPgResponseRepository(pool *pgxpool.Pool) ResponseRepository {
	return &pgResponseRepository{pool: pool}
}

func (r *pgResponseRepository) RecordResponse(ctx context.Context, resp *domain.Response) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO poll_responses (poll_id, option_id, user_id, username, confirmed)
		VALUES ($1, $2, $3, $4, FALSE)`,
		resp.Key.PollID, resp.Key.OptionID, resp.Key.UserID, resp.Username,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return domain.ErrDuplicateResponse
			case pgerrcode.ForeignKeyViolation:
				return domain.ErrNotFound
			}
		}
		return fmt.Errorf("insert response: %w", err)
	}

	// Single-select polls hold at most one response per user.
	var pollType domain.PollType
	err = tx.QueryRow(ctx,
		`SELECT poll_type FROM polls WHERE poll_id = $1`, resp.Key.PollID,
	).Scan(&pollType)
	if err != nil {
		return fmt.Errorf("poll type lookup: %w", err)
	}
	if pollType == domain.PollTypeSingle {
		_, err = tx.Exec(ctx, `
			DELETE FROM poll_responses
			WHERE poll_id = $1 AND user_id = $2 AND option_id <> $3`,
			resp.Key.PollID, resp.Key.UserID, resp.Key.OptionID,
		)
		if err != nil {
			return fmt.Errorf("prune other responses: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit response: %w", err)
	}
	return nil
}

func (r *pgResponseRepository) Confirm(ctx context.Context, key domain.SelectionKey) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE poll_responses SET confirmed = TRUE
		WHERE poll_id = $1 AND option_id = $2 AND user_id = $3`,
		key.PollID, key.OptionID, key.UserID,
	)
	if err != nil {
		return fmt.Errorf("confirm response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgResponseRepository) LatestUsername(ctx context.Context, key domain.SelectionKey) (*string, error) {
	var username *string
	err := r.pool.QueryRow(ctx, `
		SELECT username FROM poll_responses
		WHERE poll_id = $1 AND option_id = $2 AND user_id = $3
		ORDER BY responded_at DESC
		LIMIT 1`,
		key.PollID, key.OptionID, key.UserID,
	).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // selection exists only in memory; username is optional context
	}
	if err != nil {
		return nil, fmt.Errorf("latest username: %w", err)
	}
	return username, nil
}
