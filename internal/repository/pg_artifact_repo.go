package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradepoll/delivery-service/internal/domain"
)

type pgArtifactRepository struct {
	pool *pgxpool.Pool
}

// NewPgArtifactRepository returns an ArtifactRepository backed by PostgreSQL.
func NewPgArtifactRepository(pool *pgxpool.Pool) ArtifactRepository {
	return &pgArtifactRepository{pool: pool}
}

func (r *pgArtifactRepository) UpsertOptionArtifact(ctx context.Context, pollID, optionID int64, filePath string) (*string, error) {
	var prev *string
	err := r.pool.QueryRow(ctx, `
		SELECT file_path FROM option_artifacts
		WHERE poll_id = $1 AND option_id = $2`, pollID, optionID,
	).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("previous artifact lookup: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO option_artifacts (poll_id, option_id, file_path, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (poll_id, option_id) DO UPDATE
		SET file_path = EXCLUDED.file_path, created_at = NOW()`,
		pollID, optionID, filePath,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert artifact: %w", err)
	}
	return prev, nil
}

func (r *pgArtifactRepository) GetOptionArtifact(ctx context.Context, pollID, optionID int64) (*domain.Artifact, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT a.file_path, p.question, o.option_text
		FROM option_artifacts a
		JOIN polls p ON p.poll_id = a.poll_id
		JOIN poll_options o ON o.poll_id = a.poll_id AND o.option_id = a.option_id
		WHERE a.poll_id = $1 AND a.option_id = $2`, pollID, optionID)

	a := domain.Artifact{Key: domain.SelectionKey{PollID: pollID, OptionID: optionID}}
	err := row.Scan(&a.FilePath, &a.Question, &a.OptionText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return &a, nil
}

func (r *pgArtifactRepository) RecordExecution(ctx context.Context, e *domain.Execution) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO option_executions (poll_id, option_id, user_id, file_path, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (poll_id, option_id, user_id) DO UPDATE
		SET file_path = EXCLUDED.file_path, created_at = NOW()`,
		e.Key.PollID, e.Key.OptionID, e.Key.UserID, e.FilePath,
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}
