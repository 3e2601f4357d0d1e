package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradepoll/delivery-service/internal/domain"
)

type pgPollRepository struct {
	pool *pgxpool.Pool
}

// NewPgPollRepository returns a PollRepository backed by PostgreSQL.
func NewPgPollRepository(pool *pgxpool.Pool) PollRepository {
	return &pgPollRepository{pool: pool}
}

func (r *pgPollRepository) CreatePoll(ctx context.Context, poll *domain.Poll) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, `
		INSERT INTO polls (question, poll_type)
		VALUES ($1, $2)
		RETURNING poll_id, created_at`,
		poll.Question, poll.Type,
	).Scan(&poll.ID, &poll.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}

	for i := range poll.Options {
		opt := &poll.Options[i]
		opt.PollID = poll.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO poll_options (poll_id, option_text)
			VALUES ($1, $2)
			RETURNING option_id`,
			poll.ID, opt.Text,
		).Scan(&opt.ID)
		if err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit poll: %w", err)
	}
	return nil
}

func (r *pgPollRepository) GetPoll(ctx context.Context, pollID int64) (*domain.Poll, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT poll_id, question, poll_type, created_at
		FROM polls WHERE poll_id = $1`, pollID)

	var p domain.Poll
	err := row.Scan(&p.ID, &p.Question, &p.Type, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}

	if p.Options, err = r.options(ctx, pollID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pgPollRepository) ListPolls(ctx context.Context, f domain.ListFilter) ([]*domain.Poll, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT poll_id, question, poll_type, created_at
		FROM polls
		ORDER BY poll_id DESC
		LIMIT $1 OFFSET $2`, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	var polls []*domain.Poll
	for rows.Next() {
		var p domain.Poll
		if err := rows.Scan(&p.ID, &p.Question, &p.Type, &p.CreatedAt); err != nil {
			return nil, err
		}
		polls = append(polls, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range polls {
		if p.Options, err = r.options(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

func (r *pgPollRepository) options(ctx context.Context, pollID int64) ([]domain.Option, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT option_id, poll_id, option_text
		FROM poll_options
		WHERE poll_id = $1
		ORDER BY option_id`, pollID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	var options []domain.Option
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.PollID, &o.Text); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}
