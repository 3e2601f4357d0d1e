package repository

import (
	"context"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
)

// PollRepository defines persistence operations for polls and their options.
// The pgx implementations live in the pg_*.go files; tests use the
// hand-written in-memory mocks (mock_repos.go).
type PollRepository interface {
	// CreatePoll persists the poll and its options in one transaction and
	// fills in the generated IDs.
	CreatePoll(ctx context.Context, poll *domain.Poll) error
	GetPoll(ctx context.Context, pollID int64) (*domain.Poll, error)
	ListPolls(ctx context.Context, filter domain.ListFilter) ([]*domain.Poll, error)
}

// ResponseRepository records users' selections and confirmations.
type ResponseRepository interface {
	// RecordResponse is insert-only: a second record for the same
	// (poll, option, user) returns domain.ErrDuplicateResponse. For
	// single-select polls the user's other responses in the poll are
	// removed in the same transaction.
	RecordResponse(ctx context.Context, r *domain.Response) error
	// Confirm flips the confirmed flag for an existing response.
	Confirm(ctx context.Context, key domain.SelectionKey) error
	// LatestUsername returns the most recent username recorded for the
	// selection, or nil when none was ever supplied.
	LatestUsername(ctx context.Context, key domain.SelectionKey) (*string, error)
}

// ArtifactRepository stores the admin reference image per option and the
// per-user execution proofs.
type ArtifactRepository interface {
	// UpsertOptionArtifact replaces the option's reference image record and
	// returns the previous file path so the caller can delete the old file.
	UpsertOptionArtifact(ctx context.Context, pollID, optionID int64, filePath string) (prev *string, err error)
	// GetOptionArtifact returns the option's reference image joined with
	// the poll question and option text, or domain.ErrNoArtifact.
	GetOptionArtifact(ctx context.Context, pollID, optionID int64) (*domain.Artifact, error)
	// RecordExecution upserts the user's proof upload for a selection.
	RecordExecution(ctx context.Context, e *domain.Execution) error
}

// TokenRepository persists single-use upload tokens. Tokens are shared with
// the web-handling goroutines, so single-use semantics are enforced by the
// store's compare-and-set update, not by an application-level lock.
type TokenRepository interface {
	Insert(ctx context.Context, t *domain.UploadToken) error
	// Get returns the token row regardless of validity (used by the upload
	// form to peek without consuming), or domain.ErrNotFound.
	Get(ctx context.Context, token string) (*domain.UploadToken, error)
	// Redeem atomically marks the token used iff it is unused and
	// unexpired at the given instant, returning the bound selection.
	// A lost race or an invalid token yields domain.ErrTokenInvalid.
	Redeem(ctx context.Context, token string, now time.Time) (domain.SelectionKey, error)
}
