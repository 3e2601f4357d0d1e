package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateResponse = errors.New("user already selected this option")
	ErrInvalidQuestion   = errors.New("question must not be empty")
	ErrInvalidOptions    = errors.New("poll requires at least one non-empty option")
	ErrInvalidPollType   = errors.New("invalid poll type: must be single or multi")
	ErrInvalidUserID     = errors.New("user id must be a positive integer")
	ErrTokenInvalid      = errors.New("upload token is invalid, expired, or already used")
	ErrFileRequired      = errors.New("multipart file field is required")
	ErrNoArtifact        = errors.New("no reference artifact for this option")
)
