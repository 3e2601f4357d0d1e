package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/repository"
	"github.com/tradepoll/delivery-service/internal/storage"
	"github.com/tradepoll/delivery-service/internal/token"
)

// UploadService owns the two file-upload flows: the admin attaching a
// reference screenshot to an option, and a user submitting execution proof
// through a single-use token link.
type UploadService struct {
	polls     repository.PollRepository
	artifacts repository.ArtifactRepository
	issuer    *token.Issuer
	store     *storage.Store
	logger    *zap.Logger

	onRedeemed func() // metric hook, may be nil
}

func NewUploadService(
	polls repository.PollRepository,
	artifacts repository.ArtifactRepository,
	issuer *token.Issuer,
	store *storage.Store,
	logger *zap.Logger,
	onRedeemed func(),
) *UploadService {
	if onRedeemed == nil {
		onRedeemed = func() {}
	}
	return &UploadService{
		polls:      polls,
		artifacts:  artifacts,
		issuer:     issuer,
		store:      store,
		logger:     logger,
		onRedeemed: onRedeemed,
	}
}

// AttachArtifact stores the reference screenshot for a poll option and
// replaces any previous one. The old file is removed only after the new
// record is committed, so a failed upload never destroys the current image.
func (s *UploadService) AttachArtifact(ctx context.Context, pollID, optionID int64, filename string, r io.Reader) (*domain.Artifact, error) {
	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	var optionText string
	found := false
	for _, opt := range poll.Options {
		if opt.ID == optionID {
			optionText = opt.Text
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrNotFound
	}

	name := storage.ArtifactFileName(pollID, optionID, filename, time.Now().UTC())
	if _, err := s.store.Save(name, r); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	prev, err := s.artifacts.UpsertOptionArtifact(ctx, pollID, optionID, name)
	if err != nil {
		_ = s.store.Remove(name)
		return nil, fmt.Errorf("record artifact: %w", err)
	}
	if prev != nil && *prev != name {
		if rmErr := s.store.Remove(*prev); rmErr != nil {
			s.logger.Warn("stale artifact file not removed",
				zap.String("file", *prev), zap.Error(rmErr))
		}
	}

	s.logger.Info("option artifact attached",
		zap.Int64("poll_id", pollID),
		zap.Int64("option_id", optionID),
		zap.String("file", name),
	)
	return &domain.Artifact{
		Key:        domain.SelectionKey{PollID: pollID, OptionID: optionID},
		FilePath:   name,
		Question:   poll.Question,
		OptionText: optionText,
	}, nil
}

// PeekToken returns the token row for the upload form without consuming it.
// Invalid, expired, and already-used tokens all surface domain.ErrTokenInvalid.
func (s *UploadService) PeekToken(ctx context.Context, tok string) (*domain.UploadToken, error) {
	return s.issuer.Peek(ctx, tok)
}

// SubmitExecution accepts a user's proof upload. The file is written first
// and the token redeemed after: redemption is the compare-and-set commit
// point, so losing the race deletes the just-saved file and reports the
// token gone. The winning upload is the only one ever recorded.
func (s *UploadService) SubmitExecution(ctx context.Context, tok, filename string, r io.Reader) (*domain.Execution, error) {
	row, err := s.issuer.Peek(ctx, tok)
	if err != nil {
		return nil, err
	}

	name := storage.ExecutionFileName(row.Key, filename, time.Now().UTC())
	if _, err := s.store.Save(name, r); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}

	key, err := s.issuer.Redeem(ctx, tok)
	if err != nil {
		_ = s.store.Remove(name)
		return nil, err
	}
	s.onRedeemed()

	e := &domain.Execution{
		Key:       key,
		FilePath:  name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.artifacts.RecordExecution(ctx, e); err != nil {
		// The token is burned but the proof record failed. Keep the file
		// on disk for manual recovery and surface the error.
		return nil, fmt.Errorf("record execution: %w", err)
	}

	s.logger.Info("execution proof recorded",
		zap.Int64("poll_id", key.PollID),
		zap.Int64("option_id", key.OptionID),
		zap.Int64("user_id", key.UserID),
		zap.String("file", name),
	)
	return e, nil
}
