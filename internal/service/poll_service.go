package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/pending"
	"github.com/tradepoll/delivery-service/internal/queue"
	"github.com/tradepoll/delivery-service/internal/repository"
)

// PollService coordinates the repositories, the announce queue, and the
// pending-delivery set. All business rules (validation, single-select
// pruning, confirmation idempotency) live here. HTTP handlers and the
// background workers depend on this service, not on each other.
type PollService struct {
	polls     repository.PollRepository
	responses repository.ResponseRepository
	announceQ *queue.FIFO[domain.AnnounceJob]
	pendingS  *pending.Set
	logger    *zap.Logger
}

func NewPollService(
	polls repository.PollRepository,
	responses repository.ResponseRepository,
	announceQ *queue.FIFO[domain.AnnounceJob],
	pendingS *pending.Set,
	logger *zap.Logger,
) *PollService {
	return &PollService{
		polls:     polls,
		responses: responses,
		announceQ: announceQ,
		pendingS:  pendingS,
		logger:    logger,
	}
}

// Create validates and persists the poll, then hands the announcement to the
// announce queue. The announcement is fire-and-forget: the poll exists even
// if the group-chat post later fails.
func (s *PollService) Create(ctx context.Context, req domain.CreatePollRequest) (*domain.Poll, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	poll := &domain.Poll{
		Question:  strings.TrimSpace(req.Question),
		Type:      req.Type,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range req.Options {
		poll.Options = append(poll.Options, domain.Option{Text: strings.TrimSpace(opt)})
	}

	if err := s.polls.CreatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("persist poll: %w", err)
	}

	s.announceQ.Push(domain.AnnounceJob{PollID: poll.ID})
	s.logger.Info("poll created",
		zap.Int64("poll_id", poll.ID),
		zap.Int("options", len(poll.Options)),
	)
	return poll, nil
}

func (s *PollService) Get(ctx context.Context, pollID int64) (*domain.Poll, error) {
	return s.polls.GetPoll(ctx, pollID)
}

func (s *PollService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Poll, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.polls.ListPolls(ctx, filter)
}

// RecordResponse records a user's vote on an option. The repository enforces
// insert-only semantics; voting twice on the same option surfaces
// domain.ErrDuplicateResponse to the caller.
func (s *PollService) RecordResponse(ctx context.Context, key domain.SelectionKey, req domain.RecordResponseRequest) (*domain.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.polls.GetPoll(ctx, key.PollID); err != nil {
		return nil, err
	}

	r := &domain.Response{
		Key:         key,
		RespondedAt: time.Now().UTC(),
	}
	if req.Username != "" {
		u := req.Username
		r.Username = &u
	}
	if err := s.responses.RecordResponse(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Confirm marks the selection confirmed and registers it for screenshot
// delivery. The pending set dedups, so confirming twice is a no-op; the
// bool result tells the caller whether this call actually scheduled a
// delivery.
func (s *PollService) Confirm(ctx context.Context, key domain.SelectionKey) (scheduled bool, err error) {
	if err := s.responses.Confirm(ctx, key); err != nil {
		return false, err
	}

	scheduled = s.pendingS.Add(key)
	if scheduled {
		s.logger.Info("selection queued for delivery",
			zap.Int64("poll_id", key.PollID),
			zap.Int64("option_id", key.OptionID),
			zap.Int64("user_id", key.UserID),
		)
	}
	return scheduled, nil
}
