// Package scanner hosts the delivery scanner: the background worker that
// turns confirmed selections into outbound send jobs once their option's
// reference artifact exists.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/pending"
	"github.com/tradepoll/delivery-service/internal/queue"
	"github.com/tradepoll/delivery-service/internal/repository"
	"github.com/tradepoll/delivery-service/internal/storage"
	"github.com/tradepoll/delivery-service/internal/token"
)

// Scanner ticks on a fixed interval and runs one scan pass over the
// pending-delivery set per tick. For each pending selection it looks up the
// option's artifact, mints a single-use upload token, and builds a send job.
// Jobs are pushed onto the send queue only after the lock-protected pass has
// completed, so the pending-set lock is never held across queue operations.
type Scanner struct {
	set       *pending.Set
	artifacts repository.ArtifactRepository
	responses repository.ResponseRepository
	issuer    *token.Issuer
	sendQ     *queue.FIFO[domain.SendJob]
	store     *storage.Store

	publicBaseURL string
	interval      time.Duration
	pendingTTL    time.Duration
	logger        *zap.Logger
}

func New(
	set *pending.Set,
	artifacts repository.ArtifactRepository,
	responses repository.ResponseRepository,
	issuer *token.Issuer,
	sendQ *queue.FIFO[domain.SendJob],
	store *storage.Store,
	publicBaseURL string,
	interval, pendingTTL time.Duration,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		set:           set,
		artifacts:     artifacts,
		responses:     responses,
		issuer:        issuer,
		sendQ:         sendQ,
		store:         store,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		interval:      interval,
		pendingTTL:    pendingTTL,
		logger:        logger,
	}
}

// Run ticks every interval until ctx is cancelled. Cancellation only happens
// on process shutdown; individual items are never cancelled, their expiry is
// purely data-level (pending TTL, token TTL).
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("delivery scanner started",
		zap.Duration("interval", s.interval),
		zap.Duration("pending_ttl", s.pendingTTL),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("delivery scanner stopping")
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs a single pass: scan-and-drain the pending set, then enqueue the
// resolved jobs. Exported so tests drive passes without the ticker.
func (s *Scanner) Scan(ctx context.Context) {
	jobs := s.set.ScanAndDrain(ctx, s.pendingTTL, s.resolve)
	for _, job := range jobs {
		s.sendQ.Push(job)
	}
	if len(jobs) > 0 {
		s.logger.Info("queued deliveries", zap.Int("count", len(jobs)))
	}
}

// resolve maps one pending selection to a send job. A missing artifact is
// the normal not-yet case, not an error. Any lookup or mint failure leaves
// the item pending; the set isolates it from the rest of the pass.
func (s *Scanner) resolve(ctx context.Context, key domain.SelectionKey) (domain.SendJob, bool, error) {
	artifact, err := s.artifacts.GetOptionArtifact(ctx, key.PollID, key.OptionID)
	if errors.Is(err, domain.ErrNoArtifact) {
		return domain.SendJob{}, false, nil
	}
	if err != nil {
		return domain.SendJob{}, false, fmt.Errorf("artifact lookup: %w", err)
	}

	username, err := s.responses.LatestUsername(ctx, key)
	if err != nil {
		return domain.SendJob{}, false, fmt.Errorf("username lookup: %w", err)
	}

	tok, err := s.issuer.Mint(ctx, key, username)
	if err != nil {
		return domain.SendJob{}, false, fmt.Errorf("mint token: %w", err)
	}

	actionURL := fmt.Sprintf("%s/upload/%s", s.publicBaseURL, tok.Token)
	caption := fmt.Sprintf("Poll: %s\nSelected: %s\n\nTrade screenshot attached. Use the button below to upload your execution.",
		artifact.Question, artifact.OptionText)

	return domain.SendJob{
		RecipientID: key.UserID,
		PayloadRef:  s.payloadRef(artifact.FilePath),
		Caption:     caption,
		ActionURL:   &actionURL,
	}, true, nil
}

// payloadRef prefers the local stored file; remote references pass through
// for the sender to hand to the bot API as a URL.
func (s *Scanner) payloadRef(filePath string) string {
	if strings.HasPrefix(filePath, "http://") || strings.HasPrefix(filePath, "https://") {
		return filePath
	}
	return s.store.Abs(filePath)
}

// OnResolveError returns the pending-set error hook wired at construction
// time in main: it logs one line per failed item so a single bad selection
// never halts a pass silently.
func OnResolveError(logger *zap.Logger) func(domain.SelectionKey, error) {
	return func(key domain.SelectionKey, err error) {
		logger.Warn("pending item resolution failed; will retry next scan",
			zap.Int64("poll_id", key.PollID),
			zap.Int64("option_id", key.OptionID),
			zap.Int64("user_id", key.UserID),
			zap.Error(err),
		)
	}
}
