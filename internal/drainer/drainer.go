// Package drainer hosts the cooperative scheduler that flushes the two
// outbound queues into the external bot API.
package drainer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/queue"
	"github.com/tradepoll/delivery-service/internal/ratelimiter"
	"github.com/tradepoll/delivery-service/internal/repository"
	"github.com/tradepoll/delivery-service/internal/sender"
)

// MetricHooks carries the dispatch metric callbacks injected by main.
// Using a struct keeps the constructor signature clean; nil hooks are no-ops.
type MetricHooks struct {
	OnDispatched func(kind ratelimiter.Kind, latency time.Duration)
	OnFailed     func(kind ratelimiter.Kind)
}

// Drainer ticks the two queues on independent cadences. Each tick drains the
// entire backlog observed at tick start: jobs are popped and dispatched one
// at a time, synchronously, so a burst of N jobs flushes within one tick
// instead of trickling out one per tick. Dispatch is first-attempt-only; a
// failure is logged and the job dropped, never re-queued, and never stops
// the rest of the tick's drain.
type Drainer struct {
	announceQ *queue.FIFO[domain.AnnounceJob]
	sendQ     *queue.FIFO[domain.SendJob]
	polls     repository.PollRepository
	snd       sender.Sender
	limiter   *ratelimiter.QueueLimiters

	announceInterval time.Duration
	sendInterval     time.Duration
	logger           *zap.Logger
	hooks            MetricHooks
}

func New(
	announceQ *queue.FIFO[domain.AnnounceJob],
	sendQ *queue.FIFO[domain.SendJob],
	polls repository.PollRepository,
	snd sender.Sender,
	limiter *ratelimiter.QueueLimiters,
	announceInterval, sendInterval time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Drainer {
	if hooks.OnDispatched == nil {
		hooks.OnDispatched = func(ratelimiter.Kind, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(ratelimiter.Kind) {}
	}
	return &Drainer{
		announceQ:        announceQ,
		sendQ:            sendQ,
		polls:            polls,
		snd:              snd,
		limiter:          limiter,
		announceInterval: announceInterval,
		sendInterval:     sendInterval,
		logger:           logger,
		hooks:            hooks,
	}
}

// Run ticks both queues until ctx is cancelled. Both drains run on the same
// goroutine, which is why every pop is non-blocking: an empty queue must
// yield the tick immediately so the other queue is not starved.
func (d *Drainer) Run(ctx context.Context) {
	announceTicker := time.NewTicker(d.announceInterval)
	defer announceTicker.Stop()
	sendTicker := time.NewTicker(d.sendInterval)
	defer sendTicker.Stop()

	d.logger.Info("queue drainer started",
		zap.Duration("announce_interval", d.announceInterval),
		zap.Duration("send_interval", d.sendInterval),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("queue drainer stopping")
			return
		case <-announceTicker.C:
			d.DrainAnnounce(ctx)
		case <-sendTicker.C:
			d.DrainSend(ctx)
		}
	}
}

// DrainAnnounce flushes the announce queue. Exported for tick-at-a-time tests.
func (d *Drainer) DrainAnnounce(ctx context.Context) {
	for {
		job, ok := d.announceQ.TryPop()
		if !ok {
			return
		}
		if err := d.limiter.Wait(ctx, ratelimiter.KindAnnounce); err != nil {
			return // shutting down
		}
		start := time.Now()
		if err := d.dispatchAnnounce(ctx, job); err != nil {
			d.logger.Warn("poll announcement dropped",
				zap.Int64("poll_id", job.PollID), zap.Error(err))
			d.hooks.OnFailed(ratelimiter.KindAnnounce)
			continue
		}
		d.hooks.OnDispatched(ratelimiter.KindAnnounce, time.Since(start))
	}
}

// DrainSend flushes the send queue. Exported for tick-at-a-time tests.
func (d *Drainer) DrainSend(ctx context.Context) {
	for {
		job, ok := d.sendQ.TryPop()
		if !ok {
			return
		}
		if err := d.limiter.Wait(ctx, ratelimiter.KindSend); err != nil {
			return // shutting down
		}
		start := time.Now()
		if err := d.snd.SendPhoto(ctx, job.RecipientID, job.PayloadRef, job.Caption, job.ActionURL); err != nil {
			// First-attempt-only: the job is gone. The failure counter is
			// the only trace of the loss.
			d.logger.Warn("send job dropped",
				zap.Int64("recipient_id", job.RecipientID), zap.Error(err))
			d.hooks.OnFailed(ratelimiter.KindSend)
			continue
		}
		d.hooks.OnDispatched(ratelimiter.KindSend, time.Since(start))
	}
}

// dispatchAnnounce loads the poll fresh from the store: the queue carries
// only the ID, keeping announcements consistent with any edits made between
// creation and dispatch.
func (d *Drainer) dispatchAnnounce(ctx context.Context, job domain.AnnounceJob) error {
	poll, err := d.polls.GetPoll(ctx, job.PollID)
	if err != nil {
		return err
	}
	return d.snd.AnnouncePoll(ctx, poll)
}
