package drainer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/drainer"
	"github.com/tradepoll/delivery-service/internal/queue"
	"github.com/tradepoll/delivery-service/internal/ratelimiter"
	"github.com/tradepoll/delivery-service/internal/repository"
)

// mockSender records dispatches and fails for configured recipients.
type mockSender struct {
	mu        sync.Mutex
	announced []int64
	sent      []int64
	failFor   map[int64]bool

	// onSend, when set, runs inside SendPhoto before recording.
	onSend func()
}

func (m *mockSender) AnnouncePoll(_ context.Context, poll *domain.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announced = append(m.announced, poll.ID)
	return nil
}

func (m *mockSender) SendPhoto(_ context.Context, recipientID int64, _, _ string, _ *string) error {
	if m.onSend != nil {
		m.onSend()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[recipientID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	m.sent = append(m.sent, recipientID)
	return nil
}

func (m *mockSender) sentIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.sent...)
}

type fixture struct {
	announceQ  *queue.FIFO[domain.AnnounceJob]
	sendQ      *queue.FIFO[domain.SendJob]
	polls      *repository.MockPollRepository
	snd        *mockSender
	d          *drainer.Drainer
	dispatched int
	failed     int
}

func newFixture() *fixture {
	f := &fixture{
		announceQ: queue.NewFIFO[domain.AnnounceJob](),
		sendQ:     queue.NewFIFO[domain.SendJob](),
		polls:     repository.NewMockPollRepository(),
		snd:       &mockSender{failFor: map[int64]bool{}},
	}
	f.d = drainer.New(
		f.announceQ, f.sendQ, f.polls, f.snd,
		ratelimiter.New(1000, 1000),
		500*time.Millisecond, time.Second,
		zap.NewNop(),
		drainer.MetricHooks{
			OnDispatched: func(ratelimiter.Kind, time.Duration) { f.dispatched++ },
			OnFailed:     func(ratelimiter.Kind) { f.failed++ },
		},
	)
	return f
}

func TestDrainer_SendDrainsEntireBacklogInOneTick(t *testing.T) {
	f := newFixture()

	for i := int64(1); i <= 10; i++ {
		f.sendQ.Push(domain.SendJob{RecipientID: i, PayloadRef: "ref.png"})
	}

	f.d.DrainSend(context.Background())

	if f.sendQ.Len() != 0 {
		t.Fatalf("tick must fully flush the backlog, %d left", f.sendQ.Len())
	}
	sent := f.snd.sentIDs()
	if len(sent) != 10 {
		t.Fatalf("expected 10 dispatches, got %d", len(sent))
	}
	// Strict FIFO per queue.
	for i, id := range sent {
		if id != int64(i+1) {
			t.Fatalf("dispatch order broken at %d: got %d", i, id)
		}
	}
}

func TestDrainer_SendFailureDoesNotStopTickOrRequeue(t *testing.T) {
	f := newFixture()
	f.snd.failFor[2] = true

	for i := int64(1); i <= 3; i++ {
		f.sendQ.Push(domain.SendJob{RecipientID: i, PayloadRef: "ref.png"})
	}

	f.d.DrainSend(context.Background())

	sent := f.snd.sentIDs()
	if len(sent) != 2 || sent[0] != 1 || sent[1] != 3 {
		t.Fatalf("remaining jobs must still be dispatched, got %v", sent)
	}
	if f.sendQ.Len() != 0 {
		t.Fatal("failed job must not be re-queued")
	}
	if f.failed != 1 || f.dispatched != 2 {
		t.Fatalf("hooks: dispatched=%d failed=%d", f.dispatched, f.failed)
	}

	// The next tick does not see the failed job again.
	f.d.DrainSend(context.Background())
	if got := f.snd.sentIDs(); len(got) != 2 {
		t.Fatalf("no retry expected, got %v", got)
	}
}

// TestDrainer_MidDrainPushNotLost: a job pushed while the tick is draining
// is either dispatched this tick or left for the next one, never dropped.
func TestDrainer_MidDrainPushNotLost(t *testing.T) {
	f := newFixture()

	var once sync.Once
	f.snd.onSend = func() {
		once.Do(func() {
			f.sendQ.Push(domain.SendJob{RecipientID: 99, PayloadRef: "late.png"})
		})
	}
	f.sendQ.Push(domain.SendJob{RecipientID: 1, PayloadRef: "ref.png"})

	f.d.DrainSend(context.Background())
	f.d.DrainSend(context.Background()) // next tick picks up anything deferred

	seen := map[int64]bool{}
	for _, id := range f.snd.sentIDs() {
		seen[id] = true
	}
	if !seen[1] || !seen[99] {
		t.Fatalf("mid-drain push lost: sent=%v", f.snd.sentIDs())
	}
	if f.sendQ.Len() != 0 {
		t.Fatalf("queue should be empty, %d left", f.sendQ.Len())
	}
}

func TestDrainer_AnnounceLoadsPollFresh(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	poll := &domain.Poll{
		Question: "Which setup?",
		Type:     domain.PollTypeSingle,
		Options:  []domain.Option{{Text: "Long EURUSD"}},
	}
	if err := f.polls.CreatePoll(ctx, poll); err != nil {
		t.Fatal(err)
	}
	f.announceQ.Push(domain.AnnounceJob{PollID: poll.ID})

	f.d.DrainAnnounce(ctx)

	if len(f.snd.announced) != 1 || f.snd.announced[0] != poll.ID {
		t.Fatalf("expected announcement for poll %d, got %v", poll.ID, f.snd.announced)
	}
	if f.announceQ.Len() != 0 {
		t.Fatal("announce queue should be drained")
	}
}

func TestDrainer_AnnounceUnknownPollDropped(t *testing.T) {
	f := newFixture()

	f.announceQ.Push(domain.AnnounceJob{PollID: 404})
	f.announceQ.Push(domain.AnnounceJob{PollID: 405})

	f.d.DrainAnnounce(context.Background())

	if f.announceQ.Len() != 0 {
		t.Fatal("unresolvable jobs must be dropped, not re-queued")
	}
	if f.failed != 2 {
		t.Fatalf("expected 2 failure hook calls, got %d", f.failed)
	}
}

func TestDrainer_EmptyTickDoesNotBlock(t *testing.T) {
	f := newFixture()

	done := make(chan struct{})
	go func() {
		f.d.DrainSend(context.Background())
		f.d.DrainAnnounce(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain of an empty queue must return immediately")
	}
}
