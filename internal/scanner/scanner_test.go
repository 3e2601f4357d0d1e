package scanner_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/pending"
	"github.com/tradepoll/delivery-service/internal/queue"
	"github.com/tradepoll/delivery-service/internal/repository"
	"github.com/tradepoll/delivery-service/internal/scanner"
	"github.com/tradepoll/delivery-service/internal/storage"
	"github.com/tradepoll/delivery-service/internal/token"
)

type fixture struct {
	set       *pending.Set
	artifacts *repository.MockArtifactRepository
	responses *repository.MockResponseRepository
	tokens    *repository.MockTokenRepository
	sendQ     *queue.FIFO[domain.SendJob]
	scanner   *scanner.Scanner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		set:       pending.New(nil),
		artifacts: repository.NewMockArtifactRepository(),
		responses: repository.NewMockResponseRepository(),
		tokens:    repository.NewMockTokenRepository(),
		sendQ:     queue.NewFIFO[domain.SendJob](),
	}
	f.scanner = scanner.New(
		f.set, f.artifacts, f.responses,
		token.NewIssuer(f.tokens, 48*time.Hour),
		f.sendQ, store,
		"https://polls.example.com/",
		15*time.Second, 120*time.Hour,
		zap.NewNop(),
	)
	return f
}

// TestScanner_PendingUntilArtifactAppears walks the main delivery scenario:
// a confirmed selection waits through scans with no artifact, then the
// artifact appears and the next scan mints a token, queues exactly one send
// job, and removes the pending entry.
func TestScanner_PendingUntilArtifactAppears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := domain.SelectionKey{PollID: 1, OptionID: 2, UserID: 100}

	f.set.Add(key)

	f.scanner.Scan(ctx)
	if f.sendQ.Len() != 0 {
		t.Fatal("no artifact yet: nothing should be queued")
	}
	if f.set.Len() != 1 {
		t.Fatal("selection must stay pending while no artifact exists")
	}
	if f.tokens.Count() != 0 {
		t.Fatal("no token should be minted before an artifact exists")
	}

	f.artifacts.SetArtifact(1, 2, "poll1_opt2_ref.png", "Which setup?", "Long EURUSD")

	f.scanner.Scan(ctx)
	if f.set.Len() != 0 {
		t.Fatal("pending entry must be removed once the job is produced")
	}
	if f.tokens.Count() != 1 {
		t.Fatalf("expected one minted token, got %d", f.tokens.Count())
	}

	job, ok := f.sendQ.TryPop()
	if !ok {
		t.Fatal("expected exactly one send job")
	}
	if _, more := f.sendQ.TryPop(); more {
		t.Fatal("expected exactly one send job, got more")
	}

	if job.RecipientID != 100 {
		t.Fatalf("job addressed to %d, want 100", job.RecipientID)
	}
	if !strings.Contains(job.Caption, "Which setup?") || !strings.Contains(job.Caption, "Long EURUSD") {
		t.Fatalf("caption missing poll context: %q", job.Caption)
	}
	if job.ActionURL == nil || !strings.HasPrefix(*job.ActionURL, "https://polls.example.com/upload/") {
		t.Fatalf("unexpected action URL: %v", job.ActionURL)
	}
	if !strings.HasSuffix(job.PayloadRef, "poll1_opt2_ref.png") {
		t.Fatalf("payload should point at the stored artifact, got %q", job.PayloadRef)
	}

	// A second scan with nothing pending queues nothing new.
	f.scanner.Scan(ctx)
	if f.sendQ.Len() != 0 || f.tokens.Count() != 1 {
		t.Fatal("delivered selection must not be delivered again")
	}
}

func TestScanner_TokenBoundToSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := domain.SelectionKey{PollID: 3, OptionID: 7, UserID: 42}

	username := "trader_joe"
	_ = f.responses.RecordResponse(ctx, &domain.Response{Key: key, Username: &username})
	f.artifacts.SetArtifact(3, 7, "ref.png", "Q", "O")
	f.set.Add(key)

	f.scanner.Scan(ctx)

	job, ok := f.sendQ.TryPop()
	if !ok || job.ActionURL == nil {
		t.Fatal("expected a job with an action URL")
	}
	tokenStr := (*job.ActionURL)[strings.LastIndex(*job.ActionURL, "/")+1:]

	stored, err := f.tokens.Get(ctx, tokenStr)
	if err != nil {
		t.Fatalf("minted token not persisted: %v", err)
	}
	if stored.Key != key {
		t.Fatalf("token bound to %+v, want %+v", stored.Key, key)
	}
	if stored.Username == nil || *stored.Username != username {
		t.Fatalf("token should carry the latest username, got %v", stored.Username)
	}
}

func TestScanner_RemotePayloadPassesThrough(t *testing.T) {
	f := newFixture(t)
	key := domain.SelectionKey{PollID: 1, OptionID: 2, UserID: 100}
	f.artifacts.SetArtifact(1, 2, "https://cdn.example.com/ref.png", "Q", "O")
	f.set.Add(key)

	f.scanner.Scan(context.Background())

	job, ok := f.sendQ.TryPop()
	if !ok {
		t.Fatal("expected one job")
	}
	if job.PayloadRef != "https://cdn.example.com/ref.png" {
		t.Fatalf("remote reference must pass through unchanged, got %q", job.PayloadRef)
	}
}

// TestScanner_LookupFailureLeavesItemPending: an artifact-repo error for one
// item must not abort the pass, and the item is retried on the next tick.
func TestScanner_LookupFailureLeavesItemPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := domain.SelectionKey{PollID: 1, OptionID: 2, UserID: 100}
	f.set.Add(key)

	f.artifacts.GetErr = context.DeadlineExceeded
	f.scanner.Scan(ctx)

	if f.set.Len() != 1 {
		t.Fatal("item must stay pending after a lookup failure")
	}
	if f.sendQ.Len() != 0 {
		t.Fatal("no job may be queued for a failed lookup")
	}

	// Failure clears, artifact exists: next tick delivers.
	f.artifacts.GetErr = nil
	f.artifacts.SetArtifact(1, 2, "ref.png", "Q", "O")
	f.scanner.Scan(ctx)

	if f.set.Len() != 0 || f.sendQ.Len() != 1 {
		t.Fatalf("expected recovery on next scan: pending=%d queued=%d", f.set.Len(), f.sendQ.Len())
	}
}
