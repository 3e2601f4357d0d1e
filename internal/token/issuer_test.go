package token

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/repository"
)

var testKey = domain.SelectionKey{PollID: 1, OptionID: 2, UserID: 100}

func TestIssuer_MintShape(t *testing.T) {
	repo := repository.NewMockTokenRepository()
	iss := NewIssuer(repo, 48*time.Hour)

	username := "trader_joe"
	tok, err := iss.Mint(context.Background(), testKey, &username)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tok.Token) != 32 {
		t.Fatalf("expected 32-char token (24 raw bytes), got %d chars", len(tok.Token))
	}
	if strings.ContainsAny(tok.Token, "+/=") {
		t.Fatalf("token is not URL-safe: %q", tok.Token)
	}
	if tok.Key != testKey {
		t.Fatalf("token bound to wrong selection: %+v", tok.Key)
	}
	if got := tok.ExpiresAt.Sub(tok.CreatedAt); got != 48*time.Hour {
		t.Fatalf("expected 48h expiry window, got %v", got)
	}
	if tok.UsedAt != nil {
		t.Fatal("freshly minted token must be unused")
	}
	if repo.Count() != 1 {
		t.Fatal("expected token to be persisted")
	}
}

func TestIssuer_MintUnique(t *testing.T) {
	repo := repository.NewMockTokenRepository()
	iss := NewIssuer(repo, 48*time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := iss.Mint(context.Background(), testKey, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[tok.Token] {
			t.Fatalf("duplicate token minted: %q", tok.Token)
		}
		seen[tok.Token] = true
	}
}

func TestIssuer_RedeemOnce(t *testing.T) {
	repo := repository.NewMockTokenRepository()
	iss := NewIssuer(repo, 48*time.Hour)

	tok, _ := iss.Mint(context.Background(), testKey, nil)

	key, err := iss.Redeem(context.Background(), tok.Token)
	if err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if key != testKey {
		t.Fatalf("redeemed wrong selection: %+v", key)
	}

	if _, err := iss.Redeem(context.Background(), tok.Token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("second redemption must fail with ErrTokenInvalid, got %v", err)
	}
}

// TestIssuer_ConcurrentRedeemExactlyOneWins races many redeemers on the same
// token; the store's compare-and-set must let exactly one through.
func TestIssuer_ConcurrentRedeemExactlyOneWins(t *testing.T) {
	repo := repository.NewMockTokenRepository()
	iss := NewIssuer(repo, 48*time.Hour)

	tok, _ := iss.Mint(context.Background(), testKey, nil)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := iss.Redeem(context.Background(), tok.Token)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", successes)
	}
}

func TestIssuer_RedeemExpired(t *testing.T) {
	repo := repository.NewMockTokenRepository()
	iss := NewIssuer(repo, 48*time.Hour)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return base }
	tok, _ := iss.Mint(context.Background(), testKey, nil)

	// One second past expiry: permanently invalid.
	iss.now = func() time.Time { return base.Add(48*time.Hour + time.Second) }
	if _, err := iss.Redeem(context.Background(), tok.Token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after expiry, got %v", err)
	}
}

func TestIssuer_PeekDoesNotConsume(t *testing.T) {
	repo := repository.NewMockTokenRepository()
	iss := NewIssuer(repo, 48*time.Hour)

	tok, _ := iss.Mint(context.Background(), testKey, nil)

	for i := 0; i < 3; i++ {
		got, err := iss.Peek(context.Background(), tok.Token)
		if err != nil {
			t.Fatalf("peek %d failed: %v", i, err)
		}
		if got.UsedAt != nil {
			t.Fatal("peek must not mark the token used")
		}
	}

	if _, err := iss.Redeem(context.Background(), tok.Token); err != nil {
		t.Fatalf("token should still be redeemable after peeks: %v", err)
	}
}

func TestIssuer_PeekUnknownToken(t *testing.T) {
	iss := NewIssuer(repository.NewMockTokenRepository(), 48*time.Hour)

	if _, err := iss.Peek(context.Background(), "nope"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for unknown token, got %v", err)
	}
}
