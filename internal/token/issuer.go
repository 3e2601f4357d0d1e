// Package token mints and redeems the single-use upload tokens that grant
// access to the proof-upload endpoint for one selection.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/repository"
)

// tokenBytes is the raw entropy per token: 24 bytes = 192 bits, encoded to a
// 32-character URL-safe string. Collision probability is negligible.
const tokenBytes = 24

// Issuer creates and redeems upload tokens. The token TTL is deliberately
// independent of the pending-delivery TTL: one bounds how long an issued
// link stays usable, the other how long delivery keeps being retried.
type Issuer struct {
	repo repository.TokenRepository
	ttl  time.Duration

	now    func() time.Time
	onMint func() // metric hook, no-op by default
}

func NewIssuer(repo repository.TokenRepository, ttl time.Duration) *Issuer {
	return &Issuer{repo: repo, ttl: ttl, now: time.Now, onMint: func() {}}
}

// SetMintHook installs a callback fired after every successful Mint.
func (i *Issuer) SetMintHook(fn func()) {
	if fn != nil {
		i.onMint = fn
	}
}

// Mint generates a fresh token bound to the selection, persists it, and
// returns it. The username is optional display context for the upload form.
func (i *Issuer) Mint(ctx context.Context, key domain.SelectionKey, username *string) (*domain.UploadToken, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := i.now().UTC()
	t := &domain.UploadToken{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		Key:       key,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
	}

	if err := i.repo.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	i.onMint()
	return t, nil
}

// Peek returns the token if it is currently redeemable, without consuming
// it. The upload form uses this so rendering the page does not burn the
// token. Invalid, used, and expired tokens all map to ErrTokenInvalid; the
// caller cannot distinguish them, matching the behavior of Redeem.
func (i *Issuer) Peek(ctx context.Context, token string) (*domain.UploadToken, error) {
	t, err := i.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	if !t.Valid(i.now().UTC()) {
		return nil, domain.ErrTokenInvalid
	}
	return t, nil
}

// Redeem consumes the token, returning the selection it was bound to.
// First successful redemption wins; the store's compare-and-set update
// guarantees a concurrent second attempt observes the token as used.
func (i *Issuer) Redeem(ctx context.Context, token string) (domain.SelectionKey, error) {
	return i.repo.Redeem(ctx, token, i.now().UTC())
}
