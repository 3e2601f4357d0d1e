package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
)

// In-memory implementations of the repository interfaces used in unit tests.
// No mock-generation library needed; behaviour mirrors the pg implementations
// closely enough for the pipeline tests, including the CAS redeem semantics.

// MockPollRepository is a thread-safe in-memory PollRepository.
type MockPollRepository struct {
	mu       sync.RWMutex
	polls    map[int64]*domain.Poll
	nextPoll int64
	nextOpt  int64

	CreateErr error
}

func NewMockPollRepository() *MockPollRepository {
	return &MockPollRepository{polls: make(map[int64]*domain.Poll), nextPoll: 1, nextOpt: 1}
}

func (m *MockPollRepository) CreatePoll(_ context.Context, poll *domain.Poll) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	poll.ID = m.nextPoll
	m.nextPoll++
	poll.CreatedAt = time.Now().UTC()
	for i := range poll.Options {
		poll.Options[i].ID = m.nextOpt
		poll.Options[i].PollID = poll.ID
		m.nextOpt++
	}
	clone := clonePoll(poll)
	m.polls[poll.ID] = clone
	return nil
}

func (m *MockPollRepository) GetPoll(_ context.Context, pollID int64) (*domain.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.polls[pollID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePoll(p), nil
}

func (m *MockPollRepository) ListPolls(_ context.Context, f domain.ListFilter) ([]*domain.Poll, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Poll
	// Newest first, matching the pg implementation's ORDER BY poll_id DESC.
	for id := m.nextPoll - 1; id >= 1; id-- {
		if p, ok := m.polls[id]; ok {
			result = append(result, clonePoll(p))
		}
	}
	if f.Offset > len(result) {
		return nil, nil
	}
	result = result[f.Offset:]
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result, nil
}

func clonePoll(p *domain.Poll) *domain.Poll {
	clone := *p
	clone.Options = append([]domain.Option(nil), p.Options...)
	return &clone
}

// MockResponseRepository is a thread-safe in-memory ResponseRepository.
type MockResponseRepository struct {
	mu        sync.RWMutex
	responses map[domain.SelectionKey]*domain.Response

	RecordErr  error
	ConfirmErr error
}

func NewMockResponseRepository() *MockResponseRepository {
	return &MockResponseRepository{responses: make(map[domain.SelectionKey]*domain.Response)}
}

func (m *MockResponseRepository) RecordResponse(_ context.Context, r *domain.Response) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.responses[r.Key]; exists {
		return domain.ErrDuplicateResponse
	}
	clone := *r
	clone.RespondedAt = time.Now().UTC()
	m.responses[r.Key] = &clone
	return nil
}

func (m *MockResponseRepository) Confirm(_ context.Context, key domain.SelectionKey) error {
	if m.ConfirmErr != nil {
		return m.ConfirmErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[key]
	if !ok {
		return domain.ErrNotFound
	}
	r.Confirmed = true
	return nil
}

func (m *MockResponseRepository) LatestUsername(_ context.Context, key domain.SelectionKey) (*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.responses[key]; ok && r.Username != nil {
		u := *r.Username
		return &u, nil
	}
	return nil, nil
}

// Confirmed reports the stored confirmed flag; test helper.
func (m *MockResponseRepository) Confirmed(key domain.SelectionKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.responses[key]
	return ok && r.Confirmed
}

// MockArtifactRepository is a thread-safe in-memory ArtifactRepository.
type MockArtifactRepository struct {
	mu         sync.RWMutex
	artifacts  map[[2]int64]*domain.Artifact
	executions map[domain.SelectionKey]*domain.Execution

	GetErr error
}

func NewMockArtifactRepository() *MockArtifactRepository {
	return &MockArtifactRepository{
		artifacts:  make(map[[2]int64]*domain.Artifact),
		executions: make(map[domain.SelectionKey]*domain.Execution),
	}
}

func (m *MockArtifactRepository) UpsertOptionArtifact(_ context.Context, pollID, optionID int64, filePath string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]int64{pollID, optionID}
	var prev *string
	if existing, ok := m.artifacts[k]; ok {
		p := existing.FilePath
		prev = &p
	}
	m.artifacts[k] = &domain.Artifact{
		Key:      domain.SelectionKey{PollID: pollID, OptionID: optionID},
		FilePath: filePath,
	}
	return prev, nil
}

// SetArtifact seeds an artifact with display context; test helper.
func (m *MockArtifactRepository) SetArtifact(pollID, optionID int64, filePath, question, optionText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[[2]int64{pollID, optionID}] = &domain.Artifact{
		Key:        domain.SelectionKey{PollID: pollID, OptionID: optionID},
		FilePath:   filePath,
		Question:   question,
		OptionText: optionText,
	}
}

func (m *MockArtifactRepository) GetOptionArtifact(_ context.Context, pollID, optionID int64) (*domain.Artifact, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[[2]int64{pollID, optionID}]
	if !ok {
		return nil, domain.ErrNoArtifact
	}
	clone := *a
	return &clone, nil
}

func (m *MockArtifactRepository) RecordExecution(_ context.Context, e *domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	clone.CreatedAt = time.Now().UTC()
	m.executions[e.Key] = &clone
	return nil
}

// Execution returns the stored proof for a selection; test helper.
func (m *MockArtifactRepository) Execution(key domain.SelectionKey) (*domain.Execution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.executions[key]
	if !ok {
		return nil, false
	}
	clone := *e
	return &clone, true
}

// MockTokenRepository is a thread-safe in-memory TokenRepository.
// Redeem performs the same compare-and-set the SQL implementation does:
// the mutex makes the check-and-mark atomic, so concurrent redemption tests
// exercise real first-wins semantics.
type MockTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.UploadToken

	InsertErr error
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{tokens: make(map[string]*domain.UploadToken)}
}

func (m *MockTokenRepository) Insert(_ context.Context, t *domain.UploadToken) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.tokens[t.Token] = &clone
	return nil
}

func (m *MockTokenRepository) Get(_ context.Context, token string) (*domain.UploadToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *MockTokenRepository) Redeem(_ context.Context, token string, now time.Time) (domain.SelectionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return domain.SelectionKey{}, domain.ErrTokenInvalid
	}
	used := now
	t.UsedAt = &used
	return t.Key, nil
}

// Count returns the number of stored tokens; test helper.
func (m *MockTokenRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

var (
	_ PollRepository     = (*MockPollRepository)(nil)
	_ ResponseRepository = (*MockResponseRepository)(nil)
	_ ArtifactRepository = (*MockArtifactRepository)(nil)
	_ TokenRepository    = (*MockTokenRepository)(nil)
)
