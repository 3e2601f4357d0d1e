package domain

import (
	"strings"
	"time"
)

// PollType controls how many options a single user may hold at once.
type PollType string

const (
	PollTypeSingle PollType = "single"
	PollTypeMulti  PollType = "multi"
)

func (t PollType) IsValid() bool {
	switch t {
	case PollTypeSingle, PollTypeMulti:
		return true
	}
	return false
}

// Poll is the core aggregate: a question plus its selectable options.
type Poll struct {
	ID        int64     `json:"poll_id"`
	Question  string    `json:"question"`
	Type      PollType  `json:"poll_type"`
	CreatedAt time.Time `json:"created_at"`
	Options   []Option  `json:"options,omitempty"`
}

type Option struct {
	ID     int64  `json:"option_id"`
	PollID int64  `json:"poll_id"`
	Text   string `json:"option_text"`
}

// CreatePollRequest is the inbound payload for poll creation.
type CreatePollRequest struct {
	Question string   `json:"question"`
	Type     PollType `json:"poll_type"`
	Options  []string `json:"options"`
}

func (r *CreatePollRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrInvalidQuestion
	}
	if r.Type == "" {
		r.Type = PollTypeSingle
	}
	if !r.Type.IsValid() {
		return ErrInvalidPollType
	}
	if len(r.Options) == 0 {
		return ErrInvalidOptions
	}
	for _, opt := range r.Options {
		if strings.TrimSpace(opt) == "" {
			return ErrInvalidOptions
		}
	}
	return nil
}

// ListFilter holds query parameters for paginated poll listing.
type ListFilter struct {
	Limit  int
	Offset int
}
