package domain_test

import (
	"testing"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
)

func TestCreatePollRequest_Validate(t *testing.T) {
	valid := domain.CreatePollRequest{
		Question: "Which setup do we trade this week?",
		Type:     domain.PollTypeSingle,
		Options:  []string{"Long EURUSD", "Short GBPJPY"},
	}

	t.Run("valid request passes", func(t *testing.T) {
		r := valid
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty question", func(t *testing.T) {
		r := valid
		r.Question = "   "
		if err := r.Validate(); err != domain.ErrInvalidQuestion {
			t.Fatalf("expected ErrInvalidQuestion, got %v", err)
		}
	})

	t.Run("empty poll type defaults to single", func(t *testing.T) {
		r := valid
		r.Type = ""
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.Type != domain.PollTypeSingle {
			t.Fatalf("expected type to default to single, got %q", r.Type)
		}
	})

	t.Run("invalid poll type", func(t *testing.T) {
		r := valid
		r.Type = "ranked"
		if err := r.Validate(); err != domain.ErrInvalidPollType {
			t.Fatalf("expected ErrInvalidPollType, got %v", err)
		}
	})

	t.Run("no options", func(t *testing.T) {
		r := valid
		r.Options = nil
		if err := r.Validate(); err != domain.ErrInvalidOptions {
			t.Fatalf("expected ErrInvalidOptions, got %v", err)
		}
	})

	t.Run("blank option text", func(t *testing.T) {
		r := valid
		r.Options = []string{"Long EURUSD", " "}
		if err := r.Validate(); err != domain.ErrInvalidOptions {
			t.Fatalf("expected ErrInvalidOptions, got %v", err)
		}
	})
}

func TestUploadToken_Valid(t *testing.T) {
	now := time.Now().UTC()
	used := now.Add(-time.Minute)

	tests := []struct {
		name  string
		token domain.UploadToken
		want  bool
	}{
		{"unused and unexpired", domain.UploadToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"already used", domain.UploadToken{ExpiresAt: now.Add(time.Hour), UsedAt: &used}, false},
		{"expired one second ago", domain.UploadToken{ExpiresAt: now.Add(-time.Second)}, false},
		{"expires exactly now", domain.UploadToken{ExpiresAt: now}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.token.Valid(now); got != tc.want {
				t.Fatalf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}
