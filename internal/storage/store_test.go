package storage_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/storage"
)

func TestStore_SaveRemoveExists(t *testing.T) {
	s, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	name, err := s.Save("ref.png", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !s.Exists(name) {
		t.Fatal("saved file should exist")
	}

	data, err := os.ReadFile(s.Abs(name))
	if err != nil || string(data) != "content" {
		t.Fatalf("read back: %q, err=%v", data, err)
	}

	if err := s.Remove(name); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Exists(name) {
		t.Fatal("removed file should not exist")
	}

	// Removing again is not an error.
	if err := s.Remove(name); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestStore_SaveStripsDirectories(t *testing.T) {
	s, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	name, err := s.Save("../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if name != "passwd" {
		t.Fatalf("expected base name only, got %q", name)
	}
	if !strings.HasPrefix(s.Abs("../../" + name), s.Root()) {
		t.Fatal("Abs must stay inside the store root")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"screenshot.png", "screenshot.png"},
		{"my file (1).PNG", "my_file__1_.PNG"},
		{"../../evil.sh", "evil.sh"},
		{"héllo wörld.jpg", "h_llo_w_rld.jpg"},
		{"...", "upload"},
		{"", "upload"},
	}
	for _, tc := range tests {
		if got := storage.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestComposedFileNames(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	key := domain.SelectionKey{PollID: 1, OptionID: 2, UserID: 100}

	art := storage.ArtifactFileName(1, 2, "chart.png", now)
	if art != "poll1_opt2_20250601T123045Z__chart.png" {
		t.Fatalf("unexpected artifact name %q", art)
	}

	exec := storage.ExecutionFileName(key, "proof.jpg", now)
	if exec != "exec_p1_o2_u100_20250601T123045Z__proof.jpg" {
		t.Fatalf("unexpected execution name %q", exec)
	}
}
