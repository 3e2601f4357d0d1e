// Package storage is the local file store for admin reference images and
// user execution proofs. All files live flat under one root directory and
// are referenced elsewhere by bare file name.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
)

const stampLayout = "20060102T150405Z"

type Store struct {
	root string
}

// New creates the root directory if needed and returns the store.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{root: abs}, nil
}

// Save writes the reader's content under the given file name and returns the
// name actually used (always base-name only).
func (s *Store) Save(name string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	f, err := os.Create(filepath.Join(s.root, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	return name, nil
}

// Remove deletes a stored file. Missing files are not an error: replacement
// races with manual cleanup are tolerated.
func (s *Store) Remove(name string) error {
	err := os.Remove(filepath.Join(s.root, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Abs returns the absolute path of a stored file. Base-name only, so stored
// references can never escape the root.
func (s *Store) Abs(name string) string {
	return filepath.Join(s.root, filepath.Base(name))
}

// Exists reports whether the file is present on disk.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Abs(name))
	return err == nil
}

// Root returns the store's absolute root directory (for the static file server).
func (s *Store) Root() string {
	return s.root
}

// ArtifactFileName composes the stored name for an option's reference image.
func ArtifactFileName(pollID, optionID int64, original string, now time.Time) string {
	return fmt.Sprintf("poll%d_opt%d_%s__%s",
		pollID, optionID, now.UTC().Format(stampLayout), Sanitize(original))
}

// ExecutionFileName composes the stored name for a user's proof upload.
func ExecutionFileName(key domain.SelectionKey, original string, now time.Time) string {
	return fmt.Sprintf("exec_p%d_o%d_u%d_%s__%s",
		key.PollID, key.OptionID, key.UserID, now.UTC().Format(stampLayout), Sanitize(original))
}

// Sanitize reduces a client-supplied file name to a safe flat name:
// path separators stripped, anything outside [A-Za-z0-9._-] replaced.
func Sanitize(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "upload"
	}
	return out
}
