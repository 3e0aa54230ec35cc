// Package store persists and restores the profile (§4.3, §6) as JSON on
// disk. This is the concrete implementation of mixcore.ProfileStore, in the
// shape of the teacher's own Serializer: marshal/unmarshal through
// encoding/json, pretty-printed, atomic-rename on save so a crash mid-write
// never corrupts the file the coordinator reloads from on the next start.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaban/mixcore/profile"
)

// FileStore persists a profile to a single JSON file at Path.
type FileStore struct {
	Path string
}

// New returns a FileStore rooted at path.
func New(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads and parses the profile at Path. A missing file is not an
// error: callers get a fresh, empty profile to bootstrap from.
func (s *FileStore) Load() (*profile.Profile, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return profile.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", s.Path, err)
	}
	p := profile.New()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("store: parse %q: %w", s.Path, err)
	}
	return p, nil
}

// Save writes p to Path, via a temp file in the same directory followed by
// an atomic rename, so a concurrent reader (or a crash) never observes a
// half-written profile.
func (s *FileStore) Save(p *profile.Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal profile: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".profile-*.json.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("store: rename into place: %w", err)
	}
	return nil
}
