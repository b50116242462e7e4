// Package localstore keeps named JSON slots in a data directory on the local device.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/and161185/outfit-studio/internal/errs"
)

// Slot names used by the local gateway.
const (
	SlotUsers    = "users"
	SlotProjects = "projects"
	SlotSession  = "session"
)

// DefaultMaxSlotBytes mirrors the per-origin quota of browser storage.
const DefaultMaxSlotBytes int64 = 5 << 20

// Store reads and writes slots as <dir>/<slot>.json.
type Store struct {
	dir      string
	maxBytes int64

	mu        sync.Mutex
	writeFile func(path string, data []byte) error
}

// New creates the data directory if needed. maxSlotBytes <= 0 selects DefaultMaxSlotBytes.
func New(dir string, maxSlotBytes int64) (*Store, error) {
	if dir == "" {
		return nil, errs.Validation("empty data directory")
	}
	if maxSlotBytes <= 0 {
		maxSlotBytes = DefaultMaxSlotBytes
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxSlotBytes, writeFile: writeAtomic}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Load decodes slot into v. It reports false when the slot has never been written.
func (s *Store) Load(slot string, v any) (bool, error) {
	p, err := s.path(slot)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read slot %s: %w", slot, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode slot %s: %w", slot, err)
	}
	return true, nil
}

// Save replaces slot with v. Oversized payloads and a full disk yield errs.ErrCapacity;
// the previous slot content is left intact in both cases.
func (s *Store) Save(slot string, v any) error {
	p, err := s.path(slot)
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", slot, err)
	}
	if int64(len(b)) > s.maxBytes {
		return fmt.Errorf("%w: slot %s needs %d bytes, quota is %d", errs.ErrCapacity, slot, len(b), s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeFile(p, b); err != nil {
		if isOutOfSpace(err) {
			return fmt.Errorf("%w: %w", errs.ErrCapacity, err)
		}
		return fmt.Errorf("write slot %s: %w", slot, err)
	}
	return nil
}

// Remove deletes slot; a missing slot is not an error.
func (s *Store) Remove(slot string) error {
	p, err := s.path(slot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) path(slot string) (string, error) {
	if slot == "" || slot != filepath.Base(slot) || slot == "." || slot == ".." {
		return "", errs.Validation("bad slot name %q", slot)
	}
	return filepath.Join(s.dir, slot+".json"), nil
}

// writeAtomic writes to a temp file in the same directory and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	cleanup := func() { _ = os.Remove(name) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(name, 0o600); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func isOutOfSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT)
}
