package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrInvalidName rejects document names that would escape the data dir.
	ErrInvalidName = errors.New("invalid document name")
)

// Store persists named JSON documents under a single directory, one file per
// document. There is no in-memory cache: every Load re-reads from disk.
//
// All mutations of a document go through its per-document mutex, so two
// concurrent read-modify-write cycles against the same document cannot lose
// an update. Writes go to a temp file first and are renamed into place, so a
// crash mid-write leaves the previous version intact.
type Store struct {
	dir string
	log *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the data directory if needed and returns a store rooted at it.
func New(dir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dir:   dir,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Store) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Save serializes v and overwrites the named document unconditionally.
func (s *Store) Save(name string, v interface{}) error {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()
	return s.write(name, v)
}

// write performs the actual temp-file-and-rename; callers hold the document lock.
func (s *Store) write(name string, v interface{}) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}

	s.log.Debug("document saved", zap.String("document", name), zap.Int("bytes", len(data)))
	return nil
}

// Load reads the named document into v. It returns false when the document
// does not exist; parse and read failures are returned as errors so callers
// can tell "absent" from "broken".
func (s *Store) Load(name string, v interface{}) (bool, error) {
	path, err := s.path(name)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("document corrupt", zap.String("document", name), zap.Error(err))
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// Delete removes the document if present; absent documents are a no-op.
func (s *Store) Delete(name string) error {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Clear resets the document to an empty array.
func (s *Store) Clear(name string) error {
	return s.Save(name, []interface{}{})
}

// Update runs fn while holding the document's write lock. fn performs its own
// Load and returns the value to persist; returning an error aborts without
// writing. This is the serialization point for every read-modify-write cycle
// against a shared document.
func (s *Store) Update(name string, fn func() (interface{}, error)) error {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	v, err := fn()
	if err != nil {
		return err
	}
	return s.write(name, v)
}
