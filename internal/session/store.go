package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/and161185/bookshelf/internal/errs"
)

// Record is what survives between process runs.
type Record struct {
	AccessToken string    `json:"access_token"`
	Username    string    `json:"username,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"` // diagnostics only, the token's exp is authoritative
}

// Store persists the session record.
// Load returns errs.ErrNoSession when nothing is stored.
type Store interface {
	Load() (Record, error)
	Save(Record) error
	Clear() error
}

// ConfigDir returns the per-user configuration directory of the client.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "bookshelf")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bookshelf")
}

// FileStore keeps the record as JSON in a 0600 file.
type FileStore struct {
	Path string
}

// NewFileStore stores token.json inside dir; empty dir means ConfigDir().
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = ConfigDir()
	}
	return &FileStore{Path: filepath.Join(dir, "token.json")}
}

// Load reads the record from disk.
func (s *FileStore) Load() (Record, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, errs.ErrNoSession
	}
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, err
	}
	if r.AccessToken == "" {
		return Record{}, errs.ErrNoSession
	}
	return r, nil
}

// Save writes the record, creating the directory if needed.
func (s *FileStore) Save(r Record) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, b, 0o600)
}

// Clear removes the file; a missing file is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStore returns an empty store, optionally seeded with r.
func NewMemoryStore(r ...Record) *MemoryStore {
	s := &MemoryStore{}
	if len(r) > 0 {
		cp := r[0]
		s.rec = &cp
	}
	return s
}

func (s *MemoryStore) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return Record{}, errs.ErrNoSession
	}
	return *s.rec, nil
}

func (s *MemoryStore) Save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &r
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

// NopStore is used where no persistent storage exists: nothing is ever stored.
type NopStore struct{}

func (NopStore) Load() (Record, error) { return Record{}, errs.ErrNoSession }
func (NopStore) Save(Record) error     { return nil }
func (NopStore) Clear() error          { return nil }
