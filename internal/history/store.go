package history

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/doridoridoriand/holdwatch/internal/log"
)

var (
	// ErrHistoryCorrupt marks an existing history file that could not be parsed.
	// Store recovers from it by starting over with an empty history.
	ErrHistoryCorrupt = errors.New("history file corrupt")
	// ErrPersistenceWrite marks a failed history write.
	ErrPersistenceWrite = errors.New("history write failed")
)

// WriteError reports a history file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write history %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrPersistenceWrite }

// Store is the change log on disk. Every Record call is a full
// read-modify-write cycle; the last persisted history is kept for readers
// such as the dashboard.
type Store struct {
	mu     sync.RWMutex
	path   string
	policy LogPolicy
	logger *log.Logger
	last   []Observation
}

// NewStore returns a store for path using policy. logger may be nil.
func NewStore(path string, policy LogPolicy, logger *log.Logger) *Store {
	return &Store{path: path, policy: policy, logger: logger}
}

// Path returns the history file location.
func (s *Store) Path() string { return s.path }

// Policy returns the retention policy in use.
func (s *Store) Policy() LogPolicy { return s.policy }

// Load reads the history file. A missing or empty file is an empty history.
// A file that cannot be parsed returns an empty history and an error
// wrapping ErrHistoryCorrupt.
func (s *Store) Load() ([]Observation, error) {
	h, err := s.read()
	s.mu.Lock()
	s.last = h
	s.mu.Unlock()
	return copyHistory(h), err
}

func (s *Store) read() ([]Observation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrHistoryCorrupt, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	h, err := s.policy.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryCorrupt, err)
	}
	return h, nil
}

// loadTolerant never fails; unreadable history is logged and dropped.
func (s *Store) loadTolerant() []Observation {
	h, err := s.read()
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("history unreadable, starting empty", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return nil
	}
	return h
}

// RecordSuccess appends a successful value, annotated against the previous
// successful value when the policy annotates.
func (s *Store) RecordSuccess(value int64, now time.Time) (Observation, error) {
	h := s.loadTolerant()
	o := Observation{
		Status:    StatusSuccess,
		Value:     value,
		Timestamp: now.Truncate(s.policy.Precision()),
		Message:   s.policy.Annotate(h, value),
	}
	if err := s.persist(s.policy.Insert(h, o)); err != nil {
		return Observation{}, err
	}
	return o, nil
}

// RecordSample is RecordSuccess under its series name.
func (s *Store) RecordSample(value int64, now time.Time) (Observation, error) {
	return s.RecordSuccess(value, now)
}

// RecordError appends a failure when the policy records failures. The
// second result is false when nothing was written.
func (s *Store) RecordError(errText string, now time.Time) (Observation, bool, error) {
	if !s.policy.RecordsErrors() {
		return Observation{}, false, nil
	}
	h := s.loadTolerant()
	o := Observation{
		Status:    StatusError,
		Timestamp: now.Truncate(s.policy.Precision()),
		Message:   ErrorMessage(errText),
	}
	if err := s.persist(s.policy.Insert(h, o)); err != nil {
		return Observation{}, false, err
	}
	return o, true, nil
}

// Snapshot returns the history as of the last load or write.
func (s *Store) Snapshot() []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHistory(s.last)
}

func (s *Store) persist(h []Observation) error {
	data, err := s.policy.Encode(h)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	if err := atomicWrite(s.path, data); err != nil {
		if s.logger != nil {
			s.logger.LogHistoryWrite(s.path, len(h), err)
		}
		return &WriteError{Path: s.path, Err: err}
	}
	if s.logger != nil {
		s.logger.LogHistoryWrite(s.path, len(h), nil)
	}
	s.mu.Lock()
	s.last = h
	s.mu.Unlock()
	return nil
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over path, so readers see either the old or the new file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

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
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func copyHistory(h []Observation) []Observation {
	if len(h) == 0 {
		return nil
	}
	return append([]Observation(nil), h...)
}
