package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const FileName = "history.json"

// emptyStore is how an empty history is laid out on disk.
var emptyStore = []byte("[\n\n]")

var (
	ErrNotFound         = errors.New("history record not found")
	ErrAlreadyCompleted = errors.New("history record already completed")
	ErrNoPending        = errors.New("no pending downloads in history")
)

// Store persists records as a single JSON array. Every mutation reads the
// whole file and rewrites it; a mutex serializes tasks of one process.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store backed by path, creating an empty history if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating history directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, emptyStore, 0644); err != nil {
			return nil, fmt.Errorf("error creating history file: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Add appends rec, assigning an ID when it has none, and returns the ID.
func (s *Store) Add(rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	records = append(records, rec)
	return rec.ID, s.save(records)
}

// MarkCompleted moves a Pending record to Completed. A record can only complete once.
func (s *Store) MarkCompleted(id string) error {
	return s.update(id, func(r *Record) error {
		if r.Completed() {
			return fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
		}
		r.Status = StatusCompleted
		r.DownloadedBytes = 0
		return nil
	})
}

// UpdateProgress stores how many bytes a Pending record has on disk.
func (s *Store) UpdateProgress(id string, downloaded int64) error {
	return s.update(id, func(r *Record) error {
		if r.Completed() {
			return fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
		}
		r.DownloadedBytes = downloaded
		return nil
	})
}

func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// RecentPending returns the Pending record with the latest timestamp.
func (s *Store) RecentPending() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	var latest *Record
	for i := range records {
		r := &records[i]
		if r.Completed() {
			continue
		}
		if latest == nil || !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	if latest == nil {
		return Record{}, ErrNoPending
	}
	return *latest, nil
}

// List returns every record in insertion order.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

func (s *Store) update(id string, mutate func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		if err := mutate(&records[i]); err != nil {
			return err
		}
		return s.save(records)
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading history: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing history %s: %w", s.path, err)
	}
	return records, nil
}

func (s *Store) save(records []Record) error {
	data := emptyStore
	if len(records) > 0 {
		var err error
		data, err = json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding history: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("error writing history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("error writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("error writing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("error writing history: %w", err)
	}
	return nil
}
