package history

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// Record is one entry of history.json.
type Record struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	FileName        string    `json:"file_name"`
	FileSize        int64     `json:"file_size"`
	FileLocation    string    `json:"file_location"`
	ThreadsUsed     int       `json:"threads_used"`
	Timestamp       time.Time `json:"timestamp"`
	Status          Status    `json:"status"`
	DownloadedBytes int64     `json:"downloaded_bytes,omitempty"`
}

// Path is the destination the record describes.
func (r Record) Path() string {
	return filepath.Join(r.FileLocation, r.FileName)
}

func (r Record) Completed() bool {
	return r.Status == StatusCompleted
}

// NewID returns a time-ordered identifier, falling back to a random one if
// the clock source fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
