// Package state persists the outcome of the last sync run. The watermark it
// records drives incremental syncs: points at or before it are not written
// again.
package state

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// Status of a finished run
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RunState is the content of the state file
type RunState struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Status        Status    `json:"status"`
	Rows          int       `json:"rows"`
	PointsWritten int       `json:"points_written"`
	PointsFailed  int       `json:"points_failed"`
	// Watermark is the latest point time written successfully by any run
	Watermark time.Time `json:"watermark"`
	Error     string    `json:"error,omitempty"`
}

// Store reads and writes the state file
type Store struct {
	path string
}

// NewStore returns a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location
func (s *Store) Path() string { return s.path }

// Load reads the state file. A missing file yields a zero state and no
// error, which means a first run.
func (s *Store) Load() (*RunState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RunState{}, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read state file").
			WithDetail("path", s.path)
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode state file").
			WithDetail("path", s.path)
	}
	return &st, nil
}

// Save writes st atomically: a temporary file in the same directory is
// renamed over the old state.
func (s *Store) Save(st *RunState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state directory").
			WithDetail("path", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state file").
			WithDetail("path", s.path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state file").WithDetail("path", s.path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to sync state file").WithDetail("path", s.path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state file").WithDetail("path", s.path)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to replace state file").WithDetail("path", s.path)
	}
	return nil
}

// Advance returns the later of the current watermark and t
func (st *RunState) Advance(t time.Time) time.Time {
	if t.After(st.Watermark) {
		return t
	}
	return st.Watermark
}
