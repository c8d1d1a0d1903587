// Package watermark persists the row-count high-water mark between poll cycles.
package watermark

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrNegativeCount rejects watermark values below zero.
var ErrNegativeCount = errors.New("watermark count must not be negative")

type state struct {
	PrevRowsNumber int64 `json:"prev_rows_number"`
}

// Store persists a single row-count scalar in a one-key JSON file.
type Store struct {
	path string
	log  *zap.Logger
}

func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log.Named("watermark")}
}

// Load returns the persisted count, or 0 when nothing was persisted yet.
func (s *Store) Load() (int64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("watermark file not found, starting from zero", zap.String("path", s.path))
			return 0, nil
		}
		return 0, fmt.Errorf("read watermark %s: %w", s.path, err)
	}

	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return 0, fmt.Errorf("decode watermark %s: %w", s.path, err)
	}
	if st.PrevRowsNumber < 0 {
		return 0, fmt.Errorf("decode watermark %s: %w", s.path, ErrNegativeCount)
	}
	return st.PrevRowsNumber, nil
}

// Save overwrites the persisted count atomically (temp file + rename).
// A failed save must surface so the next cycle re-derives the same delta.
func (s *Store) Save(count int64) error {
	if count < 0 {
		return ErrNegativeCount
	}

	raw, err := json.Marshal(state{PrevRowsNumber: count})
	if err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create watermark temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write watermark temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close watermark temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace watermark %s: %w", s.path, err)
	}

	s.log.Debug("watermark saved", zap.Int64("rows", count))
	return nil
}
