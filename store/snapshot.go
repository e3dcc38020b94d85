package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/storage"
)

// snapshot is the on-disk form of a Store. Processed runs parallel to
// RawText; a null entry means the record has no computed data.
type snapshot struct {
	RawText   []core.Envelope      `json:"raw_text"`
	Processed []*core.ComputedData `json:"processed"`
	Length    int                  `json:"length"`
}

// Load opens the store backed by path. Load never fails because of the file:
// a missing, empty, or unreadable snapshot yields an empty store and a
// warning. A missing file is created so that later saves have somewhere to
// go; an existing file that cannot be parsed is left untouched until the
// next Save overwrites it. Only invalid options return an error.
func Load(path string, opts ...Option) (*Store, error) {
	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	s.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn("snapshot not found, starting empty", "path", path)
		if err := createEmpty(path); err != nil {
			s.logger.Warn("failed to create snapshot file", "path", path, "err", err)
		}
		return s, nil
	case err != nil:
		s.logger.Warn("failed to read snapshot, starting empty", "path", path, "err", err)
		return s, nil
	case len(bytes.TrimSpace(data)) == 0:
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("failed to parse snapshot, starting empty", "path", path, "err", err)
		return s, nil
	}
	s.restore(&snap)
	s.logger.Info("loaded snapshot", "path", path, "records", len(s.records))
	return s, nil
}

// restore rebuilds the sequence and index from snap. Called before the store
// is shared, so it takes no lock.
func (s *Store) restore(snap *snapshot) {
	if snap.Length != len(snap.RawText) {
		s.logger.Warn("snapshot length disagrees with record count",
			"length", snap.Length, "records", len(snap.RawText))
	}
	if len(snap.Processed) != len(snap.RawText) {
		s.logger.Warn("computed data count disagrees with record count, realigning",
			"computed", len(snap.Processed), "records", len(snap.RawText))
	}

	s.records = make([]record, 0, len(snap.RawText))
	for i, env := range snap.RawText {
		rec := record{page: env.Page}
		if i < len(snap.Processed) && snap.Processed[i] != nil {
			if err := core.ValidateComputedData(snap.Processed[i]); err != nil {
				s.logger.Warn("dropping invalid computed data", "position", i, "err", err)
			} else {
				rec.computed = snap.Processed[i]
			}
		}
		s.records = append(s.records, rec)
	}

	s.index = make(map[core.UniqueKey]int, len(s.records))
	for i, rec := range s.records {
		key := rec.page.Key()
		if prev, ok := s.index[key]; ok {
			s.logger.Warn("duplicate key in snapshot, later record wins",
				"key", key, "previous", prev, "position", i)
		}
		s.index[key] = i
	}
}

// Save writes the whole store to its backing file. The snapshot is written
// to a temporary file in the same directory and renamed over the target, so
// a crash mid-save leaves the previous snapshot intact.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return storage.ErrNotBacked
	}

	snap := snapshot{
		RawText:   make([]core.Envelope, len(s.records)),
		Processed: make([]*core.ComputedData, len(s.records)),
		Length:    len(s.records),
	}
	for i, rec := range s.records {
		snap.RawText[i] = core.Envelope{Page: rec.page}
		snap.Processed[i] = rec.computed
	}

	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %w", storage.ErrIOFailure, err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIOFailure, err)
	}
	s.logger.Debug("saved snapshot", "path", s.path, "records", len(s.records), "bytes", len(data))
	return nil
}

func createEmpty(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
