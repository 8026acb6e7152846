// Package store keeps the last fetched drop collection on disk so the
// evaluator can run without reaching the backend.
package store

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/models"
)

// ErrNoSnapshot is returned by Load when the snapshot file does not exist
var ErrNoSnapshot = errors.New("no drop snapshot")

// Snapshot is the serializable form of one fetch
type Snapshot struct {
	FetchedAt time.Time
	Source    string
	Drops     []models.RawDrop
}

// Save writes the snapshot to filename, replacing any previous file
func Save(filename string, snap Snapshot) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create snapshot directory")
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer os.Remove(tmp.Name())

	encoder := gob.NewEncoder(tmp)
	if err := encoder.Encode(snap); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to encode snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write snapshot")
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrap(err, "failed to replace snapshot")
	}
	return nil
}

// Load reads a snapshot written by Save
func Load(filename string) (Snapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, errors.Wrap(ErrNoSnapshot, filename)
		}
		return Snapshot{}, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	var snap Snapshot
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to decode snapshot")
	}

	return snap, nil
}
