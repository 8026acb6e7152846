package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/models"
)

// Fetcher is anything that can produce the current drop collection
type Fetcher interface {
	FetchDrops(ctx context.Context) ([]models.RawDrop, error)
}

// Source serves drops from a snapshot file
type Source struct {
	Filename string
}

// NewSource returns a Source reading filename
func NewSource(filename string) *Source {
	return &Source{Filename: filename}
}

// FetchDrops loads the snapshot and returns its drops
func (s *Source) FetchDrops(ctx context.Context) ([]models.RawDrop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := Load(s.Filename)
	if err != nil {
		return nil, err
	}
	if snap.Drops == nil {
		return []models.RawDrop{}, nil
	}
	return snap.Drops, nil
}

// Refresh fetches from upstream and writes the result to filename
func Refresh(ctx context.Context, upstream Fetcher, filename, origin string) (Snapshot, error) {
	drops, err := upstream.FetchDrops(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to fetch drops")
	}
	snap := Snapshot{
		FetchedAt: time.Now().UTC(),
		Source:    origin,
		Drops:     drops,
	}
	if err := Save(filename, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
