package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/echo-trails/pkg/models"
	"github.com/kass/echo-trails/pkg/unlock"
)

func TestSaveAndLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "data", "drops.gob")
	fifty := 50.0

	snap := Snapshot{
		FetchedAt: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
		Source:    "https://echo-trails-backend.vercel.app",
		Drops: []models.RawDrop{
			{
				ID:          "ok",
				Location:    &models.RawLocation{Type: "Point", Coordinates: models.Coordinates(77.5946, 12.9716)},
				Range:       &fifty,
				HiddenUntil: "2025-04-01T10:00:00.000Z",
				Title:       "hello",
			},
			{
				ID:          "bad",
				Location:    &models.RawLocation{Coordinates: []json.RawMessage{json.RawMessage(`"x"`), json.RawMessage(`1`)}},
				HiddenUntil: "2025-04-01T10:00:00.000Z",
			},
			{ID: "empty"},
		},
	}

	require.NoError(t, Save(filename, snap))

	loaded, err := Load(filename)
	require.NoError(t, err)
	assert.True(t, snap.FetchedAt.Equal(loaded.FetchedAt))
	assert.Equal(t, snap.Source, loaded.Source)
	require.Len(t, loaded.Drops, 3)
	assert.Nil(t, loaded.Drops[1].Range)
	assert.Nil(t, loaded.Drops[2].Location)

	// The loaded records evaluate exactly like the originals
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	user := models.GeoPoint{Lat: 12.9716, Lon: 77.5946}
	before, beforeReport := unlock.Filter(user, now, snap.Drops)
	after, afterReport := unlock.Filter(user, now, loaded.Drops)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeReport.Malformed, afterReport.Malformed)
}

func TestSaveOverwrites(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "drops.gob")

	require.NoError(t, Save(filename, Snapshot{Source: "first", Drops: []models.RawDrop{{ID: "a"}, {ID: "b"}}}))
	require.NoError(t, Save(filename, Snapshot{Source: "second", Drops: []models.RawDrop{{ID: "c"}}}))

	loaded, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.Source)
	require.Len(t, loaded.Drops, 1)
	assert.Equal(t, "c", loaded.Drops[0].ID)

	entries, err := os.ReadDir(filepath.Dir(filename))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files should not be left behind")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.gob"))
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestLoadCorrupt(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "corrupt.gob")
	require.NoError(t, os.WriteFile(filename, []byte("not gob"), 0644))

	_, err := Load(filename)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}
