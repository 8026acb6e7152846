package unlock

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/echo-trails/pkg/geo"
	"github.com/kass/echo-trails/pkg/models"
)

func rangePtr(v float64) *float64 {
	return &v
}

func rawDrop(id string, p models.GeoPoint, rangeMeters float64, hiddenUntil time.Time) models.RawDrop {
	return models.RawDrop{
		ID:          id,
		Location:    &models.RawLocation{Type: "Point", Coordinates: models.Coordinates(p.Lon, p.Lat)},
		Range:       rangePtr(rangeMeters),
		HiddenUntil: hiddenUntil.Format(time.RFC3339Nano),
		CreatedAt:   now.Add(-48 * time.Hour).Format(time.RFC3339Nano),
		FileName:    id + ".mp3",
		Title:       "drop " + id,
	}
}

func mixedBatch() []models.RawDrop {
	malformed := rawDrop("malformed", bangalore, 50, now.Add(-time.Hour))
	malformed.Location.Coordinates = []json.RawMessage{json.RawMessage(`77.5946`), json.RawMessage(`"north"`)}

	missingHidden := rawDrop("no-hidden", bangalore, 50, now.Add(-time.Hour))
	missingHidden.HiddenUntil = ""

	return []models.RawDrop{
		rawDrop("unlocked", bangalore, 50, now.Add(-time.Hour)),
		rawDrop("time-locked", bangalore, 50, now.Add(time.Hour)),
		rawDrop("too-far", fiveHundredMetersNorth, 50, now.Add(-time.Hour)),
		malformed,
		missingHidden,
	}
}

func TestFilterMixedBatch(t *testing.T) {
	drops, report := Filter(bangalore, now, mixedBatch())

	require.Len(t, drops, 1)
	assert.Equal(t, "unlocked", drops[0].ID)
	assert.Equal(t, bangalore, *drops[0].Location)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Unlocked)
	assert.Equal(t, 1, report.TimeLocked)
	assert.Equal(t, 1, report.OutOfRange)
	assert.Equal(t, 1, report.Malformed)
	assert.Equal(t, 1, report.Incomplete)
	assert.Equal(t, 3, report.Evaluated())

	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "malformed", report.Skipped[0].ID)
	assert.Equal(t, ReasonMalformed, report.Skipped[0].Reason)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrMalformedLocation)
	assert.Equal(t, "no-hidden", report.Skipped[1].ID)
	assert.Equal(t, ReasonIncomplete, report.Skipped[1].Reason)
	assert.ErrorIs(t, report.Skipped[1].Err, ErrIncompleteData)
}

func TestFilterPreservesOrder(t *testing.T) {
	var raws []models.RawDrop
	var expected []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("d%02d", i)
		hidden := now.Add(-time.Hour)
		if i%3 == 0 {
			hidden = now.Add(time.Hour)
		} else {
			expected = append(expected, id)
		}
		raws = append(raws, rawDrop(id, bangalore, 50, hidden))
	}

	drops, _ := Filter(bangalore, now, raws)

	ids := make([]string, len(drops))
	for i, d := range drops {
		ids[i] = d.ID
	}
	assert.Equal(t, expected, ids)
}

func TestFilterIdempotent(t *testing.T) {
	batch := mixedBatch()

	first, firstReport := Filter(bangalore, now, batch)
	second, secondReport := Filter(bangalore, now, batch)

	assert.Equal(t, first, second)
	assert.Equal(t, firstReport.Unlocked, secondReport.Unlocked)
	assert.Equal(t, len(firstReport.Skipped), len(secondReport.Skipped))
}

func TestFilterEmpty(t *testing.T) {
	drops, report := Filter(bangalore, now, nil)
	assert.Empty(t, drops)
	assert.NotNil(t, drops)
	assert.Equal(t, 0, report.Total)
}

func TestAnnotate(t *testing.T) {
	evals, report := Annotate(bangalore, now, mixedBatch())

	require.Len(t, evals, 3)
	assert.Equal(t, "unlocked", evals[0].Drop.ID)
	assert.True(t, evals[0].Result.Unlocked)
	assert.Equal(t, "time-locked", evals[1].Drop.ID)
	assert.True(t, evals[1].Result.TimeLocked)
	assert.Equal(t, "too-far", evals[2].Drop.ID)
	assert.True(t, evals[2].Result.OutOfRange)
	assert.InDelta(t, 500, evals[2].Result.Distance, 5)
	assert.Equal(t, 2, len(report.Skipped))
}

func TestEvaluatorFilterStrict(t *testing.T) {
	strict := Evaluator{StrictCoordinates: true}

	outOfBounds := rawDrop("out-of-bounds", models.GeoPoint{Lat: 97.5946, Lon: 12.9716}, 50, now.Add(-time.Hour))

	raws := []models.RawDrop{
		rawDrop("ok", bangalore, 50, now.Add(-time.Hour)),
		outOfBounds,
	}

	drops, report, err := strict.Filter(bangalore, now, raws)
	require.NoError(t, err)
	require.Len(t, drops, 1)
	assert.Equal(t, "ok", drops[0].ID)
	assert.Equal(t, 1, report.Malformed)
	assert.ErrorIs(t, report.Skipped[0].Err, geo.ErrOutOfRangeCoordinate)

	_, _, err = strict.Filter(models.GeoPoint{Lat: -91, Lon: 0}, now, raws)
	assert.ErrorIs(t, err, geo.ErrOutOfRangeCoordinate)
}

func TestFilterBackendPayload(t *testing.T) {
	payload := `[
		{"_id": "a1", "location": {"type": "Point", "coordinates": [77.5946, 12.9716]}, "range": 50,
		 "hidden_until": "2025-04-01T10:00:00.000Z", "created_at": "2025-03-30T10:00:00.000Z",
		 "file_name": "hello.mp3", "title": "hello"},
		{"_id": "a2", "location": {"coordinates": [77.5946]}, "range": 50, "hidden_until": "2025-04-01T10:00:00.000Z"},
		{"_id": "a3", "location": {"coordinates": [null, 12.9716]}, "range": 50, "hidden_until": "2025-04-01T10:00:00.000Z"},
		{"_id": "a4", "range": 50, "hidden_until": "2025-04-01T10:00:00.000Z"},
		{"_id": "a5", "location": {"coordinates": [77.5946, 12.9716]}, "hidden_until": "2025-04-01T10:00:00.000Z"}
	]`

	var raws []models.RawDrop
	require.NoError(t, json.Unmarshal([]byte(payload), &raws))

	drops, report := Filter(bangalore, now, raws)
	require.Len(t, drops, 1)
	assert.Equal(t, "a1", drops[0].ID)
	assert.Equal(t, "hello.mp3", drops[0].FileName)
	assert.Equal(t, time.Date(2025, 3, 30, 10, 0, 0, 0, time.UTC), drops[0].CreatedAt)
	assert.Equal(t, 3, report.Malformed)
	assert.Equal(t, 1, report.Incomplete)
}

func TestFilterBadlyTypedPayload(t *testing.T) {
	payload := `[
		{"_id": "ok", "location": {"type": "Point", "coordinates": [77.5946, 12.9716]}, "range": 50, "hidden_until": "2025-04-01T10:00:00.000Z"},
		{"_id": "coords-string", "location": {"type": "Point", "coordinates": "77.5946,12.9716"}, "range": 50, "hidden_until": "2025-04-01T10:00:00.000Z"},
		{"_id": "location-string", "location": "12.9716,77.5946", "range": 50, "hidden_until": "2025-04-01T10:00:00.000Z"},
		{"_id": "range-string", "location": {"coordinates": [77.5946, 12.9716]}, "range": "50", "hidden_until": "2025-04-01T10:00:00.000Z"},
		{"_id": "hidden-number", "location": {"coordinates": [77.5946, 12.9716]}, "range": 50, "hidden_until": 1743501600}
	]`

	var raws []models.RawDrop
	require.NoError(t, json.Unmarshal([]byte(payload), &raws))
	require.Len(t, raws, 5)

	drops, report := Filter(bangalore, now, raws)
	require.Len(t, drops, 1)
	assert.Equal(t, "ok", drops[0].ID)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 2, report.Malformed)
	assert.Equal(t, 2, report.Incomplete)

	reasons := make(map[string]string, len(report.Skipped))
	for _, s := range report.Skipped {
		reasons[s.ID] = s.Reason
	}
	assert.Equal(t, map[string]string{
		"coords-string":   ReasonMalformed,
		"location-string": ReasonMalformed,
		"range-string":    ReasonIncomplete,
		"hidden-number":   ReasonIncomplete,
	}, reasons)
}

func BenchmarkFilter(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	raws := make([]models.RawDrop, 10000)
	for i := range raws {
		p := models.GeoPoint{
			Lat: bangalore.Lat + (r.Float64()-0.5)*0.05,
			Lon: bangalore.Lon + (r.Float64()-0.5)*0.05,
		}
		raws[i] = rawDrop(fmt.Sprintf("d%d", i), p, r.Float64()*1000+1, now.Add(time.Duration(r.Intn(48)-24)*time.Hour))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Filter(bangalore, now, raws)
	}
}
