package unlock

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/models"
)

// Decode converts a backend record into an AudioDrop.
//
// Coordinates arrive as [longitude, latitude] and are swapped here. A
// record whose coordinates are missing, not a pair, or not numeric fails
// with ErrMalformedLocation; a missing or unparsable range or hidden_until
// fails with ErrIncompleteData.
func Decode(raw models.RawDrop) (models.AudioDrop, error) {
	loc, err := decodeLocation(raw)
	if err != nil {
		return models.AudioDrop{}, err
	}

	if raw.Range == nil {
		return models.AudioDrop{}, errors.Wrapf(ErrIncompleteData, "drop %s: missing range", raw.ID)
	}

	hiddenUntil, err := parseTimestamp(raw.HiddenUntil)
	if err != nil {
		return models.AudioDrop{}, errors.Wrapf(ErrIncompleteData, "drop %s: hidden_until: %v", raw.ID, err)
	}

	// created_at is informational only
	createdAt, _ := parseTimestamp(raw.CreatedAt)

	drop := models.AudioDrop{
		ID:          raw.ID,
		Title:       raw.Title,
		FileName:    raw.FileName,
		Location:    &loc,
		Range:       *raw.Range,
		HiddenUntil: hiddenUntil,
		CreatedAt:   createdAt,
	}
	if err := checkComplete(drop); err != nil {
		return models.AudioDrop{}, err
	}
	return drop, nil
}

func decodeLocation(raw models.RawDrop) (models.GeoPoint, error) {
	if raw.Location == nil || raw.Location.Coordinates == nil {
		return models.GeoPoint{}, errors.Wrapf(ErrMalformedLocation, "drop %s: missing coordinates", raw.ID)
	}

	coords := raw.Location.Coordinates
	if len(coords) != 2 {
		return models.GeoPoint{}, errors.Wrapf(ErrMalformedLocation, "drop %s: expected 2 coordinates, got %d", raw.ID, len(coords))
	}

	lon, err := decodeNumber(coords[0])
	if err != nil {
		return models.GeoPoint{}, errors.Wrapf(ErrMalformedLocation, "drop %s: longitude: %v", raw.ID, err)
	}
	lat, err := decodeNumber(coords[1])
	if err != nil {
		return models.GeoPoint{}, errors.Wrapf(ErrMalformedLocation, "drop %s: latitude: %v", raw.ID, err)
	}

	return models.GeoPoint{Lat: lat, Lon: lon}, nil
}

// decodeNumber accepts only JSON numbers. null, strings, booleans and
// nested values are rejected.
func decodeNumber(raw json.RawMessage) (float64, error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, errors.Errorf("not a number: %s", string(raw))
	}
	if v == nil {
		return 0, errors.New("null")
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, errors.New("not finite")
	}
	return *v, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "not ISO-8601")
	}
	return t, nil
}
