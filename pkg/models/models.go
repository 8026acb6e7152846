package models

import (
	"encoding/json"
	"time"
)

// GeoPoint represents a geographic location in degrees
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// AudioDrop is an audio recording anchored to a location.
// A nil Location, a non-positive Range or a zero HiddenUntil means the
// record is incomplete and cannot be evaluated.
type AudioDrop struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	Location    *GeoPoint `json:"location"`
	Range       float64   `json:"range"` // meters
	HiddenUntil time.Time `json:"hidden_until"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// RawLocation is the GeoJSON-like location object sent by the backend.
// Coordinates are [longitude, latitude] and kept undecoded so the shape
// can be checked record by record.
type RawLocation struct {
	Type        string            `json:"type,omitempty"`
	Coordinates []json.RawMessage `json:"coordinates"`
}

// RawDrop is a drop record as returned by the backend.
// Decoding never fails on a badly typed field: the field is left empty and
// the record is rejected when it is evaluated.
type RawDrop struct {
	ID          string       `json:"_id"`
	Location    *RawLocation `json:"location"`
	Range       *float64     `json:"range"`
	HiddenUntil string       `json:"hidden_until"`
	CreatedAt   string       `json:"created_at"`
	FileName    string       `json:"file_name"`
	Title       string       `json:"title"`
}

// UnmarshalJSON decodes a record field by field. A location that is not an
// object, coordinates that are not an array and a range that is not a number
// are dropped so the record stays in the batch as malformed or incomplete.
func (d *RawDrop) UnmarshalJSON(data []byte) error {
	*d = RawDrop{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Not an object: keep an empty record.
		return nil
	}

	d.ID = looseID(fields["_id"])
	d.HiddenUntil = looseString(fields["hidden_until"])
	d.CreatedAt = looseString(fields["created_at"])
	d.FileName = looseString(fields["file_name"])
	d.Title = looseString(fields["title"])

	var rng *float64
	if json.Unmarshal(fields["range"], &rng) == nil {
		d.Range = rng
	}

	var loc map[string]json.RawMessage
	if json.Unmarshal(fields["location"], &loc) == nil && loc != nil {
		d.Location = &RawLocation{Type: looseString(loc["type"])}
		var coords []json.RawMessage
		if json.Unmarshal(loc["coordinates"], &coords) == nil {
			d.Location.Coordinates = coords
		}
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// looseID keeps non-string ids as their JSON text so skips can be traced.
func looseID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// UnlockResult is the outcome of evaluating one drop for one user
type UnlockResult struct {
	Unlocked   bool    `json:"unlocked"`
	Distance   float64 `json:"distance"` // meters
	TimeLocked bool    `json:"time_locked"`
	OutOfRange bool    `json:"out_of_range"`
}

// Coordinates builds a raw [lon, lat] pair the way the backend encodes it.
func Coordinates(lon, lat float64) []json.RawMessage {
	lonRaw, _ := json.Marshal(lon)
	latRaw, _ := json.Marshal(lat)
	return []json.RawMessage{lonRaw, latRaw}
}
