package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/echo-trails/pkg/models"
)

func TestDistanceIdentical(t *testing.T) {
	points := []models.GeoPoint{
		{Lat: 0, Lon: 0},
		{Lat: 12.9716, Lon: 77.5946},  // Bangalore
		{Lat: -33.8688, Lon: 151.2093}, // Sydney
		{Lat: 90, Lon: 0},
		{Lat: -90, Lon: 180},
	}

	for _, p := range points {
		assert.Equal(t, 0.0, Distance(p, p), "distance to self for %+v", p)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		a := models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		b := models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
	}
}

func TestDistanceKnownValues(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     models.GeoPoint
		expected float64
		delta    float64
	}{
		{"one degree of longitude at the equator", models.GeoPoint{Lat: 0, Lon: 0}, models.GeoPoint{Lat: 0, Lon: 1}, 111195, 1111.95},
		{"one degree of latitude", models.GeoPoint{Lat: 0, Lon: 0}, models.GeoPoint{Lat: 1, Lon: 0}, 111195, 1111.95},
		{"London to Paris", models.GeoPoint{Lat: 51.5074, Lon: -0.1278}, models.GeoPoint{Lat: 48.8566, Lon: 2.3522}, 343500, 3500},
		{"antipodal on the equator", models.GeoPoint{Lat: 0, Lon: 0}, models.GeoPoint{Lat: 0, Lon: 180}, math.Pi * EarthRadiusMeters, 1},
		{"across the antimeridian", models.GeoPoint{Lat: 0, Lon: 179.5}, models.GeoPoint{Lat: 0, Lon: -179.5}, 111195, 1111.95},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, Distance(tc.a, tc.b), tc.delta)
		})
	}
}

func TestDistanceTriangleInequality(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		a := models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		b := models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		c := models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		require.LessOrEqual(t, Distance(a, c), Distance(a, b)+Distance(b, c)+1e-6)
	}
}

func TestDistanceNonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		a := models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		b := models.GeoPoint{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
		assert.GreaterOrEqual(t, Distance(a, b), 0.0)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		point models.GeoPoint
		valid bool
	}{
		{"origin", models.GeoPoint{Lat: 0, Lon: 0}, true},
		{"bangalore", models.GeoPoint{Lat: 12.9716, Lon: 77.5946}, true},
		{"north pole edge", models.GeoPoint{Lat: 90, Lon: 180}, true},
		{"south pole edge", models.GeoPoint{Lat: -90, Lon: -180}, true},
		{"latitude too high", models.GeoPoint{Lat: 90.0001, Lon: 0}, false},
		{"longitude too low", models.GeoPoint{Lat: 0, Lon: -180.5}, false},
		{"swapped lon/lat", models.GeoPoint{Lat: 151.2, Lon: -33.8}, false},
		{"nan latitude", models.GeoPoint{Lat: math.NaN(), Lon: 0}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.point)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrOutOfRangeCoordinate)
			}
		})
	}
}

func BenchmarkDistance(b *testing.B) {
	a := models.GeoPoint{Lat: 12.9716, Lon: 77.5946}
	c := models.GeoPoint{Lat: 13.0827, Lon: 80.2707}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Distance(a, c)
	}
}
