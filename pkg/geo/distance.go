// Package geo provides great-circle distance, coordinate validation and an
// R-Tree index over audio drops for proximity queries.
package geo

import (
	"math"

	"github.com/kass/echo-trails/pkg/models"
)

// EarthRadiusMeters is the mean Earth radius used by Distance
const EarthRadiusMeters = 6371000.0

// Distance calculates the Haversine distance between two points in meters.
// Inputs are not validated.
func Distance(a, b models.GeoPoint) float64 {
	lat1Rad := toRadians(a.Lat)
	lat2Rad := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// metersToDegrees converts a surface distance to degrees of arc along a meridian
func metersToDegrees(meters float64) float64 {
	return (meters / EarthRadiusMeters) * (180 / math.Pi)
}
