// Package geoutil provides great-circle distance helpers shared by the
// reconciliation pipeline and the nearby-search surface.
package geoutil

import "math"

// earthRadiusKm is the mean Earth radius used by the Haversine formula.
const earthRadiusKm = 6371

// DistanceKm returns the Haversine great-circle distance in kilometers
// between two points given in decimal degrees. The result is symmetric in
// its two point arguments and non-negative; non-finite inputs propagate as
// NaN, validation is the caller's job.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

// WithinRadius reports whether (lat, lon) lies within radiusKm of the
// center point.
func WithinRadius(centerLat, centerLon, lat, lon, radiusKm float64) bool {
	return DistanceKm(centerLat, centerLon, lat, lon) <= radiusKm
}
