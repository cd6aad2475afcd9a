package geo

import (
	"math"

	"storefront-service/internal/models"
)

// IsValidCoordinates reports whether both fields are finite numbers
// within latitude [-90,90] and longitude [-180,180].
func IsValidCoordinates(c models.Coordinates) bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) {
		return false
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 {
		return false
	}
	if c.Lng < -180 || c.Lng > 180 {
		return false
	}
	return true
}

// IsValidPincode reports whether s is exactly 6 ASCII digits.
func IsValidPincode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

const earthRadiusKm = 6371.0

// DisplayDistanceKm returns the haversine distance between two points.
//
// Deprecated: straight-line distance must not be used for delivery
// gating; eligibility comes from the backend. This exists only for
// cosmetic display estimates.
func DisplayDistanceKm(a, b models.Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
