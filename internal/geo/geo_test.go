package geo

import (
	"math"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCoordinates(t *testing.T) {
	valid := []models.Coordinates{
		{Lat: 0, Lng: 0},
		{Lat: 28.6139, Lng: 77.2090},
		{Lat: -90, Lng: -180},
		{Lat: 90, Lng: 180},
	}
	for _, c := range valid {
		assert.True(t, IsValidCoordinates(c), "expected valid: %+v", c)
	}

	invalid := []models.Coordinates{
		{Lat: 90.0001, Lng: 0},
		{Lat: -90.0001, Lng: 0},
		{Lat: 0, Lng: 180.0001},
		{Lat: 0, Lng: -180.0001},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.NaN()},
		{Lat: math.Inf(1), Lng: 0},
		{Lat: 0, Lng: math.Inf(-1)},
	}
	for _, c := range invalid {
		assert.False(t, IsValidCoordinates(c), "expected invalid: %+v", c)
	}
}

func TestIsValidPincode(t *testing.T) {
	assert.True(t, IsValidPincode("110001"))
	assert.True(t, IsValidPincode("000000"))

	assert.False(t, IsValidPincode("11000"))
	assert.False(t, IsValidPincode("1100011"))
	assert.False(t, IsValidPincode("11000a"))
	assert.False(t, IsValidPincode("11 001"))
	assert.False(t, IsValidPincode(""))
	assert.False(t, IsValidPincode("११०००१")) // non-ASCII digits
}

func TestDisplayDistanceKm(t *testing.T) {
	delhi := models.Coordinates{Lat: 28.6139, Lng: 77.2090}
	mumbai := models.Coordinates{Lat: 19.0760, Lng: 72.8777}

	d := DisplayDistanceKm(delhi, mumbai)
	assert.InDelta(t, 1150, d, 25)

	assert.Zero(t, DisplayDistanceKm(delhi, delhi))
}
