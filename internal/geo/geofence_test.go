package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{12.9716, 77.5946},
		{-33.8688, 151.2093},
		{89.9, -179.9},
	}
	for _, p := range points {
		d := Distance(p[0], p[1], p[0], p[1])
		assert.InDelta(t, 0, d, 1e-6, "distance between identical points must be zero")
	}
}

func TestDistanceSymmetric(t *testing.T) {
	cases := [][4]float64{
		{12.9716, 77.5946, 12.9720, 77.5950},
		{51.5074, -0.1278, 48.8566, 2.3522},
		{-33.8688, 151.2093, 35.6762, 139.6503},
	}
	for _, c := range cases {
		ab := Distance(c[0], c[1], c[2], c[3])
		ba := Distance(c[2], c[3], c[0], c[1])
		assert.InDelta(t, ab, ba, 1e-6)
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// London to Paris, roughly 343.5 km great-circle.
	d := Distance(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 343500, d, 2000)
}

func TestDistanceSmallOffset(t *testing.T) {
	// ~0.001 degree of latitude is about 111 m.
	d := Distance(12.9716, 77.5946, 12.9726, 77.5946)
	assert.InDelta(t, 111, d, 2)
}

func TestCheckerCheck(t *testing.T) {
	g := NewChecker(12.9716, 77.5946, 100)

	inside := g.Check(40)
	assert.True(t, inside.Passed)
	assert.Equal(t, 40.0, inside.DistanceM)

	boundary := g.Check(100)
	assert.True(t, boundary.Passed, "exactly at radius is still inside")

	outside := g.Check(150)
	assert.False(t, outside.Passed)
	assert.Equal(t, 100.0, outside.RadiusM)
}

func TestDistanceFromAnchor(t *testing.T) {
	g := NewChecker(12.9716, 77.5946, 100)
	d := g.DistanceFromAnchor(12.9716, 77.5946)
	assert.True(t, math.Abs(d) < 1e-6)
}
