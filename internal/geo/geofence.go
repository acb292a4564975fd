package geo

import "math"

// earthRadiusM is the spherical-earth radius used for haversine distance.
const earthRadiusM = 6371000.0

// Checker decides whether a reported coordinate falls inside the circular
// allowed area around the office anchor.
type Checker struct {
	AnchorLat float64
	AnchorLon float64
	RadiusM   float64
}

// Result of a geofence check.
type Result struct {
	Passed    bool
	DistanceM float64
	RadiusM   float64
}

func NewChecker(anchorLat, anchorLon, radiusM float64) *Checker {
	return &Checker{
		AnchorLat: anchorLat,
		AnchorLon: anchorLon,
		RadiusM:   radiusM,
	}
}

// Distance returns the great-circle distance in meters between two
// latitude/longitude points using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// DistanceFromAnchor returns the distance from the office anchor in meters.
func (g *Checker) DistanceFromAnchor(lat, lon float64) float64 {
	return Distance(lat, lon, g.AnchorLat, g.AnchorLon)
}

// Check evaluates a precomputed distance against the allowed radius.
func (g *Checker) Check(distanceM float64) Result {
	return Result{
		Passed:    distanceM <= g.RadiusM,
		DistanceM: distanceM,
		RadiusM:   g.RadiusM,
	}
}
