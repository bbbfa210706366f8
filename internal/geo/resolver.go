// Package geo implements nearest-station resolution over the external
// station directory using great-circle distances.
package geo

import (
	"fmt"
	"math"

	"groundwatch/internal/types"
)

// EarthRadiusKm is the mean Earth radius used by the spherical-Earth
// haversine approximation.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in
// kilometers. It is symmetric and returns 0 for identical points.
func Haversine(a, b types.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Match is the result of a nearest-station lookup. Advisory is non-empty when
// the nearest station is farther than the configured threshold; this is a
// note for the caller, not an error.
type Match struct {
	Station    types.StationRecord `json:"station"`
	DistanceKm float64             `json:"distance_km"`
	Advisory   string              `json:"advisory,omitempty"`
}

// Resolver finds the nearest monitoring station to a query point.
type Resolver struct {
	maxDistanceKm float64
}

// NewResolver creates a Resolver. maxDistanceKm is the distance beyond which
// matches carry an advisory note.
func NewResolver(maxDistanceKm float64) *Resolver {
	return &Resolver{maxDistanceKm: maxDistanceKm}
}

// Nearest returns the single nearest station to point plus its great-circle
// distance. Ties are broken by input order (first seen wins). Fails with
// no_stations_available only when the station collection is empty.
func (r *Resolver) Nearest(point types.Location, stations []types.StationRecord) (Match, error) {
	if len(stations) == 0 {
		return Match{}, types.NewAppError(types.ErrCodeNoStations,
			"station directory returned no stations", nil)
	}

	best := stations[0]
	bestDist := Haversine(point, types.Location{Lat: best.Lat, Lon: best.Lon})
	for _, s := range stations[1:] {
		d := Haversine(point, types.Location{Lat: s.Lat, Lon: s.Lon})
		if d < bestDist {
			best = s
			bestDist = d
		}
	}

	m := Match{Station: best, DistanceKm: bestDist}
	if bestDist > r.maxDistanceKm {
		m.Advisory = fmt.Sprintf(
			"nearest station %s is %.1f km away (beyond the %.0f km threshold); results may not reflect local conditions",
			best.ID, bestDist, r.maxDistanceKm)
	}
	return m, nil
}
