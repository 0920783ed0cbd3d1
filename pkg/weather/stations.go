package weather

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// Reference picks the station of a country: the closest candidate to
// (Lat, Lon) whose name contains NameContains.
type Reference struct {
	Lat          float64 `yaml:"lat"`
	Lon          float64 `yaml:"lon"`
	NameContains string  `yaml:"name_contains"`
}

// SelectStations returns, for each country in refs (sorted by country
// code), the matching candidates ordered by distance to the reference point.
// Candidates whose observations end before activeSince are skipped. Station
// names have " / " replaced by "_".
func SelectStations(candidates []Station, refs map[string]Reference, activeSince time.Time) []Station {
	countries := make([]string, 0, len(refs))
	for c := range refs {
		countries = append(countries, c)
	}
	slices.Sort(countries)

	var out []Station
	for _, c := range countries {
		ref := refs[c]
		var matched []Station
		for _, s := range candidates {
			if s.Country != c || !strings.Contains(s.Name, ref.NameContains) {
				continue
			}
			if !s.End.IsZero() && s.End.Before(activeSince) {
				continue
			}
			s.Name = strings.ReplaceAll(s.Name, " / ", "_")
			matched = append(matched, s)
		}
		slices.SortStableFunc(matched, func(a, b Station) int {
			return cmp.Compare(distanceKm(ref.Lat, ref.Lon, a.Lat, a.Lon), distanceKm(ref.Lat, ref.Lon, b.Lat, b.Lon))
		})
		out = append(out, matched...)
	}
	return out
}

// distanceKm is the great-circle distance between two points.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
