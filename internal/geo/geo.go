package geo

import (
	"math"

	"github.com/example/travel-matching/internal/models"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle distance.
const EarthRadiusMiles = 3958.8

// Haversine distance in miles
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMiles * c
}

// Distance returns the miles between a and b. ok is false when either side
// has no coordinates; callers must then skip the distance check rather than
// treat it as zero.
func Distance(a, b *models.Coord) (miles float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return HaversineMiles(a.Lat, a.Lon, b.Lat, b.Lon), true
}

// Within reports whether a and b both have coordinates and lie no further
// than radiusMiles apart.
func Within(a, b *models.Coord, radiusMiles float64) bool {
	d, ok := Distance(a, b)
	return ok && d <= radiusMiles
}
