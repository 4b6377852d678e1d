package models

import (
	"fmt"
	"strings"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies on the globe.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Location is a free-text place with optional coordinates. A nil Coord means
// the position is unknown; it is never treated as (0,0).
type Location struct {
	Name  string `json:"name"`
	Coord *Coord `json:"coord,omitempty"`
}

// Empty reports whether the location carries neither text nor coordinates.
func (l Location) Empty() bool {
	return strings.TrimSpace(l.Name) == "" && l.Coord == nil
}

func (l Location) validate(field string) error {
	if l.Empty() {
		return fmt.Errorf("%s requires a name or coordinates", field)
	}
	if l.Coord != nil && !l.Coord.Valid() {
		return fmt.Errorf("%s coordinates out of range", field)
	}
	return nil
}

// Unit is the distance unit a radius was supplied in.
type Unit string

const (
	UnitMiles      Unit = "mi"
	UnitKilometers Unit = "km"
)

const kmPerMile = 1.609344

// ToMiles converts v from the unit to miles. An empty unit means miles.
func (u Unit) ToMiles(v float64) (float64, error) {
	switch u {
	case UnitMiles, "":
		return v, nil
	case UnitKilometers:
		return v / kmPerMile, nil
	default:
		return 0, fmt.Errorf("unknown distance unit %q", u)
	}
}
