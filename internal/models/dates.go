package models

import (
	"fmt"
	"time"
)

type DateKind string

const (
	DateExact DateKind = "exact"
	DateSet   DateKind = "set"
	DateMonth DateKind = "month"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"

	// MaxDateSet bounds the number of days in a DateSet criteria.
	MaxDateSet = 5
)

// DateCriteria is one of: a single day, a small set of days, or a whole
// month. Days are calendar dates (YYYY-MM-DD) and months are YYYY-MM.
type DateCriteria struct {
	Kind  DateKind `json:"kind"`
	Dates []string `json:"dates,omitempty"`
	Month string   `json:"month,omitempty"`
}

func ExactDate(day string) DateCriteria { return DateCriteria{Kind: DateExact, Dates: []string{day}} }

func DateSetOf(days ...string) DateCriteria { return DateCriteria{Kind: DateSet, Dates: days} }

func MonthOf(month string) DateCriteria { return DateCriteria{Kind: DateMonth, Month: month} }

type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) civilDay {
	y, m, d := t.Date()
	return civilDay{y, m, d}
}

func (c civilDay) monthKey() civilDay { return civilDay{year: c.year, month: c.month} }

func (d DateCriteria) days() ([]civilDay, error) {
	out := make([]civilDay, 0, len(d.Dates))
	for _, s := range d.Dates {
		t, err := time.Parse(dayLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
		}
		out = append(out, dayOf(t))
	}
	return out, nil
}

func (d DateCriteria) month() (civilDay, error) {
	t, err := time.Parse(monthLayout, d.Month)
	if err != nil {
		return civilDay{}, fmt.Errorf("invalid month %q: want YYYY-MM", d.Month)
	}
	return dayOf(t).monthKey(), nil
}

// Validate checks the shape of the criteria.
func (d DateCriteria) Validate() error {
	switch d.Kind {
	case DateExact:
		if len(d.Dates) != 1 {
			return fmt.Errorf("exact date criteria needs exactly one date, got %d", len(d.Dates))
		}
		_, err := d.days()
		return err
	case DateSet:
		if len(d.Dates) < 1 || len(d.Dates) > MaxDateSet {
			return fmt.Errorf("date set needs 1 to %d dates, got %d", MaxDateSet, len(d.Dates))
		}
		_, err := d.days()
		return err
	case DateMonth:
		_, err := d.month()
		return err
	default:
		return fmt.Errorf("unknown date criteria kind %q", d.Kind)
	}
}

// Contains reports whether the calendar date of t, read in t's own zone,
// satisfies the criteria. Invalid criteria contain nothing.
func (d DateCriteria) Contains(t time.Time) bool {
	target := dayOf(t)
	switch d.Kind {
	case DateExact, DateSet:
		days, err := d.days()
		if err != nil {
			return false
		}
		for _, day := range days {
			if day == target {
				return true
			}
		}
		return false
	case DateMonth:
		m, err := d.month()
		return err == nil && m == target.monthKey()
	default:
		return false
	}
}

// Overlaps reports whether both criteria accept at least one common day.
func (d DateCriteria) Overlaps(other DateCriteria) bool {
	if d.Kind == DateMonth && other.Kind == DateMonth {
		a, errA := d.month()
		b, errB := other.month()
		return errA == nil && errB == nil && a == b
	}
	if d.Kind == DateMonth {
		return other.Overlaps(d)
	}
	days, err := d.days()
	if err != nil {
		return false
	}
	for _, day := range days {
		if other.Contains(time.Date(day.year, day.month, day.day, 12, 0, 0, 0, time.UTC)) {
			return true
		}
	}
	return false
}

// TimeOfDay is an optional departure time preference.
type TimeOfDay string

const (
	AnyTime   TimeOfDay = ""
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

func (p TimeOfDay) Validate() error {
	switch p {
	case AnyTime, Morning, Afternoon, Evening, Night:
		return nil
	default:
		return fmt.Errorf("unknown time of day %q", p)
	}
}

// Allows reports whether the local hour of t falls in the preferred window.
func (p TimeOfDay) Allows(t time.Time) bool {
	h := t.Hour()
	switch p {
	case AnyTime:
		return true
	case Morning:
		return h >= 5 && h < 12
	case Afternoon:
		return h >= 12 && h < 17
	case Evening:
		return h >= 17 && h < 21
	case Night:
		return h >= 21 || h < 5
	default:
		return false
	}
}
