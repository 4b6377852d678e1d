package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateCriteriaValidate(t *testing.T) {
	cases := []struct {
		name string
		in   DateCriteria
		ok   bool
	}{
		{"exact", ExactDate("2026-11-02"), true},
		{"exact bad format", ExactDate("2026-11-2"), false},
		{"exact two days", DateCriteria{Kind: DateExact, Dates: []string{"2026-11-02", "2026-11-03"}}, false},
		{"set", DateSetOf("2026-11-02", "2026-11-09"), true},
		{"set too large", DateSetOf("2026-11-01", "2026-11-02", "2026-11-03", "2026-11-04", "2026-11-05", "2026-11-06"), false},
		{"set empty", DateSetOf(), false},
		{"month", MonthOf("2026-11"), true},
		{"month bad", MonthOf("2026-13"), false},
		{"unknown kind", DateCriteria{Kind: "week"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDateCriteriaContainsUsesDepartureZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2026-11-02 23:30 UTC is already Nov 3rd in Tokyo.
	dep := time.Date(2026, 11, 3, 8, 30, 0, 0, tokyo)

	assert.True(t, ExactDate("2026-11-03").Contains(dep))
	assert.False(t, ExactDate("2026-11-02").Contains(dep))
	assert.True(t, ExactDate("2026-11-02").Contains(dep.UTC()))
	assert.True(t, DateSetOf("2026-10-01", "2026-11-03").Contains(dep))
	assert.True(t, MonthOf("2026-11").Contains(dep))
	assert.False(t, MonthOf("2026-10").Contains(dep))
}

func TestDateCriteriaMonthBoundaries(t *testing.T) {
	m := MonthOf("2026-11")
	assert.True(t, m.Contains(time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, m.Contains(time.Date(2026, 11, 30, 23, 59, 59, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2026, 10, 31, 23, 59, 59, 0, time.UTC)))
}

func TestDateCriteriaOverlaps(t *testing.T) {
	assert.True(t, ExactDate("2026-11-02").Overlaps(MonthOf("2026-11")))
	assert.True(t, MonthOf("2026-11").Overlaps(DateSetOf("2026-10-30", "2026-11-01")))
	assert.False(t, MonthOf("2026-12").Overlaps(ExactDate("2026-11-02")))
	assert.True(t, MonthOf("2026-11").Overlaps(MonthOf("2026-11")))
	assert.False(t, DateSetOf("2026-11-01").Overlaps(DateSetOf("2026-11-02")))
}

func TestTimeOfDayAllows(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 11, 2, h, 0, 0, 0, time.UTC) }

	assert.True(t, AnyTime.Allows(at(3)))
	assert.True(t, Morning.Allows(at(5)))
	assert.False(t, Morning.Allows(at(12)))
	assert.True(t, Afternoon.Allows(at(12)))
	assert.True(t, Evening.Allows(at(20)))
	assert.True(t, Night.Allows(at(23)))
	assert.True(t, Night.Allows(at(4)))
	assert.False(t, Night.Allows(at(5)))
}

func TestConfirmationTransitions(t *testing.T) {
	assert.True(t, ConfirmationPending.CanTransitionTo(ConfirmationAccepted))
	assert.True(t, ConfirmationPending.CanTransitionTo(ConfirmationExpired))
	assert.True(t, ConfirmationAccepted.CanTransitionTo(ConfirmationCancelled))
	assert.False(t, ConfirmationAccepted.CanTransitionTo(ConfirmationRejected))
	assert.False(t, ConfirmationRejected.CanTransitionTo(ConfirmationAccepted))
	assert.False(t, ConfirmationExpired.CanTransitionTo(ConfirmationCancelled))
	assert.False(t, ConfirmationCancelled.CanTransitionTo(ConfirmationAccepted))
}

func TestUnitToMiles(t *testing.T) {
	mi, err := UnitKilometers.ToMiles(1.609344)
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, mi, 1e-9)

	mi, err = Unit("").ToMiles(7)
	assert.NoError(t, err)
	assert.Equal(t, 7.0, mi)

	_, err = Unit("nm").ToMiles(1)
	assert.Error(t, err)
}
