// Package eligibility derives a donor's next eligible donation date from
// their confirmed donation history.
package eligibility

import (
	"time"

	"github.com/hackgods/blood-bank/internal/clock"
)

// IntervalDays is the minimum gap, in calendar days, between two donations.
const IntervalDays = 90

type Status struct {
	LastDonation *time.Time `json:"last_donation,omitempty"`
	NextEligible time.Time  `json:"next_eligible"`
	Eligible     bool       `json:"eligible"`
}

// Compute is pure: the result depends only on the confirmed donation dates and
// today. Dates are compared as civil dates.
func Compute(confirmed []time.Time, today time.Time) Status {
	today = clock.Date(today)

	var last *time.Time
	for _, d := range confirmed {
		d := clock.Date(d)
		if last == nil || d.After(*last) {
			last = &d
		}
	}

	if last == nil {
		return Status{NextEligible: today, Eligible: true}
	}

	next := last.AddDate(0, 0, IntervalDays)
	return Status{
		LastDonation: last,
		NextEligible: next,
		Eligible:     !today.Before(next),
	}
}
