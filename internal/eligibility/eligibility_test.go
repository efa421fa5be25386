package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeNoHistory(t *testing.T) {
	today := date(2024, 3, 1)
	st := Compute(nil, today)

	assert.Nil(t, st.LastDonation)
	assert.Equal(t, today, st.NextEligible)
	assert.True(t, st.Eligible)
}

func TestComputeRecentDonation(t *testing.T) {
	st := Compute([]time.Time{date(2024, 1, 1)}, date(2024, 3, 1))

	require.NotNil(t, st.LastDonation)
	assert.Equal(t, date(2024, 1, 1), *st.LastDonation)
	assert.Equal(t, date(2024, 3, 31), st.NextEligible)
	assert.False(t, st.Eligible)
}

func TestComputeUsesLatestDonation(t *testing.T) {
	history := []time.Time{date(2023, 6, 1), date(2023, 11, 15), date(2023, 9, 1)}
	st := Compute(history, date(2024, 2, 13))

	assert.Equal(t, date(2023, 11, 15), *st.LastDonation)
	assert.Equal(t, date(2024, 2, 13), st.NextEligible)
	assert.True(t, st.Eligible, "eligible on the boundary day")
}

func TestComputeIgnoresTimeOfDay(t *testing.T) {
	donated := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	today := time.Date(2024, 3, 31, 0, 5, 0, 0, time.UTC)

	st := Compute([]time.Time{donated}, today)
	assert.True(t, st.Eligible)
}

func TestComputeNextEligibleAlwaysLastPlusInterval(t *testing.T) {
	today := date(2024, 6, 1)
	for d := date(2023, 1, 1); d.Before(today); d = d.AddDate(0, 0, 17) {
		st := Compute([]time.Time{d}, today)
		assert.Equal(t, IntervalDays*24*time.Hour, st.NextEligible.Sub(d))
		assert.Equal(t, !today.Before(st.NextEligible), st.Eligible)
	}
}
