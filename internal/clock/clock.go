package clock

import "time"

// Clock returns the current instant. Services take one so tests can pin "today".
type Clock func() time.Time

// System is the wall clock.
func System() Clock {
	return time.Now
}

// Fixed always returns t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Now returns the current instant, falling back to time.Now for a nil clock.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Today returns the current civil date as midnight UTC.
func (c Clock) Today() time.Time {
	return Date(c.Now())
}

// Date truncates t to its civil date at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
