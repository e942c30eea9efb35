// Package hsident implements the next-generation onion-service identity
// layer: time periods, blinded keys, subcredentials, v3 onion addresses,
// and the HSDir/HS ring indices.
package hsident

import "time"

const (
	// DefaultPeriodLengthMinutes is the default time-period length L.
	DefaultPeriodLengthMinutes = 1440
	// DefaultRotationOffsetMinutes is the default rotation offset.
	DefaultRotationOffsetMinutes = 12 * 60
	// OverlapWindowMinutes is a 60-minute overlap length. InOverlapPeriod
	// does not use it: its window is the rotationOffsetMinutes before each
	// period boundary.
	OverlapWindowMinutes = 60
)

// TimePeriodNum returns floor((t_minutes - offset) / L) for t, with the
// given period length and rotation offset, both in minutes.
func TimePeriodNum(t time.Time, periodLengthMinutes, rotationOffsetMinutes int64) int64 {
	tMinutes := t.Unix() / 60
	return floorDiv(tMinutes-rotationOffsetMinutes, periodLengthMinutes)
}

// NextTimePeriodNum is the period immediately following tpn.
func NextTimePeriodNum(tpn int64) int64 { return tpn + 1 }

// PeriodStart returns the UTC start time of period tpn.
func PeriodStart(tpn, periodLengthMinutes, rotationOffsetMinutes int64) time.Time {
	startMinutes := tpn*periodLengthMinutes + rotationOffsetMinutes
	return time.Unix(startMinutes*60, 0).UTC()
}

// InOverlapPeriod reports whether validAfter falls in the window before a
// period boundary during which a service publishes descriptors under both
// the current and next period. With the default L=1440min, offset=720min
// this is the half of the calendar day preceding the noon-UTC period
// rotation (see DESIGN.md's note on reconciling the "first hour" framing
// against the concrete scenario numbers).
func InOverlapPeriod(validAfter time.Time, periodLengthMinutes, rotationOffsetMinutes int64) bool {
	validAfterMinutes := validAfter.Unix() / 60
	return mod(validAfterMinutes, periodLengthMinutes) < rotationOffsetMinutes
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
