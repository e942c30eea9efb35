package hsident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimePeriodNumDefaultParameters(t *testing.T) {
	require := require.New(t)

	before := time.Date(2016, 4, 13, 11, 59, 59, 0, time.UTC)
	at := time.Date(2016, 4, 13, 11, 0, 0, 0, time.UTC)
	after := time.Date(2016, 4, 13, 12, 0, 0, 0, time.UTC)

	tpn := TimePeriodNum(at, DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes)
	require.EqualValues(16903, tpn)
	require.EqualValues(16903, TimePeriodNum(before, DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes))
	require.EqualValues(16904, TimePeriodNum(after, DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes))

	next := NextTimePeriodNum(TimePeriodNum(after, DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes))
	require.EqualValues(16905, next)

	start := PeriodStart(next, DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes)
	require.Equal(time.Date(2016, 4, 14, 12, 0, 0, 0, time.UTC), start)
}

func TestInOverlapPeriodDefaultParameters(t *testing.T) {
	require := require.New(t)

	dayStart := time.Date(2016, 4, 13, 0, 0, 0, 0, time.UTC)
	require.True(InOverlapPeriod(dayStart, DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes))
	require.True(InOverlapPeriod(dayStart.Add(11*time.Hour+59*time.Minute+59*time.Second), DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes))
	require.False(InOverlapPeriod(dayStart.Add(12*time.Hour), DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes))
	require.False(InOverlapPeriod(dayStart.Add(23*time.Hour+59*time.Minute+59*time.Second), DefaultPeriodLengthMinutes, DefaultRotationOffsetMinutes))
}

func TestFloorDivAndModHandleNegatives(t *testing.T) {
	require := require.New(t)
	require.EqualValues(-1, floorDiv(-1, 10))
	require.EqualValues(9, mod(-1, 10))
	require.EqualValues(0, mod(10, 10))
}
