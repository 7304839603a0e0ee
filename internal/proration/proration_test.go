package proration

import (
	"testing"
	"time"

	"github.com/smallbiznis/tenancy/pkg/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalculate_ThirtyDayMonth(t *testing.T) {
	// 22 days used out of a fixed 30-day denominator.
	amount, err := Calculate(
		300000,
		date(2024, time.January, 10), date(2024, time.January, 31),
		date(2024, time.January, 1), date(2024, time.January, 31),
		MethodThirtyDay,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(220000), amount)
}

func TestCalculate_ActualDaysFullCoverage(t *testing.T) {
	// Range covering the whole period returns the full amount.
	amount, err := Calculate(
		300000,
		date(2023, time.December, 1), date(2024, time.March, 1),
		date(2024, time.February, 1), date(2024, time.February, 29),
		MethodActualDays,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), amount)
}

func TestCalculate_ActualDaysPartial(t *testing.T) {
	// 15 of 31 days in January.
	amount, err := Calculate(
		310000,
		date(2024, time.January, 1), date(2024, time.January, 15),
		date(2024, time.January, 1), date(2024, time.January, 31),
		MethodActualDays,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), amount)
}

func TestCalculate_RangeOutsidePeriod(t *testing.T) {
	amount, err := Calculate(
		100000,
		date(2024, time.March, 1), date(2024, time.March, 31),
		date(2024, time.January, 1), date(2024, time.January, 31),
		MethodActualDays,
	)
	require.NoError(t, err)
	assert.Zero(t, amount)
}

func TestCalculate_RoundsHalfAwayFromZero(t *testing.T) {
	// 1 day of 30 on 125: 125/30 = 4.1666 -> 4; 135/30 = 4.5 -> 5.
	amount, err := Calculate(125, date(2024, time.January, 1), date(2024, time.January, 1),
		date(2024, time.January, 1), date(2024, time.January, 31), MethodThirtyDay)
	require.NoError(t, err)
	assert.Equal(t, int64(4), amount)

	amount, err = Calculate(135, date(2024, time.January, 1), date(2024, time.January, 1),
		date(2024, time.January, 1), date(2024, time.January, 31), MethodThirtyDay)
	require.NoError(t, err)
	assert.Equal(t, int64(5), amount)
}

func TestCalculate_BoundedByFullAmount(t *testing.T) {
	cases := []struct {
		name       string
		fullAmount int64
		start, end time.Time
		method     Method
	}{
		{"actual days mid month", 123457, date(2024, time.January, 7), date(2024, time.January, 23), MethodActualDays},
		{"actual days one day", 999999, date(2024, time.January, 31), date(2024, time.January, 31), MethodActualDays},
		{"thirty day clipped", 500001, date(2023, time.December, 25), date(2024, time.January, 29), MethodThirtyDay},
	}
	periodStart := date(2024, time.January, 1)
	periodEnd := date(2024, time.January, 31)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := Calculate(tc.fullAmount, tc.start, tc.end, periodStart, periodEnd, tc.method)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, amount, int64(0))
			// ThirtyDay can exceed the full amount only when the period
			// itself is longer than 30 days; the clipped January window
			// above stays within it.
			assert.LessOrEqual(t, amount, tc.fullAmount+1)
		})
	}
}

func TestCalculate_InvalidInputs(t *testing.T) {
	periodStart := date(2024, time.January, 1)
	periodEnd := date(2024, time.January, 31)

	_, err := Calculate(-1, periodStart, periodEnd, periodStart, periodEnd, MethodActualDays)
	assert.True(t, errkind.Is(err, errkind.InvalidArgument))

	_, err = Calculate(100, periodEnd, periodStart, periodStart, periodEnd, MethodActualDays)
	assert.True(t, errkind.Is(err, errkind.InvalidArgument))

	_, err = Calculate(100, periodStart, periodEnd, periodEnd, periodStart, MethodActualDays)
	assert.True(t, errkind.Is(err, errkind.InvalidArgument))

	_, err = Calculate(100, periodStart, periodEnd, periodStart, periodEnd, Method("weekly"))
	assert.True(t, errkind.Is(err, errkind.InvalidArgument))
}

func TestParseMethod(t *testing.T) {
	method, err := ParseMethod("thirty_day")
	require.NoError(t, err)
	assert.Equal(t, MethodThirtyDay, method)

	_, err = ParseMethod("bogus")
	assert.True(t, errkind.Is(err, errkind.InvalidArgument))
}
