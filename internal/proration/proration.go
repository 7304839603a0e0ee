// Package proration scales a full-period charge to the fraction of the
// billing period it actually covers. All boundaries are calendar dates,
// inclusive on both ends; amounts are minor currency units.
package proration

import (
	"time"

	"github.com/smallbiznis/tenancy/pkg/errkind"
)

// Method selects the proration denominator.
type Method string

const (
	// MethodActualDays divides by the billing period's own day count.
	MethodActualDays Method = "actual_days"
	// MethodThirtyDay divides by a fixed 30 regardless of period length.
	MethodThirtyDay Method = "thirty_day"
)

func ParseMethod(raw string) (Method, error) {
	switch Method(raw) {
	case MethodActualDays:
		return MethodActualDays, nil
	case MethodThirtyDay:
		return MethodThirtyDay, nil
	default:
		return "", errkind.Newf(errkind.InvalidArgument, "unknown proration method %q", raw)
	}
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInclusive counts calendar days in [start, end], both ends included.
func DaysInclusive(start, end time.Time) int {
	return int(Date(end).Sub(Date(start)).Hours()/24) + 1
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Calculate clips [start, end] to the billing period and scales fullAmount to
// the clipped day count. A range fully outside the period yields 0.
func Calculate(fullAmount int64, start, end, periodStart, periodEnd time.Time, method Method) (int64, error) {
	if fullAmount < 0 {
		return 0, errkind.New(errkind.InvalidArgument, "full amount must not be negative")
	}
	start, end = Date(start), Date(end)
	periodStart, periodEnd = Date(periodStart), Date(periodEnd)
	if end.Before(start) {
		return 0, errkind.New(errkind.InvalidArgument, "end date must not precede start date")
	}
	if periodEnd.Before(periodStart) {
		return 0, errkind.New(errkind.InvalidArgument, "billing period end must not precede its start")
	}

	from := maxDate(start, periodStart)
	to := minDate(end, periodEnd)
	if to.Before(from) {
		return 0, nil
	}

	daysUsed := DaysInclusive(from, to)

	var denominator int
	switch method {
	case MethodThirtyDay:
		denominator = 30
	case MethodActualDays:
		denominator = DaysInclusive(periodStart, periodEnd)
	default:
		return 0, errkind.Newf(errkind.InvalidArgument, "unknown proration method %q", method)
	}

	return RoundDiv(fullAmount*int64(daysUsed), int64(denominator)), nil
}

// RoundDiv divides with round-half-away-from-zero. Inputs are non-negative.
// Shared by the charge calculators for tax and per-unit amounts.
func RoundDiv(numerator, denominator int64) int64 {
	quotient := numerator / denominator
	remainder := numerator % denominator
	if remainder*2 >= denominator {
		quotient++
	}
	return quotient
}
