package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenancy/internal/proration"
)

type Service interface {
	// CalculateRent rates every lease term overlapping the period, prorating
	// slices that do not cover it fully. No overlapping terms is not an
	// error; it yields an empty calculation.
	CalculateRent(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time, method proration.Method) (Calculation, error)

	// CalculateRecurringCharges rates per-lease recurring charges due in the
	// period, honouring each charge's billing frequency and active window.
	CalculateRecurringCharges(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time, method proration.Method) (Calculation, error)
}
