package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the explicit load boundary for lease data. Calculators never
// traverse a lazily-materialized object graph; they receive slices fetched
// here.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	FindLease(ctx context.Context, orgID, leaseID snowflake.ID) (*Lease, error)
	ListActiveLeases(ctx context.Context, orgID snowflake.ID) ([]Lease, error)
	ListTermsOverlapping(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time) ([]LeaseTerm, error)
	ListRecurringChargesOverlapping(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time) ([]LeaseRecurringCharge, error)
}

var (
	ErrLeaseNotFound = errors.New("lease_not_found")
)
