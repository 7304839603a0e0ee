package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SlabBreakdown explains how one slab contributed to a slab-based total.
type SlabBreakdown struct {
	FromUnits   float64  `json:"from_units"`
	ToUnits     *float64 `json:"to_units,omitempty"`
	Units       float64  `json:"units"`
	RatePerUnit int64    `json:"rate_per_unit"`
	FixedCharge int64    `json:"fixed_charge"`
	Amount      int64    `json:"amount"`
}

// Calculation is one utility charge result.
type Calculation struct {
	TotalAmount  int64           `json:"total_amount"`
	IsMeterBased bool            `json:"is_meter_based"`
	Slabs        []SlabBreakdown `json:"slabs,omitempty"`
}

type Service interface {
	// CalculateFromAmount passes a flat billed amount through.
	CalculateFromAmount(amount int64) (Calculation, error)

	// CalculateMeterFlat bills units at a single rate plus a fixed charge.
	CalculateMeterFlat(unitsConsumed float64, ratePerUnit, fixedCharge int64) (Calculation, error)

	// CalculateMeterSlab loads the rate plan's slabs and partitions the
	// consumption across them, returning a per-slab breakdown.
	CalculateMeterSlab(ctx context.Context, ratePlanID snowflake.ID, unitsConsumed float64) (Calculation, error)
}

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	FindRatePlan(ctx context.Context, ratePlanID snowflake.ID) (*UtilityRatePlan, []UtilityRateSlab, error)
	ListStatementsForInvoice(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time, invoiceID *snowflake.ID) ([]UtilityStatement, error)
	ListLeasesWithPendingStatements(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
	MarkStatementsInvoiced(ctx context.Context, statementIDs []snowflake.ID, invoiceID snowflake.ID, now time.Time) error
}

var (
	ErrRatePlanNotFound = errors.New("rate_plan_not_found")
	ErrNoSlabsDefined   = errors.New("no_slabs_defined")
)
