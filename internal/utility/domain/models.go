// Package domain contains utility billing models: rate plans with optional
// consumption slabs, and per-lease utility statements awaiting invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type UtilityType string

const (
	UtilityTypeElectricity UtilityType = "ELECTRICITY"
	UtilityTypeWater       UtilityType = "WATER"
	UtilityTypeGas         UtilityType = "GAS"
)

// UtilityRatePlan prices one utility for an organization. Flat plans bill
// units × RatePerUnit + FixedCharge; slab plans partition consumption across
// ordered UtilityRateSlab bands.
type UtilityRatePlan struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID   `json:"organization_id" gorm:"column:org_id;not null;index"`
	Name        string         `json:"name" gorm:"type:text;not null"`
	UtilityType UtilityType    `json:"utility_type" gorm:"type:text;not null"`
	RatePerUnit int64          `json:"rate_per_unit" gorm:"not null;default:0"`
	FixedCharge int64          `json:"fixed_charge" gorm:"not null;default:0"`
	TaxRateBps  int64          `json:"tax_rate_bps" gorm:"not null;default:0"`
	IsSlabBased bool           `json:"is_slab_based" gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (UtilityRatePlan) TableName() string { return "utility_rate_plans" }

// UtilityRateSlab is one consumption band [FromUnits, ToUnits). A nil ToUnits
// marks the unbounded top slab.
type UtilityRateSlab struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	RatePlanID  snowflake.ID `json:"rate_plan_id" gorm:"not null;index"`
	SlabOrder   int          `json:"slab_order" gorm:"not null"`
	FromUnits   float64      `json:"from_units" gorm:"type:numeric;not null"`
	ToUnits     *float64     `json:"to_units,omitempty" gorm:"type:numeric"`
	RatePerUnit int64        `json:"rate_per_unit" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (UtilityRateSlab) TableName() string { return "utility_rate_slabs" }

type StatementStatus string

const (
	StatementStatusPending  StatementStatus = "PENDING"
	StatementStatusInvoiced StatementStatus = "INVOICED"
)

// UtilityStatement is one lease's utility consumption (or a flat billed
// amount) for a period, waiting to be pulled onto an invoice.
type UtilityStatement struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;index"`
	LeaseID       snowflake.ID    `json:"lease_id" gorm:"not null;index"`
	RatePlanID    *snowflake.ID   `json:"rate_plan_id,omitempty" gorm:"index"`
	UtilityType   UtilityType     `json:"utility_type" gorm:"type:text;not null"`
	PeriodStart   time.Time       `json:"period_start" gorm:"not null"`
	PeriodEnd     time.Time       `json:"period_end" gorm:"not null"`
	UnitsConsumed float64         `json:"units_consumed" gorm:"type:numeric;not null;default:0"`
	FlatAmount    *int64          `json:"flat_amount,omitempty" gorm:""`
	Status        StatementStatus `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	InvoiceID     *snowflake.ID   `json:"invoice_id,omitempty" gorm:"index"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (UtilityStatement) TableName() string { return "utility_statements" }
