// Package domain contains persistence models for leases and their
// effective-dated billing terms.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LeaseStatus represents lease lifecycle states.
type LeaseStatus string

const (
	LeaseStatusDraft      LeaseStatus = "DRAFT"
	LeaseStatusActive     LeaseStatus = "ACTIVE"
	LeaseStatusEnded      LeaseStatus = "ENDED"
	LeaseStatusTerminated LeaseStatus = "TERMINATED"
)

// Lease represents a tenancy agreement on a unit.
type Lease struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID   `json:"organization_id" gorm:"column:org_id;not null;index"`
	UnitID     snowflake.ID   `json:"unit_id" gorm:"not null;index"`
	TenantID   snowflake.ID   `json:"tenant_id" gorm:"not null;index"`
	Status     LeaseStatus    `json:"status" gorm:"type:text;not null;default:'DRAFT'"`
	StartDate  time.Time      `json:"start_date" gorm:"not null"`
	EndDate    *time.Time     `json:"end_date,omitempty" gorm:""`
	Currency   string         `json:"currency" gorm:"type:text;not null;default:'INR'"`
	CreatedBy  string         `json:"created_by" gorm:"type:text;not null"`
	ModifiedBy string         `json:"modified_by" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Lease) TableName() string { return "leases" }

// LeaseTerm carries effective-dated rent and deposit amounts. Multiple terms
// may overlap one billing period when rent changes mid-month; each overlap
// contributes a prorated slice.
type LeaseTerm struct {
	ID            snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID   `json:"organization_id" gorm:"column:org_id;not null;index"`
	LeaseID       snowflake.ID   `json:"lease_id" gorm:"not null;index"`
	MonthlyRent   int64          `json:"monthly_rent" gorm:"not null"`
	DepositAmount int64          `json:"deposit_amount" gorm:"not null;default:0"`
	TaxRateBps    int64          `json:"tax_rate_bps" gorm:"not null;default:0"`
	EffectiveFrom time.Time      `json:"effective_from" gorm:"not null;index"`
	EffectiveTo   *time.Time     `json:"effective_to,omitempty" gorm:""`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

func (LeaseTerm) TableName() string { return "lease_terms" }

// BillingFrequency is how often a recurring charge applies.
type BillingFrequency string

const (
	FrequencyMonthly   BillingFrequency = "MONTHLY"
	FrequencyQuarterly BillingFrequency = "QUARTERLY"
	FrequencyAnnual    BillingFrequency = "ANNUAL"
)

// LeaseRecurringCharge is a per-lease charge (parking, internet) with its own
// billing frequency and an optional active window independent of LeaseTerm.
type LeaseRecurringCharge struct {
	ID         snowflake.ID     `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID     `json:"organization_id" gorm:"column:org_id;not null;index"`
	LeaseID    snowflake.ID     `json:"lease_id" gorm:"not null;index"`
	Name       string           `json:"name" gorm:"type:text;not null"`
	ChargeType string           `json:"charge_type" gorm:"type:text;not null"`
	Amount     int64            `json:"amount" gorm:"not null"`
	Frequency  BillingFrequency `json:"frequency" gorm:"type:text;not null;default:'MONTHLY'"`
	TaxRateBps int64            `json:"tax_rate_bps" gorm:"not null;default:0"`
	StartDate  *time.Time       `json:"start_date,omitempty" gorm:""`
	EndDate    *time.Time       `json:"end_date,omitempty" gorm:""`
	CreatedAt  time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt  gorm.DeletedAt   `json:"-" gorm:"index"`
}

func (LeaseRecurringCharge) TableName() string { return "lease_recurring_charges" }
