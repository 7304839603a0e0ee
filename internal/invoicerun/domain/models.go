// Package domain records batch invoice runs and their per-lease outcomes.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/smallbiznis/tenancy/internal/proration"
)

// RunType distinguishes rent runs from utility runs.
type RunType string

const (
	RunTypeMonthlyRent RunType = "MONTHLY_RENT"
	RunTypeUtility     RunType = "UTILITY"
)

type RunStatus string

const (
	RunStatusCompleted RunStatus = "COMPLETED"
)

type ItemStatus string

const (
	ItemStatusSuccess ItemStatus = "SUCCESS"
	ItemStatusFailed  ItemStatus = "FAILED"
)

// InvoiceRun is the append-only summary of one batch invocation. A run
// completes even when individual leases fail; FailureCount signals partial
// failure to the caller.
type InvoiceRun struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID        snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	RunType      RunType      `json:"run_type" gorm:"type:text;not null"`
	Status       RunStatus    `json:"status" gorm:"type:text;not null"`
	PeriodStart  time.Time    `json:"period_start" gorm:"not null"`
	PeriodEnd    time.Time    `json:"period_end" gorm:"not null"`
	TotalCount   int          `json:"total_count" gorm:"not null;default:0"`
	SuccessCount int          `json:"success_count" gorm:"not null;default:0"`
	FailureCount int          `json:"failure_count" gorm:"not null;default:0"`
	StartedAt    time.Time    `json:"started_at" gorm:"not null"`
	CompletedAt  time.Time    `json:"completed_at" gorm:"not null"`
	CreatedBy    string       `json:"created_by" gorm:"type:text;not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceRun) TableName() string { return "invoice_runs" }

// InvoiceRunItem is one attempted lease within a run.
type InvoiceRunItem struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrgID        snowflake.ID  `json:"organization_id" gorm:"column:org_id;not null;index"`
	RunID        snowflake.ID  `json:"run_id" gorm:"not null;index"`
	LeaseID      snowflake.ID  `json:"lease_id" gorm:"not null;index"`
	InvoiceID    *snowflake.ID `json:"invoice_id,omitempty" gorm:"index"`
	Status       ItemStatus    `json:"status" gorm:"type:text;not null"`
	WasUpdated   bool          `json:"was_updated" gorm:"not null;default:false"`
	ErrorMessage *string       `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceRunItem) TableName() string { return "invoice_run_items" }

// RunResult is what callers inspect after a run. IsSuccess reports that the
// orchestration itself completed; partial failures surface via FailureCount.
type RunResult struct {
	Run       InvoiceRun       `json:"run"`
	Items     []InvoiceRunItem `json:"items"`
	IsSuccess bool             `json:"is_success"`
}

type Service interface {
	// ExecuteMonthlyRentRun generates draft invoices for every active lease
	// in the organization. One lease's failure never aborts the run.
	ExecuteMonthlyRentRun(ctx context.Context, orgID snowflake.ID, periodStart, periodEnd time.Time, method proration.Method) (RunResult, error)

	// ExecuteUtilityRun is the same loop scoped to leases holding pending
	// utility statements.
	ExecuteUtilityRun(ctx context.Context, orgID snowflake.ID, periodStart, periodEnd time.Time) (RunResult, error)
}
