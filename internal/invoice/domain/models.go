// Package domain defines invoices and their lifecycle.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "DRAFT"
	StatusIssued        InvoiceStatus = "ISSUED"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusPaid          InvoiceStatus = "PAID"
	StatusVoided        InvoiceStatus = "VOIDED"
	StatusCancelled     InvoiceStatus = "CANCELLED"
)

// Invoice is one lease's bill for one period. The unique index keeps
// concurrent generators from creating two drafts for the same lease and
// period; the loser of that race retries as an update. RowVersion guards
// every mutation.
type Invoice struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID  `json:"organization_id" gorm:"column:org_id;not null;index"`
	LeaseID       snowflake.ID  `json:"lease_id" gorm:"not null;uniqueIndex:idx_invoices_lease_period_status"`
	InvoiceNumber string        `json:"invoice_number" gorm:"type:text;not null;index"`
	Status        InvoiceStatus `json:"status" gorm:"type:text;not null;default:'DRAFT';uniqueIndex:idx_invoices_lease_period_status"`
	InvoiceDate   time.Time     `json:"invoice_date" gorm:"not null"`
	DueDate       *time.Time    `json:"due_date,omitempty" gorm:""`
	PeriodStart   time.Time     `json:"period_start" gorm:"not null;uniqueIndex:idx_invoices_lease_period_status"`
	PeriodEnd     time.Time     `json:"period_end" gorm:"not null;uniqueIndex:idx_invoices_lease_period_status"`
	Currency      string        `json:"currency" gorm:"type:text;not null;default:'INR'"`

	Subtotal  int64 `json:"subtotal" gorm:"not null;default:0"`
	TaxAmount int64 `json:"tax_amount" gorm:"not null;default:0"`
	Total     int64 `json:"total" gorm:"not null;default:0"`
	Paid      int64 `json:"paid" gorm:"not null;default:0"`
	Balance   int64 `json:"balance" gorm:"not null;default:0"`

	IssuedAt   *time.Time `json:"issued_at,omitempty" gorm:""`
	PaidAt     *time.Time `json:"paid_at,omitempty" gorm:""`
	VoidedAt   *time.Time `json:"voided_at,omitempty" gorm:""`
	VoidReason *string    `json:"void_reason,omitempty" gorm:"type:text"`

	RowVersion int64          `json:"row_version" gorm:"not null;default:0"`
	CreatedBy  string         `json:"created_by" gorm:"type:text;not null"`
	ModifiedBy string         `json:"modified_by" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	Lines []InvoiceLine `json:"lines,omitempty" gorm:"-"`
}

func (Invoice) TableName() string { return "invoices" }

// IsTerminal reports whether no further lifecycle transition is allowed.
func (i *Invoice) IsTerminal() bool {
	return i.Status == StatusVoided || i.Status == StatusCancelled
}

// AcceptsPayments reports whether payments may be recorded against the invoice.
func (i *Invoice) AcceptsPayments() bool {
	switch i.Status {
	case StatusDraft, StatusVoided, StatusCancelled:
		return false
	}
	return true
}

// InvoiceLine is one charge on an invoice. LineNumber orders lines for
// display; it is assigned sequentially at write time.
type InvoiceLine struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	InvoiceID  snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	LineNumber int          `json:"line_number" gorm:"not null"`
	ChargeType string       `json:"charge_type" gorm:"type:text;not null"`
	// SourceID points at the originating record: a lease term, a recurring
	// charge, or a utility statement.
	SourceID    snowflake.ID `json:"source_id" gorm:"index"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Quantity    float64      `json:"quantity" gorm:"type:numeric;not null;default:1"`
	UnitPrice   int64        `json:"unit_price" gorm:"not null"`
	Amount      int64        `json:"amount" gorm:"not null"`
	TaxRateBps  int64        `json:"tax_rate_bps" gorm:"not null;default:0"`
	TaxAmount   int64        `json:"tax_amount" gorm:"not null;default:0"`
	Total       int64        `json:"total" gorm:"not null"`
	IsProrated  bool         `json:"is_prorated" gorm:"not null;default:false"`
	Notes       string       `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }
