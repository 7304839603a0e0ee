// Package domain defines credit notes issued against invoices.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreditNoteStatus string

const (
	StatusDraft  CreditNoteStatus = "DRAFT"
	StatusIssued CreditNoteStatus = "ISSUED"
)

// CreditReason categorizes why an invoice is being credited.
type CreditReason string

const (
	ReasonBillingError     CreditReason = "BILLING_ERROR"
	ReasonGoodwill         CreditReason = "GOODWILL"
	ReasonServiceNotUsed   CreditReason = "SERVICE_NOT_USED"
	ReasonDuplicateCharge  CreditReason = "DUPLICATE_CHARGE"
	ReasonOther            CreditReason = "OTHER"
)

// CreditNote credits part or all of an invoice through negative-amount lines
// mirroring the invoice's own lines. Immutable once issued.
type CreditNote struct {
	ID               snowflake.ID     `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID     `json:"organization_id" gorm:"column:org_id;not null;index"`
	InvoiceID        snowflake.ID     `json:"invoice_id" gorm:"not null;index"`
	CreditNoteNumber *string          `json:"credit_note_number,omitempty" gorm:"type:text;index"`
	Status           CreditNoteStatus `json:"status" gorm:"type:text;not null;default:'DRAFT'"`
	Reason           CreditReason     `json:"reason" gorm:"type:text;not null"`
	Notes            string           `json:"notes" gorm:"type:text"`
	TotalAmount      int64            `json:"total_amount" gorm:"not null;default:0"`
	IssuedAt         *time.Time       `json:"issued_at,omitempty" gorm:""`
	RowVersion       int64            `json:"row_version" gorm:"not null;default:0"`
	CreatedBy        string           `json:"created_by" gorm:"type:text;not null"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Lines []CreditNoteLine `json:"lines,omitempty" gorm:"-"`
}

func (CreditNote) TableName() string { return "credit_notes" }

// CreditNoteLine credits one invoice line. Amount is stored negative.
type CreditNoteLine struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID         snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	CreditNoteID  snowflake.ID `json:"credit_note_id" gorm:"not null;index"`
	InvoiceLineID snowflake.ID `json:"invoice_line_id" gorm:"not null;index"`
	Description   string       `json:"description" gorm:"type:text;not null"`
	Amount        int64        `json:"amount" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CreditNoteLine) TableName() string { return "credit_note_lines" }

// CreateLine is a requested credit against one invoice line, expressed as a
// positive amount.
type CreateLine struct {
	InvoiceLineID snowflake.ID
	Amount        int64
}

type CreateRequest struct {
	OrgID     snowflake.ID
	InvoiceID snowflake.ID
	Reason    CreditReason
	Notes     string
	Lines     []CreateLine
}

type Service interface {
	// Create validates every requested line against the invoice's remaining
	// creditable amounts and produces a draft credit note.
	Create(ctx context.Context, req CreateRequest) (*CreditNote, error)

	// Issue assigns the credit-note number and freezes the note.
	Issue(ctx context.Context, orgID, creditNoteID snowflake.ID) (*CreditNote, error)

	Get(ctx context.Context, orgID, creditNoteID snowflake.ID) (*CreditNote, error)
}

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, orgID, creditNoteID snowflake.ID) (*CreditNote, error)
	Insert(ctx context.Context, note *CreditNote, lines []CreditNoteLine) error

	// SumCreditedByInvoiceLine totals credits already recorded per invoice
	// line across the invoice's credit notes, keyed by invoice line id.
	// Amounts are returned positive.
	SumCreditedByInvoiceLine(ctx context.Context, invoiceID snowflake.ID) (map[snowflake.ID]int64, error)

	UpdateGuarded(ctx context.Context, creditNoteID snowflake.ID, expectedVersion int64, updates map[string]any) error
}
