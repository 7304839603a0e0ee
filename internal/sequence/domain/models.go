// Package domain holds the per-organization number sequences backing
// human-readable invoice and credit-note numbers.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	KindInvoice    = "invoice"
	KindCreditNote = "credit_note"
)

// OrgSequence is one named counter row per organization. Increments happen
// inside the caller's transaction so numbers stay unique and monotonic under
// concurrent generation; wall-clock time is never part of a number.
type OrgSequence struct {
	OrgID     snowflake.ID `json:"organization_id" gorm:"column:org_id;primaryKey;autoIncrement:false"`
	Kind      string       `json:"kind" gorm:"type:text;primaryKey"`
	NextValue int64        `json:"next_value" gorm:"not null;default:0"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrgSequence) TableName() string { return "org_sequences" }

type Service interface {
	// NextInvoiceNumber returns the next invoice number for the org,
	// formatted with the given prefix. Must run inside tx.
	NextInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, prefix string) (string, error)

	// NextCreditNoteNumber is NextInvoiceNumber for credit notes.
	NextCreditNoteNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, prefix string) (string, error)
}
