package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/proration"
)

// GenerateRequest asks for one lease's invoice covering one period. An empty
// ProrationMethod falls back to the configured default.
type GenerateRequest struct {
	OrgID           snowflake.ID
	LeaseID         snowflake.ID
	PeriodStart     time.Time
	PeriodEnd       time.Time
	ProrationMethod proration.Method
}

// GenerateResult reports the invoice and whether an existing draft was
// refreshed instead of a new one created.
type GenerateResult struct {
	Invoice    Invoice
	WasUpdated bool
}

type ListFilter struct {
	LeaseID snowflake.ID
	Status  InvoiceStatus
	Limit   int
}

type Service interface {
	// Generate builds or refreshes the draft invoice for the lease and
	// period. Running it twice with the same arguments never duplicates.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)

	// Issue transitions a draft to issued, stamping the issue date and due
	// date. Non-draft invoices fail with an invalid-state error.
	Issue(ctx context.Context, orgID, invoiceID snowflake.ID) (*Invoice, error)

	// Void marks the invoice voided with a reason. Allowed from any
	// non-terminal status; irreversible.
	Void(ctx context.Context, orgID, invoiceID snowflake.ID, reason string) (*Invoice, error)

	// Get returns the invoice with its lines.
	Get(ctx context.Context, orgID, invoiceID snowflake.ID) (*Invoice, error)

	// Render produces the printable PDF document for the invoice.
	Render(ctx context.Context, orgID, invoiceID snowflake.ID) (io.Reader, error)

	List(ctx context.Context, orgID snowflake.ID, filter ListFilter) ([]Invoice, error)
}

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, orgID, invoiceID snowflake.ID) (*Invoice, error)
	FindDraftForPeriod(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time) (*Invoice, error)
	ListLines(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceLine, error)
	Insert(ctx context.Context, invoice *Invoice, lines []InvoiceLine) error
	ReplaceLines(ctx context.Context, invoiceID snowflake.ID, lines []InvoiceLine) error

	// UpdateGuarded applies updates only when the stored row still carries
	// expectedVersion, bumping the version in the same statement. A stale
	// version yields a conflict error.
	UpdateGuarded(ctx context.Context, invoiceID snowflake.ID, expectedVersion int64, updates map[string]any) error

	List(ctx context.Context, orgID snowflake.ID, filter ListFilter) ([]Invoice, error)
}

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
)
