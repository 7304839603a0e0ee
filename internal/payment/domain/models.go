// Package domain defines payments, receipt attachments, and the
// tenant-submitted confirmation workflow.
package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentMode string

const (
	ModeCash         PaymentMode = "CASH"
	ModeOnline       PaymentMode = "ONLINE"
	ModeUPI          PaymentMode = "UPI"
	ModeBankTransfer PaymentMode = "BANK_TRANSFER"
	ModeCheque       PaymentMode = "CHEQUE"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusCompleted PaymentStatus = "COMPLETED"
)

type PaymentType string

const (
	TypeRent    PaymentType = "RENT"
	TypeDeposit PaymentType = "DEPOSIT"
	TypeOther   PaymentType = "OTHER"
)

// Payment is one money movement applied to an invoice. Only Completed
// payments count toward the invoice's paid amount.
type Payment struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID          snowflake.ID      `json:"organization_id" gorm:"column:org_id;not null;index"`
	InvoiceID      snowflake.ID      `json:"invoice_id" gorm:"not null;index"`
	LeaseID        snowflake.ID      `json:"lease_id" gorm:"not null;index"`
	Type           PaymentType       `json:"type" gorm:"type:text;not null;default:'RENT'"`
	Mode           PaymentMode       `json:"mode" gorm:"type:text;not null"`
	Status         PaymentStatus     `json:"status" gorm:"type:text;not null"`
	Amount         int64             `json:"amount" gorm:"not null"`
	PaymentDate    time.Time         `json:"payment_date" gorm:"not null"`
	TransactionRef *string           `json:"transaction_ref,omitempty" gorm:"type:text"`
	PayerName      *string           `json:"payer_name,omitempty" gorm:"type:text"`
	Notes          string            `json:"notes" gorm:"type:text"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	ReceivedBy     string            `json:"received_by" gorm:"type:text;not null"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "payments" }

// PaymentAttachment is a stored receipt file linked to a payment.
type PaymentAttachment struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID        snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	PaymentID    snowflake.ID `json:"payment_id" gorm:"not null;index"`
	StorageKey   string       `json:"storage_key" gorm:"type:text;not null"`
	FileName     string       `json:"file_name" gorm:"type:text;not null"`
	ContentType  string       `json:"content_type" gorm:"type:text;not null"`
	DisplayOrder int          `json:"display_order" gorm:"not null;default:0"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentAttachment) TableName() string { return "payment_attachments" }

type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "PENDING"
	ConfirmationConfirmed ConfirmationStatus = "CONFIRMED"
	ConfirmationRejected  ConfirmationStatus = "REJECTED"
)

// ConfirmationRequest is a tenant's claim of an out-of-band payment awaiting
// review. It transitions exactly once, to Confirmed or Rejected.
type ConfirmationRequest struct {
	ID             snowflake.ID       `json:"id" gorm:"primaryKey"`
	OrgID          snowflake.ID       `json:"organization_id" gorm:"column:org_id;not null;index"`
	InvoiceID      snowflake.ID       `json:"invoice_id" gorm:"not null;index"`
	Amount         int64              `json:"amount" gorm:"not null"`
	PaymentDate    time.Time          `json:"payment_date" gorm:"not null"`
	ReceiptNumber  string             `json:"receipt_number" gorm:"type:text"`
	ProofKey       *string            `json:"proof_key,omitempty" gorm:"type:text"`
	Status         ConfirmationStatus `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	ReviewedBy     *string            `json:"reviewed_by,omitempty" gorm:"type:text"`
	ReviewResponse *string            `json:"review_response,omitempty" gorm:"type:text"`
	PaymentID      *snowflake.ID      `json:"payment_id,omitempty" gorm:"index"`
	RowVersion     int64              `json:"row_version" gorm:"not null;default:0"`
	CreatedBy      string             `json:"created_by" gorm:"type:text;not null"`
	CreatedAt      time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ConfirmationRequest) TableName() string { return "payment_confirmation_requests" }

// RecordRequest captures one payment against an invoice.
type RecordRequest struct {
	OrgID       snowflake.ID
	InvoiceID   snowflake.ID
	Type        PaymentType
	Mode        PaymentMode
	Amount      int64
	PaymentDate time.Time
	Reference   string
	PayerName   string
	Notes       string
}

// RecordResult reports the created payment and the invoice balance after it.
type RecordResult struct {
	PaymentID      snowflake.ID  `json:"payment_id"`
	Status         PaymentStatus `json:"status"`
	InvoiceBalance int64         `json:"invoice_balance"`
}

type Service interface {
	// RecordPayment validates and records one payment. Completed payments
	// update the invoice's paid amount, balance, and status in the same
	// transaction.
	RecordPayment(ctx context.Context, req RecordRequest) (RecordResult, error)

	// AttachReceipt stores a receipt file and links it to the payment.
	AttachReceipt(ctx context.Context, orgID, paymentID snowflake.ID, r io.Reader, filename, contentType string) (*PaymentAttachment, error)
}

// CreateConfirmationRequest is a tenant's submission. Proof is optional.
type CreateConfirmationRequest struct {
	OrgID         snowflake.ID
	InvoiceID     snowflake.ID
	Amount        int64
	PaymentDate   time.Time
	ReceiptNumber string
	Proof         io.Reader
	ProofFilename string
	ProofType     string
}

type ConfirmationService interface {
	Create(ctx context.Context, req CreateConfirmationRequest) (*ConfirmationRequest, error)

	// Confirm converts the request into a Completed cash payment, applying
	// the usual invoice-balance rules against the current balance.
	Confirm(ctx context.Context, orgID, requestID snowflake.ID, response string) (*ConfirmationRequest, error)

	// Reject closes the request without touching the invoice. The review
	// response is mandatory.
	Reject(ctx context.Context, orgID, requestID snowflake.ID, response string) (*ConfirmationRequest, error)
}

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	FindPayment(ctx context.Context, orgID, paymentID snowflake.ID) (*Payment, error)
	Insert(ctx context.Context, payment *Payment) error

	// SumCompleted totals Completed payment amounts for the invoice.
	SumCompleted(ctx context.Context, invoiceID snowflake.ID) (int64, error)

	InsertAttachment(ctx context.Context, attachment *PaymentAttachment) error
	NextDisplayOrder(ctx context.Context, paymentID snowflake.ID) (int, error)

	FindRequest(ctx context.Context, orgID, requestID snowflake.ID) (*ConfirmationRequest, error)
	InsertRequest(ctx context.Context, request *ConfirmationRequest) error
	UpdateRequestGuarded(ctx context.Context, requestID snowflake.ID, expectedVersion int64, updates map[string]any) error
}
