package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/actorcontext"
	auditdomain "github.com/smallbiznis/tenancy/internal/audit/domain"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	creditnotedomain "github.com/smallbiznis/tenancy/internal/creditnote/domain"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	"github.com/smallbiznis/tenancy/internal/observability/metrics"
	sequencedomain "github.com/smallbiznis/tenancy/internal/sequence/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	BillingConfig *config.BillingConfigHolder
	Repo          creditnotedomain.Repository
	InvoiceRepo   invoicedomain.Repository
	Sequence      sequencedomain.Service
	Audit         auditdomain.Service
	Metrics       *metrics.BillingMetrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	billing     *config.BillingConfigHolder
	repo        creditnotedomain.Repository
	invoiceRepo invoicedomain.Repository
	sequence    sequencedomain.Service
	audit       auditdomain.Service
	metrics     *metrics.BillingMetrics
}

func NewService(p Params) creditnotedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("creditnote.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billing:     p.BillingConfig,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		sequence:    p.Sequence,
		audit:       p.Audit,
		metrics:     p.Metrics,
	}
}

// Create validates each requested credit against the referenced invoice
// line's remaining creditable amount and writes a draft note with
// negative-sign lines.
func (s *Service) Create(ctx context.Context, req creditnotedomain.CreateRequest) (*creditnotedomain.CreditNote, error) {
	if len(req.Lines) == 0 {
		return nil, errkind.New(errkind.InvalidArgument, "a credit note needs at least one line")
	}
	if req.Reason == "" {
		return nil, errkind.New(errkind.InvalidArgument, "a credit reason is required")
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, req.OrgID, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, errkind.Newf(errkind.NotFound, "invoice %d not found", req.InvoiceID)
	}

	invoiceLines := make(map[snowflake.ID]invoicedomain.InvoiceLine, len(invoice.Lines))
	for _, line := range invoice.Lines {
		invoiceLines[line.ID] = line
	}

	credited, err := s.repo.SumCreditedByInvoiceLine(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	note := &creditnotedomain.CreditNote{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		InvoiceID: invoice.ID,
		Status:    creditnotedomain.StatusDraft,
		Reason:    req.Reason,
		Notes:     req.Notes,
		CreatedBy: actorcontext.Actor(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}

	lines := make([]creditnotedomain.CreditNoteLine, 0, len(req.Lines))
	requested := make(map[snowflake.ID]int64, len(req.Lines))
	for _, reqLine := range req.Lines {
		invoiceLine, ok := invoiceLines[reqLine.InvoiceLineID]
		if !ok {
			return nil, errkind.Newf(errkind.InvalidArgument, "invoice line %d does not belong to invoice %s", reqLine.InvoiceLineID, invoice.InvoiceNumber)
		}
		if reqLine.Amount <= 0 {
			return nil, errkind.New(errkind.InvalidArgument, "credit amounts must be positive")
		}

		requested[reqLine.InvoiceLineID] += reqLine.Amount
		remaining := invoiceLine.Amount - credited[reqLine.InvoiceLineID]
		if requested[reqLine.InvoiceLineID] > remaining {
			return nil, errkind.Newf(errkind.InvalidArgument,
				"credit of %d exceeds remaining creditable %d on invoice line %d",
				requested[reqLine.InvoiceLineID], remaining, reqLine.InvoiceLineID)
		}

		lines = append(lines, creditnotedomain.CreditNoteLine{
			ID:            s.genID.Generate(),
			OrgID:         req.OrgID,
			CreditNoteID:  note.ID,
			InvoiceLineID: invoiceLine.ID,
			Description:   invoiceLine.Description,
			Amount:        -reqLine.Amount,
			CreatedAt:     now,
		})
		note.TotalAmount += -reqLine.Amount
	}
	note.Lines = lines

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).Insert(ctx, note, lines); err != nil {
			return err
		}
		return s.audit.AuditLog(ctx, tx, req.OrgID, "creditnote.created", "credit_note", note.ID.String(), map[string]any{
			"invoice_id": invoice.ID.String(),
			"reason":     string(req.Reason),
			"total":      note.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("created credit note",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.Int64("total", note.TotalAmount),
	)
	return note, nil
}

// Issue assigns the credit-note number and makes the note immutable.
func (s *Service) Issue(ctx context.Context, orgID, creditNoteID snowflake.ID) (*creditnotedomain.CreditNote, error) {
	note, err := s.mustFind(ctx, orgID, creditNoteID)
	if err != nil {
		return nil, err
	}
	if note.Status != creditnotedomain.StatusDraft {
		return nil, errkind.Newf(errkind.InvalidState, "credit note is %s, only drafts can be issued", note.Status)
	}

	now := s.clock.Now()
	var number string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err = s.sequence.NextCreditNoteNumber(ctx, tx, orgID, s.billing.Get().CreditNoteNumberPrefix)
		if err != nil {
			return err
		}
		if err := s.repo.WithTrx(tx).UpdateGuarded(ctx, note.ID, note.RowVersion, map[string]any{
			"status":             creditnotedomain.StatusIssued,
			"credit_note_number": number,
			"issued_at":          now,
		}); err != nil {
			return err
		}
		return s.audit.AuditLog(ctx, tx, orgID, "creditnote.issued", "credit_note", note.ID.String(), map[string]any{
			"credit_note_number": number,
		})
	})
	if err != nil {
		return nil, err
	}

	note.Status = creditnotedomain.StatusIssued
	note.CreditNoteNumber = &number
	note.IssuedAt = &now
	note.RowVersion++
	s.metrics.ObserveCreditNoteIssued()
	return note, nil
}

func (s *Service) Get(ctx context.Context, orgID, creditNoteID snowflake.ID) (*creditnotedomain.CreditNote, error) {
	return s.mustFind(ctx, orgID, creditNoteID)
}

func (s *Service) mustFind(ctx context.Context, orgID, creditNoteID snowflake.ID) (*creditnotedomain.CreditNote, error) {
	note, err := s.repo.FindByID(ctx, orgID, creditNoteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, errkind.Newf(errkind.NotFound, "credit note %d not found", creditNoteID)
	}
	return note, nil
}
