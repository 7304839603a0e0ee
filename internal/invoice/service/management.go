package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/actorcontext"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	"github.com/smallbiznis/tenancy/internal/proration"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

// Issue transitions a draft to issued. The due date is the issue date plus
// the configured due days.
func (s *Service) Issue(ctx context.Context, orgID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.mustFind(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != invoicedomain.StatusDraft {
		return nil, errkind.Newf(errkind.InvalidState, "invoice %s is %s, only draft invoices can be issued", invoice.InvoiceNumber, invoice.Status)
	}

	now := s.clock.Now()
	issueDate := proration.Date(now)
	dueDate := issueDate.AddDate(0, 0, s.billing.Get().DueDays)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).UpdateGuarded(ctx, invoice.ID, invoice.RowVersion, map[string]any{
			"status":       invoicedomain.StatusIssued,
			"invoice_date": issueDate,
			"due_date":     dueDate,
			"issued_at":    now,
			"modified_by":  actorcontext.Actor(ctx),
		}); err != nil {
			return err
		}
		return s.audit.AuditLog(ctx, tx, orgID, "invoice.issued", "invoice", invoice.ID.String(), map[string]any{
			"invoice_number": invoice.InvoiceNumber,
			"due_date":       dueDate.Format(time.DateOnly),
		})
	})
	if err != nil {
		return nil, err
	}

	invoice.Status = invoicedomain.StatusIssued
	invoice.InvoiceDate = issueDate
	invoice.DueDate = &dueDate
	invoice.IssuedAt = &now
	invoice.RowVersion++
	return invoice, nil
}

// Void marks the invoice voided. Terminal states stay terminal; the reason
// is mandatory and stored verbatim.
func (s *Service) Void(ctx context.Context, orgID, invoiceID snowflake.ID, reason string) (*invoicedomain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errkind.New(errkind.InvalidArgument, "a void reason is required")
	}

	invoice, err := s.mustFind(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.IsTerminal() {
		return nil, errkind.Newf(errkind.InvalidState, "invoice %s is already %s", invoice.InvoiceNumber, invoice.Status)
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).UpdateGuarded(ctx, invoice.ID, invoice.RowVersion, map[string]any{
			"status":      invoicedomain.StatusVoided,
			"voided_at":   now,
			"void_reason": reason,
			"modified_by": actorcontext.Actor(ctx),
		}); err != nil {
			return err
		}
		return s.audit.AuditLog(ctx, tx, orgID, "invoice.voided", "invoice", invoice.ID.String(), map[string]any{
			"invoice_number": invoice.InvoiceNumber,
			"reason":         reason,
		})
	})
	if err != nil {
		return nil, err
	}

	invoice.Status = invoicedomain.StatusVoided
	invoice.VoidedAt = &now
	invoice.VoidReason = &reason
	invoice.RowVersion++
	return invoice, nil
}

func (s *Service) Get(ctx context.Context, orgID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.mustFind(ctx, orgID, invoiceID)
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	return s.repo.List(ctx, orgID, filter)
}

func (s *Service) mustFind(ctx context.Context, orgID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, errkind.Newf(errkind.NotFound, "invoice %d not found", invoiceID)
	}
	return invoice, nil
}
