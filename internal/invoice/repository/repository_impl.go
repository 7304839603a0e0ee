package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/clock"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type store struct {
	db    *gorm.DB
	clock clock.Clock
}

func Provide(db *gorm.DB, clk clock.Clock) invoicedomain.Repository {
	return &store{db: db, clock: clk}
}

func (s *store) WithTrx(tx *gorm.DB) invoicedomain.Repository {
	return &store{db: tx, clock: s.clock}
}

func (s *store) FindByID(ctx context.Context, orgID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", invoiceID, orgID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	lines, err := s.ListLines(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.Lines = lines
	return &invoice, nil
}

func (s *store) FindDraftForPeriod(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where("lease_id = ? AND period_start = ? AND period_end = ? AND status = ?",
			leaseID, periodStart, periodEnd, invoicedomain.StatusDraft).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *store) ListLines(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.InvoiceLine, error) {
	var lines []invoicedomain.InvoiceLine
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("line_number").
		Find(&lines).Error
	return lines, err
}

func (s *store) Insert(ctx context.Context, invoice *invoicedomain.Invoice, lines []invoicedomain.InvoiceLine) error {
	if err := s.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&lines).Error
}

func (s *store) ReplaceLines(ctx context.Context, invoiceID snowflake.ID, lines []invoicedomain.InvoiceLine) error {
	if err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&invoicedomain.InvoiceLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&lines).Error
}

func (s *store) UpdateGuarded(ctx context.Context, invoiceID snowflake.ID, expectedVersion int64, updates map[string]any) error {
	payload := make(map[string]any, len(updates)+2)
	for key, value := range updates {
		payload[key] = value
	}
	payload["row_version"] = expectedVersion + 1
	payload["updated_at"] = s.clock.Now().UTC()

	result := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND row_version = ?", invoiceID, expectedVersion).
		Updates(payload)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errkind.New(errkind.Conflict, "invoice was modified by another process, please retry")
	}
	return nil
}

func (s *store) List(ctx context.Context, orgID snowflake.ID, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, error) {
	stmt := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("org_id = ?", orgID)

	if filter.LeaseID != 0 {
		stmt = stmt.Where("lease_id = ?", filter.LeaseID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 250 {
		limit = 250
	}

	var invoices []invoicedomain.Invoice
	err := stmt.Order("id DESC").Limit(limit).Find(&invoices).Error
	return invoices, err
}
