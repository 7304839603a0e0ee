package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/clock"
	creditnotedomain "github.com/smallbiznis/tenancy/internal/creditnote/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type store struct {
	db    *gorm.DB
	clock clock.Clock
}

func Provide(db *gorm.DB, clk clock.Clock) creditnotedomain.Repository {
	return &store{db: db, clock: clk}
}

func (s *store) WithTrx(tx *gorm.DB) creditnotedomain.Repository {
	return &store{db: tx, clock: s.clock}
}

func (s *store) FindByID(ctx context.Context, orgID, creditNoteID snowflake.ID) (*creditnotedomain.CreditNote, error) {
	var note creditnotedomain.CreditNote
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", creditNoteID, orgID).
		First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var lines []creditnotedomain.CreditNoteLine
	if err := s.db.WithContext(ctx).
		Where("credit_note_id = ?", note.ID).
		Order("id").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	note.Lines = lines
	return &note, nil
}

func (s *store) Insert(ctx context.Context, note *creditnotedomain.CreditNote, lines []creditnotedomain.CreditNoteLine) error {
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&lines).Error
}

func (s *store) SumCreditedByInvoiceLine(ctx context.Context, invoiceID snowflake.ID) (map[snowflake.ID]int64, error) {
	type row struct {
		InvoiceLineID snowflake.ID
		Credited      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&creditnotedomain.CreditNoteLine{}).
		Select("credit_note_lines.invoice_line_id AS invoice_line_id, SUM(-credit_note_lines.amount) AS credited").
		Joins("JOIN credit_notes ON credit_notes.id = credit_note_lines.credit_note_id").
		Where("credit_notes.invoice_id = ?", invoiceID).
		Group("credit_note_lines.invoice_line_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	credited := make(map[snowflake.ID]int64, len(rows))
	for _, r := range rows {
		credited[r.InvoiceLineID] = r.Credited
	}
	return credited, nil
}

func (s *store) UpdateGuarded(ctx context.Context, creditNoteID snowflake.ID, expectedVersion int64, updates map[string]any) error {
	payload := make(map[string]any, len(updates)+2)
	for key, value := range updates {
		payload[key] = value
	}
	payload["row_version"] = expectedVersion + 1
	payload["updated_at"] = s.clock.Now().UTC()

	result := s.db.WithContext(ctx).
		Model(&creditnotedomain.CreditNote{}).
		Where("id = ? AND row_version = ?", creditNoteID, expectedVersion).
		Updates(payload)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errkind.New(errkind.Conflict, "credit note was modified by another process, please retry")
	}
	return nil
}
