package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/tenancy/internal/sequence/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type Service struct {
	log *zap.Logger
}

type Params struct {
	fx.In

	Log *zap.Logger
}

func New(p Params) domain.Service {
	return &Service{
		log: p.Log.Named("sequence.service"),
	}
}

func (s *Service) NextInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, prefix string) (string, error) {
	return s.next(ctx, tx, orgID, domain.KindInvoice, prefix)
}

func (s *Service) NextCreditNoteNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, prefix string) (string, error) {
	return s.next(ctx, tx, orgID, domain.KindCreditNote, prefix)
}

// next ensures the counter row exists, increments it, and reads the new
// value back. The guarded UPDATE locks the row on postgres, so two
// transactions incrementing the same counter serialize and never hand out
// the same number.
func (s *Service) next(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, kind, prefix string) (string, error) {
	if tx == nil {
		return "", errkind.New(errkind.InvalidArgument, "sequence: transaction is required")
	}

	seed := domain.OrgSequence{OrgID: orgID, Kind: kind}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return "", errkind.Wrap(errkind.Unknown, "sequence: seed counter", err)
	}

	if err := tx.WithContext(ctx).
		Model(&domain.OrgSequence{}).
		Where("org_id = ? AND kind = ?", orgID, kind).
		UpdateColumn("next_value", gorm.Expr("next_value + 1")).Error; err != nil {
		return "", errkind.Wrap(errkind.Unknown, "sequence: increment counter", err)
	}

	var row domain.OrgSequence
	if err := tx.WithContext(ctx).
		Where("org_id = ? AND kind = ?", orgID, kind).
		First(&row).Error; err != nil {
		return "", errkind.Wrap(errkind.Unknown, "sequence: read counter", err)
	}

	return fmt.Sprintf("%s-%06d", prefix, row.NextValue), nil
}
