package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	utilitydomain "github.com/smallbiznis/tenancy/internal/utility/domain"
	"github.com/smallbiznis/tenancy/pkg/repository"
	"gorm.io/gorm"
)

type store struct {
	db       *gorm.DB
	planrepo repository.Repository[utilitydomain.UtilityRatePlan]
}

func Provide(db *gorm.DB) utilitydomain.Repository {
	return &store{
		db:       db,
		planrepo: repository.ProvideStore[utilitydomain.UtilityRatePlan](db),
	}
}

func (s *store) WithTrx(tx *gorm.DB) utilitydomain.Repository {
	return &store{
		db:       tx,
		planrepo: s.planrepo.WithTrx(tx),
	}
}

func (s *store) FindRatePlan(ctx context.Context, ratePlanID snowflake.ID) (*utilitydomain.UtilityRatePlan, []utilitydomain.UtilityRateSlab, error) {
	plan, err := s.planrepo.FindOne(ctx, &utilitydomain.UtilityRatePlan{ID: ratePlanID})
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, nil
	}

	var slabs []utilitydomain.UtilityRateSlab
	err = s.db.WithContext(ctx).
		Where("rate_plan_id = ?", ratePlanID).
		Order("slab_order").
		Find(&slabs).Error
	if err != nil {
		return nil, nil, err
	}
	return plan, slabs, nil
}

// ListStatementsForInvoice returns pending statements in the period plus any
// already attached to invoiceID, so regeneration re-rates the same set.
func (s *store) ListStatementsForInvoice(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time, invoiceID *snowflake.ID) ([]utilitydomain.UtilityStatement, error) {
	stmt := s.db.WithContext(ctx).
		Where("lease_id = ?", leaseID).
		Where("period_start <= ? AND period_end >= ?", periodEnd, periodStart)
	if invoiceID != nil {
		stmt = stmt.Where("status = ? OR invoice_id = ?", utilitydomain.StatementStatusPending, *invoiceID)
	} else {
		stmt = stmt.Where("status = ?", utilitydomain.StatementStatusPending)
	}

	var statements []utilitydomain.UtilityStatement
	err := stmt.Order("id").Find(&statements).Error
	return statements, err
}

func (s *store) ListLeasesWithPendingStatements(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	var leaseIDs []snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&utilitydomain.UtilityStatement{}).
		Distinct("lease_id").
		Where("org_id = ? AND status = ?", orgID, utilitydomain.StatementStatusPending).
		Order("lease_id").
		Pluck("lease_id", &leaseIDs).Error
	return leaseIDs, err
}

func (s *store) MarkStatementsInvoiced(ctx context.Context, statementIDs []snowflake.ID, invoiceID snowflake.ID, now time.Time) error {
	if len(statementIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&utilitydomain.UtilityStatement{}).
		Where("id IN ?", statementIDs).
		Updates(map[string]any{
			"status":     utilitydomain.StatementStatusInvoiced,
			"invoice_id": invoiceID,
			"updated_at": now,
		}).Error
}
