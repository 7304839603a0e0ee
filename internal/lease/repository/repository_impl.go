package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	leasedomain "github.com/smallbiznis/tenancy/internal/lease/domain"
	"github.com/smallbiznis/tenancy/pkg/db/option"
	"github.com/smallbiznis/tenancy/pkg/repository"
	"gorm.io/gorm"
)

type store struct {
	db        *gorm.DB
	leaserepo repository.Repository[leasedomain.Lease]
}

func Provide(db *gorm.DB) leasedomain.Repository {
	return &store{
		db:        db,
		leaserepo: repository.ProvideStore[leasedomain.Lease](db),
	}
}

func (s *store) WithTrx(tx *gorm.DB) leasedomain.Repository {
	return &store{
		db:        tx,
		leaserepo: s.leaserepo.WithTrx(tx),
	}
}

func (s *store) FindLease(ctx context.Context, orgID, leaseID snowflake.ID) (*leasedomain.Lease, error) {
	return s.leaserepo.FindOne(ctx, &leasedomain.Lease{ID: leaseID, OrgID: orgID})
}

func (s *store) ListActiveLeases(ctx context.Context, orgID snowflake.ID) ([]leasedomain.Lease, error) {
	items, err := s.leaserepo.Find(ctx,
		&leasedomain.Lease{OrgID: orgID, Status: leasedomain.LeaseStatusActive},
		option.WithSortBy(option.QuerySortBy{Field: "id", Allow: map[string]bool{"id": true}}),
	)
	if err != nil {
		return nil, err
	}
	leases := make([]leasedomain.Lease, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		leases = append(leases, *item)
	}
	return leases, nil
}

// Terms are matched on effective dates alone; lease status does not gate
// which terms bill.
func (s *store) ListTermsOverlapping(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time) ([]leasedomain.LeaseTerm, error) {
	var terms []leasedomain.LeaseTerm
	err := s.db.WithContext(ctx).
		Where("lease_id = ?", leaseID).
		Where("effective_from <= ?", periodEnd).
		Where("effective_to IS NULL OR effective_to >= ?", periodStart).
		Order("effective_from").
		Find(&terms).Error
	return terms, err
}

func (s *store) ListRecurringChargesOverlapping(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time) ([]leasedomain.LeaseRecurringCharge, error) {
	var charges []leasedomain.LeaseRecurringCharge
	err := s.db.WithContext(ctx).
		Where("lease_id = ?", leaseID).
		Where("start_date IS NULL OR start_date <= ?", periodEnd).
		Where("end_date IS NULL OR end_date >= ?", periodStart).
		Order("id").
		Find(&charges).Error
	return charges, err
}
