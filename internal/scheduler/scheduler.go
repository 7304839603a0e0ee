// Package scheduler drives periodic invoice runs for every
// billing-enabled organization.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/clock"
	rundomain "github.com/smallbiznis/tenancy/internal/invoicerun/domain"
	orgdomain "github.com/smallbiznis/tenancy/internal/organization/domain"
	"github.com/smallbiznis/tenancy/internal/proration"
	utilitydomain "github.com/smallbiznis/tenancy/internal/utility/domain"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	OrgRepo     orgdomain.Repository
	UtilityRepo utilitydomain.Repository
	Runs        rundomain.Service
	Config      Config `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	orgRepo     orgdomain.Repository
	utilityRepo utilitydomain.Repository
	runs        rundomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.OrgRepo == nil || p.UtilityRepo == nil || p.Runs == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		orgRepo:     p.OrgRepo,
		utilityRepo: p.UtilityRepo,
		runs:        p.Runs,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps every billing-enabled organization. Utility runs execute
// first so pending statements are billed by a UTILITY run rather than being
// absorbed by the rent run's invoice refresh; the monthly rent run then
// executes at most once per org per calendar month.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	orgs, err := s.orgRepo.ListBillingEnabled(ctx)
	if err != nil {
		return err
	}

	periodStart, periodEnd := currentMonth(s.clock.Now())
	for _, org := range orgs {
		if err := ctx.Err(); err != nil {
			return err
		}

		pending, err := s.utilityRepo.ListLeasesWithPendingStatements(ctx, org.ID)
		if err != nil {
			s.log.Warn("pending statement lookup failed", zap.Int64("org_id", int64(org.ID)), zap.Error(err))
			continue
		}
		if len(pending) > 0 {
			if _, err := s.runs.ExecuteUtilityRun(ctx, org.ID, periodStart, periodEnd); err != nil {
				s.log.Warn("utility run failed", zap.Int64("org_id", int64(org.ID)), zap.Error(err))
			}
		}

		done, err := s.hasRun(ctx, org.ID, rundomain.RunTypeMonthlyRent, periodStart)
		if err != nil {
			s.log.Warn("rent run lookup failed", zap.Int64("org_id", int64(org.ID)), zap.Error(err))
			continue
		}
		if !done {
			result, err := s.runs.ExecuteMonthlyRentRun(ctx, org.ID, periodStart, periodEnd, "")
			if err != nil {
				s.log.Warn("monthly rent run failed", zap.Int64("org_id", int64(org.ID)), zap.Error(err))
			} else if result.Run.FailureCount > 0 {
				s.log.Warn("monthly rent run had failures",
					zap.Int64("org_id", int64(org.ID)),
					zap.Int("failed", result.Run.FailureCount),
				)
			}
		}
	}
	return nil
}

func (s *Scheduler) hasRun(ctx context.Context, orgID snowflake.ID, runType rundomain.RunType, periodStart time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&rundomain.InvoiceRun{}).
		Where("org_id = ? AND run_type = ? AND period_start = ?", orgID, runType, periodStart).
		Count(&count).Error
	return count > 0, err
}

// currentMonth returns the first and last day of now's month as dates.
func currentMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return proration.Date(start), proration.Date(end)
}
