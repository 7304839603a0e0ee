package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/actorcontext"
	"github.com/smallbiznis/tenancy/internal/clock"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	rundomain "github.com/smallbiznis/tenancy/internal/invoicerun/domain"
	leasedomain "github.com/smallbiznis/tenancy/internal/lease/domain"
	"github.com/smallbiznis/tenancy/internal/observability/metrics"
	"github.com/smallbiznis/tenancy/internal/proration"
	utilitydomain "github.com/smallbiznis/tenancy/internal/utility/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	LeaseRepo   leasedomain.Repository
	UtilityRepo utilitydomain.Repository
	Invoices    invoicedomain.Service
	Metrics     *metrics.BillingMetrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	leaseRepo   leasedomain.Repository
	utilityRepo utilitydomain.Repository
	invoices    invoicedomain.Service
	metrics     *metrics.BillingMetrics
}

func NewService(p Params) rundomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoicerun.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		leaseRepo:   p.LeaseRepo,
		utilityRepo: p.UtilityRepo,
		invoices:    p.Invoices,
		metrics:     p.Metrics,
	}
}

func (s *Service) ExecuteMonthlyRentRun(ctx context.Context, orgID snowflake.ID, periodStart, periodEnd time.Time, method proration.Method) (rundomain.RunResult, error) {
	leases, err := s.leaseRepo.ListActiveLeases(ctx, orgID)
	if err != nil {
		return rundomain.RunResult{}, err
	}

	leaseIDs := make([]snowflake.ID, 0, len(leases))
	for _, lease := range leases {
		leaseIDs = append(leaseIDs, lease.ID)
	}
	return s.execute(ctx, rundomain.RunTypeMonthlyRent, orgID, leaseIDs, periodStart, periodEnd, method)
}

func (s *Service) ExecuteUtilityRun(ctx context.Context, orgID snowflake.ID, periodStart, periodEnd time.Time) (rundomain.RunResult, error) {
	leaseIDs, err := s.utilityRepo.ListLeasesWithPendingStatements(ctx, orgID)
	if err != nil {
		return rundomain.RunResult{}, err
	}
	return s.execute(ctx, rundomain.RunTypeUtility, orgID, leaseIDs, periodStart, periodEnd, "")
}

// execute attempts generation per lease sequentially, capturing each failure
// as an item rather than aborting. Cancellation stops before the next lease.
func (s *Service) execute(ctx context.Context, runType rundomain.RunType, orgID snowflake.ID, leaseIDs []snowflake.ID, periodStart, periodEnd time.Time, method proration.Method) (rundomain.RunResult, error) {
	startedAt := s.clock.Now()
	run := rundomain.InvoiceRun{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		RunType:     runType,
		Status:      rundomain.RunStatusCompleted,
		PeriodStart: proration.Date(periodStart),
		PeriodEnd:   proration.Date(periodEnd),
		StartedAt:   startedAt,
		CreatedBy:   actorcontext.Actor(ctx),
	}

	items := make([]rundomain.InvoiceRunItem, 0, len(leaseIDs))
	for _, leaseID := range leaseIDs {
		if err := ctx.Err(); err != nil {
			return rundomain.RunResult{}, err
		}

		item := rundomain.InvoiceRunItem{
			ID:      s.genID.Generate(),
			OrgID:   orgID,
			RunID:   run.ID,
			LeaseID: leaseID,
		}

		result, err := s.invoices.Generate(ctx, invoicedomain.GenerateRequest{
			OrgID:           orgID,
			LeaseID:         leaseID,
			PeriodStart:     periodStart,
			PeriodEnd:       periodEnd,
			ProrationMethod: method,
		})
		if err != nil {
			msg := err.Error()
			item.Status = rundomain.ItemStatusFailed
			item.ErrorMessage = &msg
			run.FailureCount++
			s.log.Warn("lease failed during invoice run",
				zap.Int64("lease_id", int64(leaseID)),
				zap.String("run_type", string(runType)),
				zap.Error(err),
			)
		} else {
			item.Status = rundomain.ItemStatusSuccess
			item.InvoiceID = &result.Invoice.ID
			item.WasUpdated = result.WasUpdated
			run.SuccessCount++
		}
		s.metrics.ObserveRunItem(string(runType), string(item.Status))
		items = append(items, item)
	}

	run.TotalCount = len(items)
	run.CompletedAt = s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return rundomain.RunResult{}, err
	}

	s.metrics.ObserveRunDuration(string(runType), run.CompletedAt.Sub(startedAt).Seconds())
	s.log.Info("invoice run completed",
		zap.String("run_type", string(runType)),
		zap.Int("total", run.TotalCount),
		zap.Int("failed", run.FailureCount),
	)
	return rundomain.RunResult{Run: run, Items: items, IsSuccess: true}, nil
}
