package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/tenancy/internal/audit/domain"
	auditrepository "github.com/smallbiznis/tenancy/internal/audit/repository"
	auditservice "github.com/smallbiznis/tenancy/internal/audit/service"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	"github.com/smallbiznis/tenancy/internal/invoice/render"
	invoicerepository "github.com/smallbiznis/tenancy/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/tenancy/internal/invoice/service"
	rundomain "github.com/smallbiznis/tenancy/internal/invoicerun/domain"
	runservice "github.com/smallbiznis/tenancy/internal/invoicerun/service"
	leasedomain "github.com/smallbiznis/tenancy/internal/lease/domain"
	leaserepository "github.com/smallbiznis/tenancy/internal/lease/repository"
	"github.com/smallbiznis/tenancy/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/tenancy/internal/organization/domain"
	orgrepository "github.com/smallbiznis/tenancy/internal/organization/repository"
	ratingservice "github.com/smallbiznis/tenancy/internal/rating/service"
	sequencedomain "github.com/smallbiznis/tenancy/internal/sequence/domain"
	sequenceservice "github.com/smallbiznis/tenancy/internal/sequence/service"
	utilitydomain "github.com/smallbiznis/tenancy/internal/utility/domain"
	utilityrepository "github.com/smallbiznis/tenancy/internal/utility/repository"
	utilityservice "github.com/smallbiznis/tenancy/internal/utility/service"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	sched *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&leasedomain.Lease{},
		&leasedomain.LeaseTerm{},
		&leasedomain.LeaseRecurringCharge{},
		&utilitydomain.UtilityRatePlan{},
		&utilitydomain.UtilityRateSlab{},
		&utilitydomain.UtilityStatement{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&rundomain.InvoiceRun{},
		&rundomain.InvoiceRunItem{},
		&sequencedomain.OrgSequence{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(11)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 4, 10, 3, 0, 0, 0, time.UTC))
	leaseRepo := leaserepository.Provide(db)
	utilityRepo := utilityrepository.Provide(db)
	invoiceRepo := invoicerepository.Provide(db, clk)
	orgRepo := orgrepository.Provide(db)

	rating := ratingservice.NewService(ratingservice.ServiceParam{Log: log, LeaseRepo: leaseRepo})
	utility := utilityservice.NewService(utilityservice.ServiceParam{Log: log, Repo: utilityRepo})
	seq := sequenceservice.New(sequenceservice.Params{Log: log})
	auditRepo := auditrepository.New(auditrepository.Params{})
	auditSvc := auditservice.New(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditRepo})

	invoices := invoiceservice.NewService(invoiceservice.Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		BillingConfig: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Repo:          invoiceRepo,
		LeaseRepo:     leaseRepo,
		UtilityRepo:   utilityRepo,
		OrgRepo:       orgRepo,
		Rating:        rating,
		Utility:       utility,
		Sequence:      seq,
		Audit:         auditSvc,
		Renderer:      render.New(),
		Metrics:       metrics.Billing(),
	})

	runs := runservice.NewService(runservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		LeaseRepo:   leaseRepo,
		UtilityRepo: utilityRepo,
		Invoices:    invoices,
		Metrics:     metrics.Billing(),
	})

	sched, err := New(Params{
		DB:          db,
		Log:         log,
		Clock:       clk,
		OrgRepo:     orgRepo,
		UtilityRepo: utilityRepo,
		Runs:        runs,
	})
	require.NoError(t, err)

	return &fixture{db: db, node: node, sched: sched}
}

func (f *fixture) seedOrg(t *testing.T, billingEnabled bool) snowflake.ID {
	t.Helper()

	org := orgdomain.Organization{
		ID:             f.node.Generate(),
		Name:           "Lakeside Residences",
		BillingEnabled: billingEnabled,
	}
	require.NoError(t, f.db.Create(&org).Error)
	return org.ID
}

func (f *fixture) seedActiveLease(t *testing.T, orgID snowflake.ID, monthlyRent int64) snowflake.ID {
	t.Helper()

	lease := leasedomain.Lease{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		UnitID:    f.node.Generate(),
		TenantID:  f.node.Generate(),
		Status:    leasedomain.LeaseStatusActive,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Currency:  "INR",
		CreatedBy: "System",
	}
	require.NoError(t, f.db.Create(&lease).Error)
	require.NoError(t, f.db.Create(&leasedomain.LeaseTerm{
		ID:            f.node.Generate(),
		OrgID:         orgID,
		LeaseID:       lease.ID,
		MonthlyRent:   monthlyRent,
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
	return lease.ID
}

func (f *fixture) countRuns(t *testing.T, orgID snowflake.ID, runType rundomain.RunType) int64 {
	t.Helper()

	var count int64
	require.NoError(t, f.db.Model(&rundomain.InvoiceRun{}).
		Where("org_id = ? AND run_type = ?", orgID, runType).
		Count(&count).Error)
	return count
}

func TestRunOnceGeneratesMonthlyInvoices(t *testing.T) {
	f := newFixture(t)

	orgID := f.seedOrg(t, true)
	f.seedActiveLease(t, orgID, 250000)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	require.Equal(t, int64(1), f.countRuns(t, orgID, rundomain.RunTypeMonthlyRent))

	var run rundomain.InvoiceRun
	require.NoError(t, f.db.Where("org_id = ?", orgID).First(&run).Error)
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), run.PeriodStart.UTC())
	require.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), run.PeriodEnd.UTC())
	require.Equal(t, 1, run.SuccessCount)

	var invoiceCount int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	require.Equal(t, int64(1), invoiceCount)
}

func TestRunOnceSkipsCompletedMonth(t *testing.T) {
	f := newFixture(t)

	orgID := f.seedOrg(t, true)
	f.seedActiveLease(t, orgID, 250000)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	require.NoError(t, f.sched.RunOnce(context.Background()))

	require.Equal(t, int64(1), f.countRuns(t, orgID, rundomain.RunTypeMonthlyRent))
}

func TestRunOnceSkipsBillingDisabledOrg(t *testing.T) {
	f := newFixture(t)

	orgID := f.seedOrg(t, false)
	f.seedActiveLease(t, orgID, 250000)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	require.Zero(t, f.countRuns(t, orgID, rundomain.RunTypeMonthlyRent))
}

func TestRunOnceUtilityRunNeedsPendingStatements(t *testing.T) {
	f := newFixture(t)

	quiet := f.seedOrg(t, true)
	f.seedActiveLease(t, quiet, 250000)

	busy := f.seedOrg(t, true)
	leaseID := f.seedActiveLease(t, busy, 250000)
	amount := int64(45000)
	require.NoError(t, f.db.Create(&utilitydomain.UtilityStatement{
		ID:          f.node.Generate(),
		OrgID:       busy,
		LeaseID:     leaseID,
		UtilityType: utilitydomain.UtilityTypeWater,
		PeriodStart: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		FlatAmount:  &amount,
		Status:      utilitydomain.StatementStatusPending,
	}).Error)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	require.Zero(t, f.countRuns(t, quiet, rundomain.RunTypeUtility))
	require.Equal(t, int64(1), f.countRuns(t, busy, rundomain.RunTypeUtility))

	var run rundomain.InvoiceRun
	require.NoError(t, f.db.Where("org_id = ? AND run_type = ?", busy, rundomain.RunTypeUtility).First(&run).Error)
	require.Equal(t, 1, run.SuccessCount)

	var statement utilitydomain.UtilityStatement
	require.NoError(t, f.db.Where("org_id = ?", busy).First(&statement).Error)
	require.Equal(t, utilitydomain.StatementStatusInvoiced, statement.Status)
}

func TestCurrentMonth(t *testing.T) {
	start, end := currentMonth(time.Date(2025, 2, 17, 15, 30, 0, 0, time.UTC))
	require.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), end)
}
