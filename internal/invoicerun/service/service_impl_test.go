package service

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
	svc   rundomain.Service
	orgID snowflake.ID
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

	node, err := snowflake.NewNode(8)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC))
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

	svc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		LeaseRepo:   leaseRepo,
		UtilityRepo: utilityRepo,
		Invoices:    invoices,
		Metrics:     metrics.Billing(),
	})

	return &fixture{db: db, node: node, svc: svc, orgID: node.Generate()}
}

func (f *fixture) seedActiveLease(t *testing.T, monthlyRent int64) snowflake.ID {
	t.Helper()

	lease := leasedomain.Lease{
		ID:        f.node.Generate(),
		OrgID:     f.orgID,
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
		OrgID:         f.orgID,
		LeaseID:       lease.ID,
		MonthlyRent:   monthlyRent,
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
	return lease.ID
}

var (
	april1  = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	april30 = time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
)

func TestMonthlyRentRunPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.seedActiveLease(t, 250000)
	}
	// A negative rent makes this lease fail rating.
	failing := f.seedActiveLease(t, -100)

	result, err := f.svc.ExecuteMonthlyRentRun(ctx, f.orgID, april1, april30, "")
	require.NoError(t, err)
	require.True(t, result.IsSuccess)
	require.Equal(t, 5, result.Run.TotalCount)
	require.Equal(t, 4, result.Run.SuccessCount)
	require.Equal(t, 1, result.Run.FailureCount)
	require.Len(t, result.Items, 5)

	var failedItems []rundomain.InvoiceRunItem
	for _, item := range result.Items {
		if item.Status == rundomain.ItemStatusFailed {
			failedItems = append(failedItems, item)
		}
	}
	require.Len(t, failedItems, 1)
	require.Equal(t, failing, failedItems[0].LeaseID)
	require.NotNil(t, failedItems[0].ErrorMessage)
	require.NotEmpty(t, *failedItems[0].ErrorMessage)

	var invoiceCount int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	require.Equal(t, int64(4), invoiceCount)

	var persistedItems int64
	require.NoError(t, f.db.Model(&rundomain.InvoiceRunItem{}).
		Where("run_id = ?", result.Run.ID).
		Count(&persistedItems).Error)
	require.Equal(t, int64(5), persistedItems)
}

func TestMonthlyRentRunEmptyOrg(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.ExecuteMonthlyRentRun(context.Background(), f.orgID, april1, april30, "")
	require.NoError(t, err)
	require.True(t, result.IsSuccess)
	require.Zero(t, result.Run.TotalCount)
	require.Empty(t, result.Items)
}

func TestUtilityRunScopesToPendingStatements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withStatement := f.seedActiveLease(t, 250000)
	f.seedActiveLease(t, 250000)

	amount := int64(45000)
	require.NoError(t, f.db.Create(&utilitydomain.UtilityStatement{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		LeaseID:     withStatement,
		UtilityType: utilitydomain.UtilityTypeWater,
		PeriodStart: april1,
		PeriodEnd:   april30,
		FlatAmount:  &amount,
		Status:      utilitydomain.StatementStatusPending,
	}).Error)

	result, err := f.svc.ExecuteUtilityRun(ctx, f.orgID, april1, april30)
	require.NoError(t, err)
	require.Equal(t, 1, result.Run.TotalCount)
	require.Equal(t, 1, result.Run.SuccessCount)
	require.Equal(t, withStatement, result.Items[0].LeaseID)
}

func TestRunIsReproducibleForSamePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedActiveLease(t, 250000)

	first, err := f.svc.ExecuteMonthlyRentRun(ctx, f.orgID, april1, april30, "")
	require.NoError(t, err)
	require.False(t, first.Items[0].WasUpdated)

	second, err := f.svc.ExecuteMonthlyRentRun(ctx, f.orgID, april1, april30, "")
	require.NoError(t, err)
	require.True(t, second.Items[0].WasUpdated)

	var invoiceCount int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	require.Equal(t, int64(1), invoiceCount)
}
