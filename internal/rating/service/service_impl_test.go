package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	leasedomain "github.com/smallbiznis/tenancy/internal/lease/domain"
	leaserepo "github.com/smallbiznis/tenancy/internal/lease/repository"
	"github.com/smallbiznis/tenancy/internal/proration"
	ratingdomain "github.com/smallbiznis/tenancy/internal/rating/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupRatingTest(t *testing.T) (*gorm.DB, ratingdomain.Service, *snowflake.Node) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&leasedomain.Lease{},
		&leasedomain.LeaseTerm{},
		&leasedomain.LeaseRecurringCharge{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		Log:       zap.NewNop(),
		LeaseRepo: leaserepo.Provide(db),
	})
	return db, svc, node
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCalculateRent_FullCoverageUnprorated(t *testing.T) {
	db, svc, node := setupRatingTest(t)

	orgID := node.Generate()
	leaseID := node.Generate()
	db.Create(&leasedomain.LeaseTerm{
		ID:            node.Generate(),
		OrgID:         orgID,
		LeaseID:       leaseID,
		MonthlyRent:   2500000,
		EffectiveFrom: date(2023, time.June, 1),
	})

	calc, err := svc.CalculateRent(context.Background(), leaseID,
		date(2024, time.January, 1), date(2024, time.January, 31), proration.MethodActualDays)
	require.NoError(t, err)

	require.Len(t, calc.LineItems, 1)
	assert.Equal(t, int64(2500000), calc.TotalAmount)
	assert.False(t, calc.LineItems[0].IsProrated)
	assert.Equal(t, ratingdomain.ChargeTypeRent, calc.LineItems[0].ChargeType)
}

func TestCalculateRent_MidMonthRentChange(t *testing.T) {
	db, svc, node := setupRatingTest(t)

	orgID := node.Generate()
	leaseID := node.Generate()

	// Rent changes on Jan 16: two terms overlap January.
	db.Create(&leasedomain.LeaseTerm{
		ID:            node.Generate(),
		OrgID:         orgID,
		LeaseID:       leaseID,
		MonthlyRent:   310000,
		EffectiveFrom: date(2023, time.July, 1),
		EffectiveTo:   timePtr(date(2024, time.January, 15)),
	})
	db.Create(&leasedomain.LeaseTerm{
		ID:            node.Generate(),
		OrgID:         orgID,
		LeaseID:       leaseID,
		MonthlyRent:   620000,
		EffectiveFrom: date(2024, time.January, 16),
	})

	calc, err := svc.CalculateRent(context.Background(), leaseID,
		date(2024, time.January, 1), date(2024, time.January, 31), proration.MethodActualDays)
	require.NoError(t, err)

	require.Len(t, calc.LineItems, 2)
	// 15/31 of 310000 and 16/31 of 620000.
	assert.Equal(t, int64(150000), calc.LineItems[0].Amount)
	assert.True(t, calc.LineItems[0].IsProrated)
	assert.Equal(t, int64(320000), calc.LineItems[1].Amount)
	assert.True(t, calc.LineItems[1].IsProrated)
	assert.Equal(t, int64(470000), calc.TotalAmount)
}

func TestCalculateRent_NoOverlappingTerms(t *testing.T) {
	_, svc, node := setupRatingTest(t)

	calc, err := svc.CalculateRent(context.Background(), node.Generate(),
		date(2024, time.January, 1), date(2024, time.January, 31), proration.MethodActualDays)
	require.NoError(t, err)
	assert.Zero(t, calc.TotalAmount)
	assert.Empty(t, calc.LineItems)
}

func TestCalculateRent_SoftDeletedTermIgnored(t *testing.T) {
	db, svc, node := setupRatingTest(t)

	orgID := node.Generate()
	leaseID := node.Generate()
	term := &leasedomain.LeaseTerm{
		ID:            node.Generate(),
		OrgID:         orgID,
		LeaseID:       leaseID,
		MonthlyRent:   100000,
		EffectiveFrom: date(2023, time.June, 1),
	}
	db.Create(term)
	db.Delete(term)

	calc, err := svc.CalculateRent(context.Background(), leaseID,
		date(2024, time.January, 1), date(2024, time.January, 31), proration.MethodActualDays)
	require.NoError(t, err)
	assert.Empty(t, calc.LineItems)
}

func TestCalculateRent_NegativeRentRejected(t *testing.T) {
	db, svc, node := setupRatingTest(t)

	leaseID := node.Generate()
	db.Create(&leasedomain.LeaseTerm{
		ID:            node.Generate(),
		OrgID:         node.Generate(),
		LeaseID:       leaseID,
		MonthlyRent:   -1,
		EffectiveFrom: date(2023, time.June, 1),
	})

	_, err := svc.CalculateRent(context.Background(), leaseID,
		date(2024, time.January, 1), date(2024, time.January, 31), proration.MethodActualDays)
	assert.True(t, errkind.Is(err, errkind.InvalidArgument))
}

func TestCalculateRecurringCharges_MonthlyAndProrated(t *testing.T) {
	db, svc, node := setupRatingTest(t)

	orgID := node.Generate()
	leaseID := node.Generate()

	db.Create(&leasedomain.LeaseRecurringCharge{
		ID:         node.Generate(),
		OrgID:      orgID,
		LeaseID:    leaseID,
		Name:       "Parking",
		ChargeType: "PARKING",
		Amount:     50000,
		Frequency:  leasedomain.FrequencyMonthly,
	})
	// Internet starts mid-month: prorated 16/31.
	db.Create(&leasedomain.LeaseRecurringCharge{
		ID:         node.Generate(),
		OrgID:      orgID,
		LeaseID:    leaseID,
		Name:       "Internet",
		ChargeType: "INTERNET",
		Amount:     62000,
		Frequency:  leasedomain.FrequencyMonthly,
		StartDate:  timePtr(date(2024, time.January, 16)),
	})

	calc, err := svc.CalculateRecurringCharges(context.Background(), leaseID,
		date(2024, time.January, 1), date(2024, time.January, 31), proration.MethodActualDays)
	require.NoError(t, err)

	require.Len(t, calc.LineItems, 2)
	assert.Equal(t, int64(50000), calc.LineItems[0].Amount)
	assert.False(t, calc.LineItems[0].IsProrated)
	assert.Equal(t, int64(32000), calc.LineItems[1].Amount)
	assert.True(t, calc.LineItems[1].IsProrated)
	assert.Equal(t, int64(82000), calc.TotalAmount)
}

func TestCalculateRecurringCharges_QuarterlyDueMonths(t *testing.T) {
	db, svc, node := setupRatingTest(t)

	leaseID := node.Generate()
	db.Create(&leasedomain.LeaseRecurringCharge{
		ID:         node.Generate(),
		OrgID:      node.Generate(),
		LeaseID:    leaseID,
		Name:       "Maintenance",
		ChargeType: "MAINTENANCE",
		Amount:     90000,
		Frequency:  leasedomain.FrequencyQuarterly,
		StartDate:  timePtr(date(2024, time.January, 1)),
	})

	due, err := svc.CalculateRecurringCharges(context.Background(), leaseID,
		date(2024, time.April, 1), date(2024, time.April, 30), proration.MethodActualDays)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), due.TotalAmount)

	notDue, err := svc.CalculateRecurringCharges(context.Background(), leaseID,
		date(2024, time.May, 1), date(2024, time.May, 31), proration.MethodActualDays)
	require.NoError(t, err)
	assert.Empty(t, notDue.LineItems)
}

func TestCalculateRent_TaxAppliedPerLine(t *testing.T) {
	db, svc, node := setupRatingTest(t)

	leaseID := node.Generate()
	db.Create(&leasedomain.LeaseTerm{
		ID:            node.Generate(),
		OrgID:         node.Generate(),
		LeaseID:       leaseID,
		MonthlyRent:   100000,
		TaxRateBps:    1800, // 18%
		EffectiveFrom: date(2023, time.June, 1),
	})

	calc, err := svc.CalculateRent(context.Background(), leaseID,
		date(2024, time.January, 1), date(2024, time.January, 31), proration.MethodActualDays)
	require.NoError(t, err)
	require.Len(t, calc.LineItems, 1)
	assert.Equal(t, int64(18000), calc.LineItems[0].TaxAmount)
}
