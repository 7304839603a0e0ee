package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/sequence/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.OrgSequence{}))
	return db
}

func newService(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{Log: zap.NewNop()})
}

func TestNextInvoiceNumberMonotonic(t *testing.T) {
	db := setupDB(t)
	svc := newService(t)
	ctx := context.Background()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	orgID := node.Generate()

	var first, second string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		first, err = svc.NextInvoiceNumber(ctx, tx, orgID, "INV")
		return err
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		second, err = svc.NextInvoiceNumber(ctx, tx, orgID, "INV")
		return err
	}))

	require.Equal(t, "INV-000001", first)
	require.Equal(t, "INV-000002", second)
}

func TestSequencesIndependentPerOrgAndKind(t *testing.T) {
	db := setupDB(t)
	svc := newService(t)
	ctx := context.Background()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	orgA := node.Generate()
	orgB := node.Generate()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		n, err := svc.NextInvoiceNumber(ctx, tx, orgA, "INV")
		require.Equal(t, "INV-000001", n)
		return err
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		n, err := svc.NextInvoiceNumber(ctx, tx, orgB, "INV")
		require.Equal(t, "INV-000001", n)
		return err
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		n, err := svc.NextCreditNoteNumber(ctx, tx, orgA, "CN")
		require.Equal(t, "CN-000001", n)
		return err
	}))
}

func TestNextInvoiceNumberRequiresTransaction(t *testing.T) {
	svc := newService(t)

	_, err := svc.NextInvoiceNumber(context.Background(), nil, 1, "INV")
	require.True(t, errkind.Is(err, errkind.InvalidArgument))
}
