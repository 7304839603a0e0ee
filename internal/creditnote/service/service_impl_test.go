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
	creditnotedomain "github.com/smallbiznis/tenancy/internal/creditnote/domain"
	creditnoterepository "github.com/smallbiznis/tenancy/internal/creditnote/repository"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/tenancy/internal/invoice/repository"
	"github.com/smallbiznis/tenancy/internal/observability/metrics"
	sequencedomain "github.com/smallbiznis/tenancy/internal/sequence/domain"
	sequenceservice "github.com/smallbiznis/tenancy/internal/sequence/service"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	svc     creditnotedomain.Service
	orgID   snowflake.ID
	invoice invoicedomain.Invoice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&creditnotedomain.CreditNote{},
		&creditnotedomain.CreditNoteLine{},
		&sequencedomain.OrgSequence{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))
	auditRepo := auditrepository.New(auditrepository.Params{})
	auditSvc := auditservice.New(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditRepo})

	svc := NewService(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		BillingConfig: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Repo:          creditnoterepository.Provide(db, clk),
		InvoiceRepo:   invoicerepository.Provide(db, clk),
		Sequence:      sequenceservice.New(sequenceservice.Params{Log: log}),
		Audit:         auditSvc,
		Metrics:       metrics.Billing(),
	})

	f := &fixture{db: db, node: node, svc: svc, orgID: node.Generate()}
	f.invoice = f.seedIssuedInvoice(t)
	return f
}

func (f *fixture) seedIssuedInvoice(t *testing.T) invoicedomain.Invoice {
	t.Helper()

	invoice := invoicedomain.Invoice{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		LeaseID:       f.node.Generate(),
		InvoiceNumber: "INV-000042",
		Status:        invoicedomain.StatusIssued,
		InvoiceDate:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		PeriodStart:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		Currency:      "INR",
		Subtotal:      345000,
		Total:         345000,
		Balance:       345000,
		CreatedBy:     "System",
	}
	require.NoError(t, f.db.Create(&invoice).Error)

	lines := []invoicedomain.InvoiceLine{
		{
			ID: f.node.Generate(), OrgID: f.orgID, InvoiceID: invoice.ID,
			LineNumber: 1, ChargeType: "RENT", Description: "Rent 2025-04-01 to 2025-04-30",
			Quantity: 1, UnitPrice: 300000, Amount: 300000, Total: 300000,
		},
		{
			ID: f.node.Generate(), OrgID: f.orgID, InvoiceID: invoice.ID,
			LineNumber: 2, ChargeType: "UTILITY", Description: "Electricity charges",
			Quantity: 1, UnitPrice: 45000, Amount: 45000, Total: 45000,
		},
	}
	require.NoError(t, f.db.Create(&lines).Error)
	invoice.Lines = lines
	return invoice
}

func TestCreateCreditNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note, err := f.svc.Create(ctx, creditnotedomain.CreateRequest{
		OrgID:     f.orgID,
		InvoiceID: f.invoice.ID,
		Reason:    creditnotedomain.ReasonBillingError,
		Notes:     "meter misread",
		Lines: []creditnotedomain.CreateLine{
			{InvoiceLineID: f.invoice.Lines[1].ID, Amount: 20000},
		},
	})
	require.NoError(t, err)
	require.Equal(t, creditnotedomain.StatusDraft, note.Status)
	require.Nil(t, note.CreditNoteNumber)
	require.Len(t, note.Lines, 1)
	require.Equal(t, int64(-20000), note.Lines[0].Amount)
	require.Equal(t, int64(-20000), note.TotalAmount)
}

func TestCreateRejectsForeignInvoiceLine(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), creditnotedomain.CreateRequest{
		OrgID:     f.orgID,
		InvoiceID: f.invoice.ID,
		Reason:    creditnotedomain.ReasonOther,
		Lines: []creditnotedomain.CreateLine{
			{InvoiceLineID: f.node.Generate(), Amount: 100},
		},
	})
	require.True(t, errkind.Is(err, errkind.InvalidArgument))
}

func TestCreateRejectsOverCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, creditnotedomain.CreateRequest{
		OrgID:     f.orgID,
		InvoiceID: f.invoice.ID,
		Reason:    creditnotedomain.ReasonGoodwill,
		Lines: []creditnotedomain.CreateLine{
			{InvoiceLineID: f.invoice.Lines[1].ID, Amount: 40000},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	// The line has 45000; 40000 is already credited, so 10000 more exceeds
	// the remaining 5000.
	_, err = f.svc.Create(ctx, creditnotedomain.CreateRequest{
		OrgID:     f.orgID,
		InvoiceID: f.invoice.ID,
		Reason:    creditnotedomain.ReasonGoodwill,
		Lines: []creditnotedomain.CreateLine{
			{InvoiceLineID: f.invoice.Lines[1].ID, Amount: 10000},
		},
	})
	require.True(t, errkind.Is(err, errkind.InvalidArgument))
}

func TestIssueCreditNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note, err := f.svc.Create(ctx, creditnotedomain.CreateRequest{
		OrgID:     f.orgID,
		InvoiceID: f.invoice.ID,
		Reason:    creditnotedomain.ReasonDuplicateCharge,
		Lines: []creditnotedomain.CreateLine{
			{InvoiceLineID: f.invoice.Lines[0].ID, Amount: 300000},
		},
	})
	require.NoError(t, err)

	issued, err := f.svc.Issue(ctx, f.orgID, note.ID)
	require.NoError(t, err)
	require.Equal(t, creditnotedomain.StatusIssued, issued.Status)
	require.NotNil(t, issued.CreditNoteNumber)
	require.Equal(t, "CN-000001", *issued.CreditNoteNumber)
	require.NotNil(t, issued.IssuedAt)

	_, err = f.svc.Issue(ctx, f.orgID, note.ID)
	require.True(t, errkind.Is(err, errkind.InvalidState))
}

func TestCreateRequiresLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), creditnotedomain.CreateRequest{
		OrgID:     f.orgID,
		InvoiceID: f.invoice.ID,
		Reason:    creditnotedomain.ReasonOther,
	})
	require.True(t, errkind.Is(err, errkind.InvalidArgument))
}
