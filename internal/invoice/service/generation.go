package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/actorcontext"
	auditdomain "github.com/smallbiznis/tenancy/internal/audit/domain"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	"github.com/smallbiznis/tenancy/internal/invoice/render"
	leasedomain "github.com/smallbiznis/tenancy/internal/lease/domain"
	"github.com/smallbiznis/tenancy/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/tenancy/internal/organization/domain"
	"github.com/smallbiznis/tenancy/internal/proration"
	ratingdomain "github.com/smallbiznis/tenancy/internal/rating/domain"
	sequencedomain "github.com/smallbiznis/tenancy/internal/sequence/domain"
	utilitydomain "github.com/smallbiznis/tenancy/internal/utility/domain"
	utilityservice "github.com/smallbiznis/tenancy/internal/utility/service"
	"github.com/smallbiznis/tenancy/pkg/db"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	BillingConfig *config.BillingConfigHolder
	Repo          invoicedomain.Repository
	LeaseRepo     leasedomain.Repository
	UtilityRepo   utilitydomain.Repository
	OrgRepo       orgdomain.Repository
	Rating        ratingdomain.Service
	Utility       utilitydomain.Service
	Sequence      sequencedomain.Service
	Audit         auditdomain.Service
	Renderer      render.Renderer
	Metrics       *metrics.BillingMetrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	billing     *config.BillingConfigHolder
	repo        invoicedomain.Repository
	leaseRepo   leasedomain.Repository
	utilityRepo utilitydomain.Repository
	orgRepo     orgdomain.Repository
	rating      ratingdomain.Service
	utility     utilitydomain.Service
	sequence    sequencedomain.Service
	audit       auditdomain.Service
	renderer    render.Renderer
	metrics     *metrics.BillingMetrics
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		billing:     p.BillingConfig,
		repo:        p.Repo,
		leaseRepo:   p.LeaseRepo,
		utilityRepo: p.UtilityRepo,
		orgRepo:     p.OrgRepo,
		rating:      p.Rating,
		utility:     p.Utility,
		sequence:    p.Sequence,
		audit:       p.Audit,
		renderer:    p.Renderer,
		metrics:     p.Metrics,
	}
}

// Generate builds the draft invoice for one lease and period. A still-draft
// invoice for the same lease and period is refreshed in place; otherwise a
// new draft is created. A concurrent creator losing the unique-index race
// retries as an update, so two callers never produce two drafts.
func (s *Service) Generate(ctx context.Context, req invoicedomain.GenerateRequest) (invoicedomain.GenerateResult, error) {
	periodStart := proration.Date(req.PeriodStart)
	periodEnd := proration.Date(req.PeriodEnd)
	if periodEnd.Before(periodStart) {
		return invoicedomain.GenerateResult{}, errkind.New(errkind.InvalidArgument, "billing period end precedes start")
	}

	lease, err := s.leaseRepo.FindLease(ctx, req.OrgID, req.LeaseID)
	if err != nil {
		return invoicedomain.GenerateResult{}, err
	}
	if lease == nil {
		return invoicedomain.GenerateResult{}, errkind.Newf(errkind.NotFound, "lease %d not found", req.LeaseID)
	}

	method := req.ProrationMethod
	if method == "" {
		parsed, err := proration.ParseMethod(s.billing.Get().DefaultProrationMethod)
		if err != nil {
			return invoicedomain.GenerateResult{}, err
		}
		method = parsed
	}

	rent, err := s.rating.CalculateRent(ctx, req.LeaseID, periodStart, periodEnd, method)
	if err != nil {
		return invoicedomain.GenerateResult{}, err
	}
	recurring, err := s.rating.CalculateRecurringCharges(ctx, req.LeaseID, periodStart, periodEnd, method)
	if err != nil {
		return invoicedomain.GenerateResult{}, err
	}

	var result invoicedomain.GenerateResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		utilityRepo := s.utilityRepo.WithTrx(tx)

		draft, err := repo.FindDraftForPeriod(ctx, req.LeaseID, periodStart, periodEnd)
		if err != nil {
			return err
		}

		var existingInvoiceID *snowflake.ID
		if draft != nil {
			existingInvoiceID = &draft.ID
		}
		statements, err := utilityRepo.ListStatementsForInvoice(ctx, req.LeaseID, periodStart, periodEnd, existingInvoiceID)
		if err != nil {
			return err
		}
		utilityLines, err := s.rateStatements(ctx, utilityRepo, statements)
		if err != nil {
			return err
		}

		items := make([]ratingdomain.LineItem, 0, len(rent.LineItems)+len(recurring.LineItems)+len(utilityLines))
		items = append(items, rent.LineItems...)
		items = append(items, recurring.LineItems...)
		items = append(items, utilityLines...)

		if draft != nil {
			result.WasUpdated = true
			invoice, err := s.refreshDraft(ctx, repo, draft, items)
			if err != nil {
				return err
			}
			result.Invoice = *invoice
		} else {
			invoice, created, err := s.createDraft(ctx, tx, repo, lease, periodStart, periodEnd, items)
			if err != nil {
				return err
			}
			result.Invoice = *invoice
			result.WasUpdated = !created
		}

		statementIDs := make([]snowflake.ID, 0, len(statements))
		for _, st := range statements {
			statementIDs = append(statementIDs, st.ID)
		}
		if err := utilityRepo.MarkStatementsInvoiced(ctx, statementIDs, result.Invoice.ID, s.clock.Now()); err != nil {
			return err
		}

		return s.audit.AuditLog(ctx, tx, req.OrgID, "invoice.generated", "invoice", result.Invoice.ID.String(), map[string]any{
			"lease_id":     req.LeaseID.String(),
			"period_start": periodStart.Format(time.DateOnly),
			"period_end":   periodEnd.Format(time.DateOnly),
			"was_updated":  result.WasUpdated,
			"total":        result.Invoice.Total,
		})
	})
	if err != nil {
		return invoicedomain.GenerateResult{}, err
	}

	outcome := "created"
	if result.WasUpdated {
		outcome = "updated"
	}
	s.metrics.ObserveInvoiceGenerated(outcome)
	s.log.Info("generated invoice",
		zap.String("invoice_number", result.Invoice.InvoiceNumber),
		zap.Int64("lease_id", int64(req.LeaseID)),
		zap.Bool("was_updated", result.WasUpdated),
	)
	return result, nil
}

// refreshDraft replaces the draft's lines and recomputes totals, preserving
// whatever has already been paid against it.
func (s *Service) refreshDraft(ctx context.Context, repo invoicedomain.Repository, draft *invoicedomain.Invoice, items []ratingdomain.LineItem) (*invoicedomain.Invoice, error) {
	lines := s.buildLines(draft.OrgID, draft.ID, items)
	subtotal, tax := sumLines(lines)
	total := subtotal + tax

	if err := repo.ReplaceLines(ctx, draft.ID, lines); err != nil {
		return nil, err
	}

	if err := repo.UpdateGuarded(ctx, draft.ID, draft.RowVersion, map[string]any{
		"subtotal":    subtotal,
		"tax_amount":  tax,
		"total":       total,
		"balance":     total - draft.Paid,
		"modified_by": actorcontext.Actor(ctx),
	}); err != nil {
		return nil, err
	}

	draft.Subtotal = subtotal
	draft.TaxAmount = tax
	draft.Total = total
	draft.Balance = total - draft.Paid
	draft.RowVersion++
	draft.Lines = lines
	return draft, nil
}

// createDraft inserts a new draft. When a concurrent generator got there
// first the unique index rejects the insert and we fall back to refreshing
// the winner's draft. Returns created=false on that fallback path.
func (s *Service) createDraft(ctx context.Context, tx *gorm.DB, repo invoicedomain.Repository, lease *leasedomain.Lease, periodStart, periodEnd time.Time, items []ratingdomain.LineItem) (*invoicedomain.Invoice, bool, error) {
	number, err := s.sequence.NextInvoiceNumber(ctx, tx, lease.OrgID, s.billing.Get().InvoiceNumberPrefix)
	if err != nil {
		return nil, false, err
	}

	now := s.clock.Now()
	invoice := &invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		OrgID:         lease.OrgID,
		LeaseID:       lease.ID,
		InvoiceNumber: number,
		Status:        invoicedomain.StatusDraft,
		InvoiceDate:   proration.Date(now),
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Currency:      lease.Currency,
		CreatedBy:     actorcontext.Actor(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	lines := s.buildLines(invoice.OrgID, invoice.ID, items)
	subtotal, tax := sumLines(lines)
	invoice.Subtotal = subtotal
	invoice.TaxAmount = tax
	invoice.Total = subtotal + tax
	invoice.Balance = invoice.Total
	invoice.Lines = lines

	if err := repo.Insert(ctx, invoice, lines); err != nil {
		if db.IsDuplicateKeyErr(err) {
			draft, findErr := repo.FindDraftForPeriod(ctx, lease.ID, periodStart, periodEnd)
			if findErr != nil {
				return nil, false, findErr
			}
			if draft == nil {
				return nil, false, errkind.Wrap(errkind.Conflict, "invoice was modified by another process, please retry", err)
			}
			refreshed, refreshErr := s.refreshDraft(ctx, repo, draft, items)
			return refreshed, false, refreshErr
		}
		return nil, false, err
	}
	return invoice, true, nil
}

// rateStatements turns pending utility statements into rated line items.
// Rate plans are read through the transaction-bound repository so ratings
// see rows written earlier in the same transaction.
func (s *Service) rateStatements(ctx context.Context, utilityRepo utilitydomain.Repository, statements []utilitydomain.UtilityStatement) ([]ratingdomain.LineItem, error) {
	items := make([]ratingdomain.LineItem, 0, len(statements))
	for _, st := range statements {
		var (
			calc utilitydomain.Calculation
			tax  int64
			err  error
		)

		switch {
		case st.FlatAmount != nil:
			calc, err = s.utility.CalculateFromAmount(*st.FlatAmount)
		case st.RatePlanID != nil:
			plan, slabs, planErr := utilityRepo.FindRatePlan(ctx, *st.RatePlanID)
			if planErr != nil {
				return nil, planErr
			}
			if plan == nil {
				return nil, errkind.Newf(errkind.NotFound, "utility rate plan %d not found", *st.RatePlanID)
			}
			if plan.IsSlabBased {
				if len(slabs) == 0 {
					return nil, errkind.Wrap(errkind.InvalidState, "rate plan has no slabs", utilitydomain.ErrNoSlabsDefined)
				}
				calc, err = utilityservice.ComputeSlabCalculation(slabs, st.UnitsConsumed, plan.FixedCharge)
			} else {
				calc, err = s.utility.CalculateMeterFlat(st.UnitsConsumed, plan.RatePerUnit, plan.FixedCharge)
			}
			if err == nil {
				tax = plan.TaxRateBps
			}
		default:
			err = errkind.Newf(errkind.InvalidArgument, "utility statement %d has neither amount nor rate plan", st.ID)
		}
		if err != nil {
			return nil, err
		}

		items = append(items, ratingdomain.LineItem{
			SourceID:    st.ID,
			ChargeType:  ratingdomain.ChargeTypeUtility,
			Description: utilityDescription(st),
			Quantity:    statementQuantity(st),
			UnitPrice:   calc.TotalAmount,
			Amount:      calc.TotalAmount,
			TaxRateBps:  tax,
			TaxAmount:   proration.RoundDiv(calc.TotalAmount*tax, 10000),
			PeriodStart: st.PeriodStart,
			PeriodEnd:   st.PeriodEnd,
		})
	}
	return items, nil
}

func (s *Service) buildLines(orgID, invoiceID snowflake.ID, items []ratingdomain.LineItem) []invoicedomain.InvoiceLine {
	now := s.clock.Now()
	lines := make([]invoicedomain.InvoiceLine, 0, len(items))
	for i, item := range items {
		lines = append(lines, invoicedomain.InvoiceLine{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			InvoiceID:   invoiceID,
			LineNumber:  i + 1,
			ChargeType:  item.ChargeType,
			SourceID:    item.SourceID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
			TaxRateBps:  item.TaxRateBps,
			TaxAmount:   item.TaxAmount,
			Total:       item.Amount + item.TaxAmount,
			IsProrated:  item.IsProrated,
			CreatedAt:   now,
		})
	}
	return lines
}

func sumLines(lines []invoicedomain.InvoiceLine) (subtotal, tax int64) {
	for _, line := range lines {
		subtotal += line.Amount
		tax += line.TaxAmount
	}
	return subtotal, tax
}

func utilityDescription(st utilitydomain.UtilityStatement) string {
	label := "Utility"
	switch st.UtilityType {
	case utilitydomain.UtilityTypeElectricity:
		label = "Electricity"
	case utilitydomain.UtilityTypeWater:
		label = "Water"
	case utilitydomain.UtilityTypeGas:
		label = "Gas"
	}
	return fmt.Sprintf("%s charges %s to %s", label,
		st.PeriodStart.Format(time.DateOnly), st.PeriodEnd.Format(time.DateOnly))
}

func statementQuantity(st utilitydomain.UtilityStatement) float64 {
	if st.FlatAmount != nil {
		return 1
	}
	return st.UnitsConsumed
}
