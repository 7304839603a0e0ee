package service

import (
	"context"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/actorcontext"
	auditdomain "github.com/smallbiznis/tenancy/internal/audit/domain"
	"github.com/smallbiznis/tenancy/internal/clock"
	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
	"github.com/smallbiznis/tenancy/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	"github.com/smallbiznis/tenancy/internal/proration"
	"github.com/smallbiznis/tenancy/internal/storage"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Storage     storage.Service
	Audit       auditdomain.Service
	Metrics     *metrics.BillingMetrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	storage     storage.Service
	audit       auditdomain.Service
	metrics     *metrics.BillingMetrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		storage:     p.Storage,
		audit:       p.Audit,
		metrics:     p.Metrics,
	}
}

// RecordPayment validates in a fixed order: invoice exists, invoice accepts
// payments, amount positive, non-cash reference present, amount within the
// current balance. Cash completes immediately; online waits for
// confirmation; other modes complete once they carry a reference.
func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordRequest) (paymentdomain.RecordResult, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, req.OrgID, req.InvoiceID)
	if err != nil {
		return paymentdomain.RecordResult{}, err
	}
	if invoice == nil {
		return paymentdomain.RecordResult{}, errkind.Newf(errkind.NotFound, "invoice %d not found", req.InvoiceID)
	}
	if !invoice.AcceptsPayments() {
		return paymentdomain.RecordResult{}, errkind.Newf(errkind.InvalidState, "invoice %s is %s and does not accept payments", invoice.InvoiceNumber, invoice.Status)
	}
	if req.Amount <= 0 {
		return paymentdomain.RecordResult{}, errkind.New(errkind.InvalidArgument, "payment amount must be positive")
	}

	reference := strings.TrimSpace(req.Reference)
	if req.Mode != paymentdomain.ModeCash && reference == "" {
		return paymentdomain.RecordResult{}, errkind.Newf(errkind.InvalidArgument, "%s payments require a transaction reference", req.Mode)
	}

	status := paymentStatusFor(req.Mode)
	now := s.clock.Now()

	payment := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		OrgID:       req.OrgID,
		InvoiceID:   invoice.ID,
		LeaseID:     invoice.LeaseID,
		Type:        paymentTypeOrDefault(req.Type),
		Mode:        req.Mode,
		Status:      status,
		Amount:      req.Amount,
		PaymentDate: proration.Date(req.PaymentDate),
		Notes:       req.Notes,
		ReceivedBy:  actorcontext.Actor(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if reference != "" {
		payment.TransactionRef = &reference
	}
	if payer := strings.TrimSpace(req.PayerName); payer != "" {
		payment.PayerName = &payer
	}

	var balance int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		completed, err := repo.SumCompleted(ctx, invoice.ID)
		if err != nil {
			return err
		}
		currentBalance := invoice.Total - completed
		if req.Amount > currentBalance {
			return errkind.Newf(errkind.InvalidArgument, "payment of %d exceeds invoice balance of %d", req.Amount, currentBalance)
		}

		if err := repo.Insert(ctx, payment); err != nil {
			return err
		}

		balance = currentBalance
		if status == paymentdomain.StatusCompleted {
			balance, err = s.applyCompletedAmount(ctx, tx, invoice, completed+req.Amount)
			if err != nil {
				return err
			}
		}

		return s.audit.AuditLog(ctx, tx, req.OrgID, "payment.recorded", "payment", payment.ID.String(), map[string]any{
			"invoice_id": invoice.ID.String(),
			"mode":       string(req.Mode),
			"status":     string(status),
			"amount":     req.Amount,
		})
	})
	if err != nil {
		return paymentdomain.RecordResult{}, err
	}

	s.metrics.ObservePaymentRecorded(string(req.Mode), string(status))
	s.log.Info("recorded payment",
		zap.Int64("invoice_id", int64(invoice.ID)),
		zap.String("mode", string(req.Mode)),
		zap.Int64("amount", req.Amount),
	)
	return paymentdomain.RecordResult{
		PaymentID:      payment.ID,
		Status:         status,
		InvoiceBalance: balance,
	}, nil
}

func (s *Service) AttachReceipt(ctx context.Context, orgID, paymentID snowflake.ID, r io.Reader, filename, contentType string) (*paymentdomain.PaymentAttachment, error) {
	payment, err := s.repo.FindPayment(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, errkind.Newf(errkind.NotFound, "payment %d not found", paymentID)
	}

	object, err := s.storage.Upload(ctx, r, filename, contentType, "payment-receipts")
	if err != nil {
		return nil, err
	}
	order, err := s.repo.NextDisplayOrder(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	attachment := &paymentdomain.PaymentAttachment{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		PaymentID:    paymentID,
		StorageKey:   object.Key,
		FileName:     filename,
		ContentType:  contentType,
		DisplayOrder: order,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.InsertAttachment(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// applyCompletedAmount writes the invoice's new paid amount, balance, and
// status under the row-version guard. completedTotal already includes the
// payment being applied.
func (s *Service) applyCompletedAmount(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, completedTotal int64) (int64, error) {
	balance := invoice.Total - completedTotal

	status := invoice.Status
	if balance == 0 {
		status = invoicedomain.StatusPaid
	} else if balance < invoice.Total {
		status = invoicedomain.StatusPartiallyPaid
	}

	updates := map[string]any{
		"paid":        completedTotal,
		"balance":     balance,
		"status":      status,
		"modified_by": actorcontext.Actor(ctx),
	}
	if status == invoicedomain.StatusPaid {
		updates["paid_at"] = s.clock.Now()
	}

	if err := s.invoiceRepo.WithTrx(tx).UpdateGuarded(ctx, invoice.ID, invoice.RowVersion, updates); err != nil {
		return 0, err
	}
	invoice.RowVersion++
	invoice.Paid = completedTotal
	invoice.Balance = balance
	invoice.Status = status
	return balance, nil
}

func paymentStatusFor(mode paymentdomain.PaymentMode) paymentdomain.PaymentStatus {
	switch mode {
	case paymentdomain.ModeCash:
		return paymentdomain.StatusCompleted
	case paymentdomain.ModeOnline:
		// Online settles through a gateway confirmation, recorded
		// separately.
		return paymentdomain.StatusPending
	default:
		return paymentdomain.StatusCompleted
	}
}

func paymentTypeOrDefault(t paymentdomain.PaymentType) paymentdomain.PaymentType {
	if t == "" {
		return paymentdomain.TypeRent
	}
	return t
}
