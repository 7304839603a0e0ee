package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/actorcontext"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	"github.com/smallbiznis/tenancy/internal/proration"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

// NewConfirmationService reuses the payment service's collaborators for the
// tenant-submitted confirmation workflow.
func NewConfirmationService(p Params) paymentdomain.ConfirmationService {
	return &confirmationService{Service{
		db:          p.DB,
		log:         p.Log.Named("payment.confirmation"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		storage:     p.Storage,
		audit:       p.Audit,
		metrics:     p.Metrics,
	}}
}

type confirmationService struct {
	Service
}

func (s *confirmationService) Create(ctx context.Context, req paymentdomain.CreateConfirmationRequest) (*paymentdomain.ConfirmationRequest, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, req.OrgID, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, errkind.Newf(errkind.NotFound, "invoice %d not found", req.InvoiceID)
	}
	if !invoice.AcceptsPayments() {
		return nil, errkind.Newf(errkind.InvalidState, "invoice %s is %s and does not accept payments", invoice.InvoiceNumber, invoice.Status)
	}
	if req.Amount <= 0 {
		return nil, errkind.New(errkind.InvalidArgument, "claimed amount must be positive")
	}
	if req.Amount > invoice.Balance {
		return nil, errkind.Newf(errkind.InvalidArgument, "claimed amount %d exceeds invoice balance of %d", req.Amount, invoice.Balance)
	}

	now := s.clock.Now()
	request := &paymentdomain.ConfirmationRequest{
		ID:            s.genID.Generate(),
		OrgID:         req.OrgID,
		InvoiceID:     invoice.ID,
		Amount:        req.Amount,
		PaymentDate:   proration.Date(req.PaymentDate),
		ReceiptNumber: strings.TrimSpace(req.ReceiptNumber),
		Status:        paymentdomain.ConfirmationPending,
		CreatedBy:     actorcontext.Actor(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if req.Proof != nil {
		object, err := s.storage.Upload(ctx, req.Proof, req.ProofFilename, req.ProofType, "payment-proofs")
		if err != nil {
			return nil, err
		}
		request.ProofKey = &object.Key
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).InsertRequest(ctx, request); err != nil {
			return err
		}
		return s.audit.AuditLog(ctx, tx, req.OrgID, "payment_confirmation.created", "payment_confirmation_request", request.ID.String(), map[string]any{
			"invoice_id": invoice.ID.String(),
			"amount":     req.Amount,
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Confirm converts the pending request into a Completed cash payment. The
// claimed amount is re-checked against the balance as it stands now, not as
// it stood at submission.
func (s *confirmationService) Confirm(ctx context.Context, orgID, requestID snowflake.ID, response string) (*paymentdomain.ConfirmationRequest, error) {
	request, err := s.mustFindRequest(ctx, orgID, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != paymentdomain.ConfirmationPending {
		return nil, errkind.Newf(errkind.InvalidState, "confirmation request is already %s", request.Status)
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, orgID, request.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, errkind.Newf(errkind.NotFound, "invoice %d not found", request.InvoiceID)
	}
	if !invoice.AcceptsPayments() {
		return nil, errkind.Newf(errkind.InvalidState, "invoice %s is %s and does not accept payments", invoice.InvoiceNumber, invoice.Status)
	}

	reviewer := actorcontext.Actor(ctx)
	response = strings.TrimSpace(response)
	now := s.clock.Now()

	payment := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		InvoiceID:   invoice.ID,
		LeaseID:     invoice.LeaseID,
		Type:        paymentdomain.TypeRent,
		Mode:        paymentdomain.ModeCash,
		Status:      paymentdomain.StatusCompleted,
		Amount:      request.Amount,
		PaymentDate: request.PaymentDate,
		ReceivedBy:  reviewer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		completed, err := repo.SumCompleted(ctx, invoice.ID)
		if err != nil {
			return err
		}
		currentBalance := invoice.Total - completed
		if request.Amount > currentBalance {
			return errkind.Newf(errkind.InvalidArgument, "claimed amount %d exceeds invoice balance of %d", request.Amount, currentBalance)
		}

		if err := repo.Insert(ctx, payment); err != nil {
			return err
		}
		if _, err := s.applyCompletedAmount(ctx, tx, invoice, completed+request.Amount); err != nil {
			return err
		}

		updates := map[string]any{
			"status":      paymentdomain.ConfirmationConfirmed,
			"reviewed_by": reviewer,
			"payment_id":  payment.ID,
		}
		if response != "" {
			updates["review_response"] = response
		}
		if err := repo.UpdateRequestGuarded(ctx, request.ID, request.RowVersion, updates); err != nil {
			return err
		}

		return s.audit.AuditLog(ctx, tx, orgID, "payment_confirmation.confirmed", "payment_confirmation_request", request.ID.String(), map[string]any{
			"payment_id": payment.ID.String(),
			"amount":     request.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObservePaymentRecorded(string(paymentdomain.ModeCash), string(paymentdomain.StatusCompleted))
	request.Status = paymentdomain.ConfirmationConfirmed
	request.ReviewedBy = &reviewer
	if response != "" {
		request.ReviewResponse = &response
	}
	request.PaymentID = &payment.ID
	request.RowVersion++
	return request, nil
}

func (s *confirmationService) Reject(ctx context.Context, orgID, requestID snowflake.ID, response string) (*paymentdomain.ConfirmationRequest, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, errkind.New(errkind.InvalidArgument, "a review response is required to reject")
	}

	request, err := s.mustFindRequest(ctx, orgID, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != paymentdomain.ConfirmationPending {
		return nil, errkind.Newf(errkind.InvalidState, "confirmation request is already %s", request.Status)
	}

	reviewer := actorcontext.Actor(ctx)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		if err := repo.UpdateRequestGuarded(ctx, request.ID, request.RowVersion, map[string]any{
			"status":          paymentdomain.ConfirmationRejected,
			"reviewed_by":     reviewer,
			"review_response": response,
		}); err != nil {
			return err
		}
		return s.audit.AuditLog(ctx, tx, orgID, "payment_confirmation.rejected", "payment_confirmation_request", request.ID.String(), map[string]any{
			"response": response,
		})
	})
	if err != nil {
		return nil, err
	}

	request.Status = paymentdomain.ConfirmationRejected
	request.ReviewedBy = &reviewer
	request.ReviewResponse = &response
	request.RowVersion++
	return request, nil
}

func (s *confirmationService) mustFindRequest(ctx context.Context, orgID, requestID snowflake.ID) (*paymentdomain.ConfirmationRequest, error) {
	request, err := s.repo.FindRequest(ctx, orgID, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, errkind.Newf(errkind.NotFound, "confirmation request %d not found", requestID)
	}
	return request, nil
}
