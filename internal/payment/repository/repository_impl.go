package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/clock"
	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type store struct {
	db    *gorm.DB
	clock clock.Clock
}

func Provide(db *gorm.DB, clk clock.Clock) paymentdomain.Repository {
	return &store{db: db, clock: clk}
}

func (s *store) WithTrx(tx *gorm.DB) paymentdomain.Repository {
	return &store{db: tx, clock: s.clock}
}

func (s *store) FindPayment(ctx context.Context, orgID, paymentID snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", paymentID, orgID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (s *store) Insert(ctx context.Context, payment *paymentdomain.Payment) error {
	return s.db.WithContext(ctx).Create(payment).Error
}

func (s *store) SumCompleted(ctx context.Context, invoiceID snowflake.ID) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ? AND status = ?", invoiceID, paymentdomain.StatusCompleted).
		Scan(&total).Error
	return total, err
}

func (s *store) InsertAttachment(ctx context.Context, attachment *paymentdomain.PaymentAttachment) error {
	return s.db.WithContext(ctx).Create(attachment).Error
}

func (s *store) NextDisplayOrder(ctx context.Context, paymentID snowflake.ID) (int, error) {
	var max int
	err := s.db.WithContext(ctx).
		Model(&paymentdomain.PaymentAttachment{}).
		Select("COALESCE(MAX(display_order), 0)").
		Where("payment_id = ?", paymentID).
		Scan(&max).Error
	return max + 1, err
}

func (s *store) FindRequest(ctx context.Context, orgID, requestID snowflake.ID) (*paymentdomain.ConfirmationRequest, error) {
	var request paymentdomain.ConfirmationRequest
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", requestID, orgID).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (s *store) InsertRequest(ctx context.Context, request *paymentdomain.ConfirmationRequest) error {
	return s.db.WithContext(ctx).Create(request).Error
}

func (s *store) UpdateRequestGuarded(ctx context.Context, requestID snowflake.ID, expectedVersion int64, updates map[string]any) error {
	payload := make(map[string]any, len(updates)+2)
	for key, value := range updates {
		payload[key] = value
	}
	payload["row_version"] = expectedVersion + 1
	payload["updated_at"] = s.clock.Now().UTC()

	result := s.db.WithContext(ctx).
		Model(&paymentdomain.ConfirmationRequest{}).
		Where("id = ? AND row_version = ?", requestID, expectedVersion).
		Updates(payload)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errkind.New(errkind.Conflict, "confirmation request was modified by another process, please retry")
	}
	return nil
}
