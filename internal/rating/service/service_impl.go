package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	leasedomain "github.com/smallbiznis/tenancy/internal/lease/domain"
	"github.com/smallbiznis/tenancy/internal/proration"
	ratingdomain "github.com/smallbiznis/tenancy/internal/rating/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log       *zap.Logger
	LeaseRepo leasedomain.Repository
}

type Service struct {
	log       *zap.Logger
	leaseRepo leasedomain.Repository
}

func NewService(p ServiceParam) ratingdomain.Service {
	return &Service{
		log:       p.Log.Named("rating.service"),
		leaseRepo: p.LeaseRepo,
	}
}

func (s *Service) CalculateRent(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time, method proration.Method) (ratingdomain.Calculation, error) {
	if err := validatePeriod(periodStart, periodEnd); err != nil {
		return ratingdomain.Calculation{}, err
	}

	terms, err := s.leaseRepo.ListTermsOverlapping(ctx, leaseID, periodStart, periodEnd)
	if err != nil {
		return ratingdomain.Calculation{}, err
	}

	return ComputeRentLines(terms, periodStart, periodEnd, method)
}

func (s *Service) CalculateRecurringCharges(ctx context.Context, leaseID snowflake.ID, periodStart, periodEnd time.Time, method proration.Method) (ratingdomain.Calculation, error) {
	if err := validatePeriod(periodStart, periodEnd); err != nil {
		return ratingdomain.Calculation{}, err
	}

	charges, err := s.leaseRepo.ListRecurringChargesOverlapping(ctx, leaseID, periodStart, periodEnd)
	if err != nil {
		return ratingdomain.Calculation{}, err
	}

	return ComputeRecurringChargeLines(charges, periodStart, periodEnd, method)
}

// ComputeRentLines rates already-fetched terms against the period. One line
// per overlapping term; a term covering the whole period bills its full
// monthly rent unprorated.
func ComputeRentLines(terms []leasedomain.LeaseTerm, periodStart, periodEnd time.Time, method proration.Method) (ratingdomain.Calculation, error) {
	periodStart, periodEnd = proration.Date(periodStart), proration.Date(periodEnd)

	calc := ratingdomain.Calculation{}
	for _, term := range terms {
		if term.MonthlyRent < 0 {
			return ratingdomain.Calculation{}, errkind.Newf(errkind.InvalidArgument,
				"lease term %s has negative monthly rent", term.ID)
		}

		from, to, overlaps := clipWindow(term.EffectiveFrom, term.EffectiveTo, periodStart, periodEnd)
		if !overlaps {
			continue
		}

		amount := term.MonthlyRent
		prorated := from.After(periodStart) || to.Before(periodEnd)
		if prorated {
			var err error
			amount, err = proration.Calculate(term.MonthlyRent, from, to, periodStart, periodEnd, method)
			if err != nil {
				return ratingdomain.Calculation{}, err
			}
		}

		calc.LineItems = append(calc.LineItems, ratingdomain.LineItem{
			SourceID:    term.ID,
			ChargeType:  ratingdomain.ChargeTypeRent,
			Description: rentDescription(from, to, prorated),
			Quantity:    1,
			UnitPrice:   term.MonthlyRent,
			Amount:      amount,
			TaxRateBps:  term.TaxRateBps,
			TaxAmount:   taxOn(amount, term.TaxRateBps),
			IsProrated:  prorated,
			PeriodStart: from,
			PeriodEnd:   to,
		})
		calc.TotalAmount += amount
	}
	return calc, nil
}

// ComputeRecurringChargeLines rates already-fetched recurring charges. A
// charge bills in the period when its frequency anchor falls due, prorated by
// its own active window.
func ComputeRecurringChargeLines(charges []leasedomain.LeaseRecurringCharge, periodStart, periodEnd time.Time, method proration.Method) (ratingdomain.Calculation, error) {
	periodStart, periodEnd = proration.Date(periodStart), proration.Date(periodEnd)

	calc := ratingdomain.Calculation{}
	for _, charge := range charges {
		if charge.Amount < 0 {
			return ratingdomain.Calculation{}, errkind.Newf(errkind.InvalidArgument,
				"recurring charge %s has negative amount", charge.ID)
		}
		if !chargeDueIn(charge, periodStart) {
			continue
		}

		chargeStart := periodStart
		if charge.StartDate != nil {
			chargeStart = proration.Date(*charge.StartDate)
		}
		from, to, overlaps := clipWindow(chargeStart, charge.EndDate, periodStart, periodEnd)
		if !overlaps {
			continue
		}

		amount := charge.Amount
		prorated := from.After(periodStart) || to.Before(periodEnd)
		if prorated {
			var err error
			amount, err = proration.Calculate(charge.Amount, from, to, periodStart, periodEnd, method)
			if err != nil {
				return ratingdomain.Calculation{}, err
			}
		}

		calc.LineItems = append(calc.LineItems, ratingdomain.LineItem{
			SourceID:    charge.ID,
			ChargeType:  charge.ChargeType,
			Description: charge.Name,
			Quantity:    1,
			UnitPrice:   charge.Amount,
			Amount:      amount,
			TaxRateBps:  charge.TaxRateBps,
			TaxAmount:   taxOn(amount, charge.TaxRateBps),
			IsProrated:  prorated,
			PeriodStart: from,
			PeriodEnd:   to,
		})
		calc.TotalAmount += amount
	}
	return calc, nil
}

// chargeDueIn decides whether the charge's frequency makes it billable in the
// period starting at periodStart. The anchor month is the charge's start date
// (or the period itself for open-ended monthly charges).
func chargeDueIn(charge leasedomain.LeaseRecurringCharge, periodStart time.Time) bool {
	interval := 1
	switch charge.Frequency {
	case leasedomain.FrequencyQuarterly:
		interval = 3
	case leasedomain.FrequencyAnnual:
		interval = 12
	case leasedomain.FrequencyMonthly:
		return true
	default:
		return true
	}
	if charge.StartDate == nil {
		return true
	}
	anchor := proration.Date(*charge.StartDate)
	months := (periodStart.Year()-anchor.Year())*12 + int(periodStart.Month()) - int(anchor.Month())
	return months >= 0 && months%interval == 0
}

func clipWindow(from time.Time, to *time.Time, periodStart, periodEnd time.Time) (time.Time, time.Time, bool) {
	start := proration.Date(from)
	if start.Before(periodStart) {
		start = periodStart
	}
	end := periodEnd
	if to != nil && proration.Date(*to).Before(end) {
		end = proration.Date(*to)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func rentDescription(from, to time.Time, prorated bool) string {
	if prorated {
		return fmt.Sprintf("Rent %s to %s (prorated)", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return fmt.Sprintf("Rent %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func taxOn(amount, rateBps int64) int64 {
	if rateBps <= 0 || amount == 0 {
		return 0
	}
	return proration.RoundDiv(amount*rateBps, 10000)
}

func validatePeriod(periodStart, periodEnd time.Time) error {
	if proration.Date(periodEnd).Before(proration.Date(periodStart)) {
		return errkind.New(errkind.InvalidArgument, "billing period end must not precede its start")
	}
	return nil
}
