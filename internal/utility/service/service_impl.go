package service

import (
	"context"
	"math"

	"github.com/bwmarrin/snowflake"
	utilitydomain "github.com/smallbiznis/tenancy/internal/utility/domain"
	"github.com/smallbiznis/tenancy/pkg/errkind"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log  *zap.Logger
	Repo utilitydomain.Repository
}

type Service struct {
	log  *zap.Logger
	repo utilitydomain.Repository
}

func NewService(p ServiceParam) utilitydomain.Service {
	return &Service{
		log:  p.Log.Named("utility.service"),
		repo: p.Repo,
	}
}

func (s *Service) CalculateFromAmount(amount int64) (utilitydomain.Calculation, error) {
	if amount < 0 {
		return utilitydomain.Calculation{}, errkind.New(errkind.InvalidArgument, "utility amount must not be negative")
	}
	return utilitydomain.Calculation{TotalAmount: amount, IsMeterBased: false}, nil
}

func (s *Service) CalculateMeterFlat(unitsConsumed float64, ratePerUnit, fixedCharge int64) (utilitydomain.Calculation, error) {
	if unitsConsumed < 0 {
		return utilitydomain.Calculation{}, errkind.New(errkind.InvalidArgument, "units consumed must not be negative")
	}
	if ratePerUnit < 0 || fixedCharge < 0 {
		return utilitydomain.Calculation{}, errkind.New(errkind.InvalidArgument, "rate and fixed charge must not be negative")
	}
	return utilitydomain.Calculation{
		TotalAmount:  roundMoney(unitsConsumed*float64(ratePerUnit)) + fixedCharge,
		IsMeterBased: true,
	}, nil
}

func (s *Service) CalculateMeterSlab(ctx context.Context, ratePlanID snowflake.ID, unitsConsumed float64) (utilitydomain.Calculation, error) {
	if unitsConsumed < 0 {
		return utilitydomain.Calculation{}, errkind.New(errkind.InvalidArgument, "units consumed must not be negative")
	}

	plan, slabs, err := s.repo.FindRatePlan(ctx, ratePlanID)
	if err != nil {
		return utilitydomain.Calculation{}, err
	}
	if plan == nil {
		return utilitydomain.Calculation{}, errkind.Wrap(errkind.NotFound, "utility rate plan not found", utilitydomain.ErrRatePlanNotFound)
	}
	if len(slabs) == 0 {
		return utilitydomain.Calculation{}, errkind.Wrap(errkind.InvalidState, "rate plan has no slabs", utilitydomain.ErrNoSlabsDefined)
	}

	return ComputeSlabCalculation(slabs, unitsConsumed, plan.FixedCharge)
}

// ComputeSlabCalculation partitions consumption across ordered slabs. The
// plan's fixed charge attaches to the first slab only; a nil ToUnits slab
// absorbs all remaining consumption.
func ComputeSlabCalculation(slabs []utilitydomain.UtilityRateSlab, unitsConsumed float64, fixedCharge int64) (utilitydomain.Calculation, error) {
	calc := utilitydomain.Calculation{IsMeterBased: true}

	for i, slab := range slabs {
		upper := unitsConsumed
		if slab.ToUnits != nil && *slab.ToUnits < upper {
			upper = *slab.ToUnits
		}
		unitsInSlab := upper - slab.FromUnits
		if unitsInSlab < 0 {
			unitsInSlab = 0
		}

		slabFixed := int64(0)
		if i == 0 {
			slabFixed = fixedCharge
		}
		amount := roundMoney(unitsInSlab*float64(slab.RatePerUnit)) + slabFixed

		calc.Slabs = append(calc.Slabs, utilitydomain.SlabBreakdown{
			FromUnits:   slab.FromUnits,
			ToUnits:     slab.ToUnits,
			Units:       unitsInSlab,
			RatePerUnit: slab.RatePerUnit,
			FixedCharge: slabFixed,
			Amount:      amount,
		})
		calc.TotalAmount += amount
	}

	return calc, nil
}

func roundMoney(raw float64) int64 {
	return int64(math.Floor(raw + 0.5))
}
