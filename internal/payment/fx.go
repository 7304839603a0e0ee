package payment

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/payment/repository"
	"github.com/smallbiznis/tenancy/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
		service.NewConfirmationService,
	),
)
