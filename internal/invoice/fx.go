package invoice

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/invoice/render"
	"github.com/smallbiznis/tenancy/internal/invoice/repository"
	"github.com/smallbiznis/tenancy/internal/invoice/service"
)

var Module = fx.Module("invoice.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
		render.New,
	),
)
