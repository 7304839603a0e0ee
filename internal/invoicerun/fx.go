package invoicerun

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/invoicerun/service"
)

var Module = fx.Module("invoicerun.service",
	fx.Provide(service.NewService),
)
