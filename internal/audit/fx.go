package audit

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/audit/repository"
	"github.com/smallbiznis/tenancy/internal/audit/service"
)

var Module = fx.Module("audit.service",
	fx.Provide(
		repository.New,
		service.New,
	),
)
