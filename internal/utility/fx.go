package utility

import (
	"github.com/smallbiznis/tenancy/internal/utility/repository"
	"github.com/smallbiznis/tenancy/internal/utility/service"
	"go.uber.org/fx"
)

var Module = fx.Module("utility.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
