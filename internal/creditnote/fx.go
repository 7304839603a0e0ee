package creditnote

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/creditnote/repository"
	"github.com/smallbiznis/tenancy/internal/creditnote/service"
)

var Module = fx.Module("creditnote.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
