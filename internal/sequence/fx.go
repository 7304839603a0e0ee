package sequence

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/sequence/service"
)

var Module = fx.Module("sequence.service",
	fx.Provide(service.New),
)
