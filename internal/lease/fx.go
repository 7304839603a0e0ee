package lease

import (
	"github.com/smallbiznis/tenancy/internal/lease/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("lease.repository",
	fx.Provide(repository.Provide),
)
