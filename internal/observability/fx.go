package observability

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/config"
	"github.com/smallbiznis/tenancy/internal/observability/metrics"
)

var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) *metrics.BillingMetrics {
		return metrics.BillingWithConfig(metrics.Config{
			ServiceName: cfg.AppName,
			Environment: cfg.Environment,
		})
	}),
)
