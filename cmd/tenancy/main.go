package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/tenancy/internal/audit"
	"github.com/smallbiznis/tenancy/internal/clock"
	"github.com/smallbiznis/tenancy/internal/config"
	"github.com/smallbiznis/tenancy/internal/creditnote"
	"github.com/smallbiznis/tenancy/internal/invoice"
	"github.com/smallbiznis/tenancy/internal/invoicerun"
	"github.com/smallbiznis/tenancy/internal/lease"
	"github.com/smallbiznis/tenancy/internal/logger"
	"github.com/smallbiznis/tenancy/internal/migration"
	"github.com/smallbiznis/tenancy/internal/observability"
	"github.com/smallbiznis/tenancy/internal/organization"
	"github.com/smallbiznis/tenancy/internal/payment"
	"github.com/smallbiznis/tenancy/internal/rating"
	"github.com/smallbiznis/tenancy/internal/scheduler"
	"github.com/smallbiznis/tenancy/internal/sequence"
	"github.com/smallbiznis/tenancy/internal/storage"
	"github.com/smallbiznis/tenancy/internal/utility"
	"github.com/smallbiznis/tenancy/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Billing domains
		organization.Module,
		lease.Module,
		rating.Module,
		utility.Module,
		sequence.Module,
		audit.Module,
		storage.Module,
		invoice.Module,
		invoicerun.Module,
		creditnote.Module,
		payment.Module,

		// Background jobs
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
