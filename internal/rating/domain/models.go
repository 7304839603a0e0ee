// Package domain defines the charge-calculation results assembled into
// invoice lines.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Charge type codes stamped on calculated lines.
const (
	ChargeTypeRent    = "RENT"
	ChargeTypeUtility = "UTILITY"
)

// LineItem is one calculated charge slice for a billing period.
type LineItem struct {
	SourceID    snowflake.ID
	ChargeType  string
	Description string
	Quantity    float64
	UnitPrice   int64
	Amount      int64
	TaxRateBps  int64
	TaxAmount   int64
	IsProrated  bool
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Calculation is the outcome of rating one lease for one period.
type Calculation struct {
	TotalAmount int64
	LineItems   []LineItem
}
