package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is the tenant boundary: every invoice, payment and sequence is
// scoped to one organization.
type Organization struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	Name           string       `json:"name" gorm:"type:text;not null"`
	BillingEnabled bool         `json:"billing_enabled" gorm:"not null"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Organization) TableName() string { return "organizations" }

type Repository interface {
	FindByID(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	ListBillingEnabled(ctx context.Context) ([]Organization, error)
}
