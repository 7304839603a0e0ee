package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/pkg/db/pagination"
)

const (
	ActorTypeSystem = "system"
	ActorTypeUser   = "user"
)

// AuditLog is an append-only record of a state change. Entries are written
// in the same transaction as the change they describe whenever the caller
// passes one in.
type AuditLog struct {
	ID         snowflake.ID       `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrgID      *snowflake.ID      `json:"organization_id" gorm:"column:org_id;index"`
	ActorType  string             `json:"actor_type" gorm:"type:text;not null"`
	ActorID    *string            `json:"actor_id" gorm:"type:text"`
	Action     string             `json:"action" gorm:"type:text;not null;index"`
	TargetType string             `json:"target_type" gorm:"type:text;not null"`
	TargetID   *string            `json:"target_id" gorm:"type:text;index"`
	Metadata   datatypes.JSONMap  `json:"metadata"`
	CreatedAt  time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
	PageToken  string
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, pagination.PageInfo, error)
}

type Service interface {
	AuditLog(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, action, targetType, targetID string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]AuditLog, pagination.PageInfo, error)
}
