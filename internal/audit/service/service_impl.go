package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/tenancy/internal/actorcontext"
	"github.com/smallbiznis/tenancy/internal/audit/domain"
	"github.com/smallbiznis/tenancy/internal/orgcontext"
	"github.com/smallbiznis/tenancy/pkg/db/pagination"
	"github.com/smallbiznis/tenancy/pkg/errkind"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// AuditLog appends an entry describing a state change. When tx is non-nil
// the entry commits or rolls back with the change it describes.
func (s *Service) AuditLog(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, action, targetType, targetID string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return errkind.New(errkind.InvalidArgument, "audit: action is required")
	}

	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType := domain.ActorTypeUser
	actor := actorcontext.Actor(ctx)
	if actor == actorcontext.SystemActor {
		actorType = domain.ActorTypeSystem
	}

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	entry := domain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    &actor,
		Action:     action,
		TargetType: targetType,
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  time.Now().UTC(),
	}
	if orgID != 0 {
		entry.OrgID = &orgID
	}
	if trimmed := strings.TrimSpace(targetID); trimmed != "" {
		entry.TargetID = &trimmed
	}

	db := s.db
	if tx != nil {
		db = tx
	}
	if err := s.repo.Insert(ctx, db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.AuditLog, pagination.PageInfo, error) {
	if filter.OrgID == 0 {
		resolved, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok || resolved == 0 {
			return nil, pagination.PageInfo{}, errkind.New(errkind.InvalidArgument, "audit: organization is required")
		}
		filter.OrgID = resolved
	}

	if filter.StartAt != nil && filter.EndAt != nil && filter.StartAt.After(*filter.EndAt) {
		return nil, pagination.PageInfo{}, errkind.New(errkind.InvalidArgument, "audit: start time is after end time")
	}

	return s.repo.List(ctx, s.db, filter)
}
