package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	orgdomain "github.com/smallbiznis/tenancy/internal/organization/domain"
	"github.com/smallbiznis/tenancy/pkg/repository"
)

type store struct {
	db      *gorm.DB
	orgrepo repository.Repository[orgdomain.Organization]
}

func Provide(db *gorm.DB) orgdomain.Repository {
	return &store{
		db:      db,
		orgrepo: repository.ProvideStore[orgdomain.Organization](db),
	}
}

func (s *store) FindByID(ctx context.Context, orgID snowflake.ID) (*orgdomain.Organization, error) {
	return s.orgrepo.FindOne(ctx, &orgdomain.Organization{ID: orgID})
}

func (s *store) ListBillingEnabled(ctx context.Context) ([]orgdomain.Organization, error) {
	var orgs []orgdomain.Organization
	err := s.db.WithContext(ctx).
		Where("billing_enabled = ?", true).
		Order("id").
		Find(&orgs).Error
	return orgs, err
}
