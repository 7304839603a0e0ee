// Package seed bootstraps the default organization for fresh installs.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	orgdomain "github.com/smallbiznis/tenancy/internal/organization/domain"
	sequencedomain "github.com/smallbiznis/tenancy/internal/sequence/domain"
)

const defaultOrgName = "Main"

// EnsureMainOrg seeds the default organization for startup bootstrap.
func EnsureMainOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node.Generate())
		if err != nil {
			return err
		}
		return ensureSequencesTx(ctx, tx, org.ID)
	})
}

// EnsureMainOrgWithID is EnsureMainOrg with a fixed organization ID, for
// deployments that pin DEFAULT_ORG.
func EnsureMainOrgWithID(db *gorm.DB, orgID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, snowflake.ID(orgID))
		if err != nil {
			return err
		}
		return ensureSequencesTx(ctx, tx, org.ID)
	})
}

func ensureMainOrgTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (orgdomain.Organization, error) {
	var org orgdomain.Organization
	err := tx.WithContext(ctx).Where("name = ?", defaultOrgName).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}
	now := time.Now().UTC()
	org = orgdomain.Organization{
		ID:             orgID,
		Name:           defaultOrgName,
		BillingEnabled: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

func ensureSequencesTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	now := time.Now().UTC()
	rows := []sequencedomain.OrgSequence{
		{OrgID: orgID, Kind: sequencedomain.KindInvoice, NextValue: 0, UpdatedAt: now},
		{OrgID: orgID, Kind: sequencedomain.KindCreditNote, NextValue: 0, UpdatedAt: now},
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}
