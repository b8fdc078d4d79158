package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
)

var (
	ErrOrgUnitNotFound = errors.New("org_unit_not_found")
	ErrParentNotFound  = errors.New("org_parent_not_found")
	ErrParentCycle     = errors.New("org_parent_cycle")
)

type OrgUnitStore interface {
	ListOrgUnits(ctx context.Context) ([]types.OrgUnit, error)
	CreateOrgUnit(ctx context.Context, unit types.OrgUnit) (types.OrgUnit, error)
	UpdateOrgUnit(ctx context.Context, id int64, patch types.OrgUnitPatch) (types.OrgUnit, error)
	ReplaceOrgUnits(ctx context.Context, units []types.OrgUnit) error
}

type MembershipStore interface {
	ListMemberships(ctx context.Context) ([]types.Membership, error)
	// SetPrimary closes every open primary membership of userID on closeOn
	// and appends a primary membership in orgID starting on startDate, in one write.
	SetPrimary(ctx context.Context, userID int64, orgID int64, startDate string, closeOn string) (types.Membership, error)
	ReplaceMemberships(ctx context.Context, items []types.Membership) error
}
