package visibility

import (
	"context"

	"golang.org/x/sync/errgroup"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	orgtypes "github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	stafftypes "github.com/jacksonlee411/worklog/modules/staffing/domain/types"
)

type OrgUnitReader interface {
	ListOrgUnits(ctx context.Context) ([]orgtypes.OrgUnit, error)
}

type MembershipReader interface {
	ListMemberships(ctx context.Context) ([]orgtypes.Membership, error)
}

type ManagerEdgeReader interface {
	ListManagerEdges(ctx context.Context) ([]stafftypes.ManagerEdge, error)
}

type GrantReader interface {
	ListGrants(ctx context.Context) ([]iamtypes.RoleGrant, error)
}

type UserReader interface {
	ListUsers(ctx context.Context) ([]iamtypes.User, error)
}

// Sources are the collections a resolution reads.
type Sources struct {
	OrgUnits     OrgUnitReader
	ManagerEdges ManagerEdgeReader
	Memberships  MembershipReader
	Grants       GrantReader
	Users        UserReader
}

// Snapshot is one consistent-enough read of every source. Each collection is
// read atomically on its own; there is no cross-collection isolation.
type Snapshot struct {
	OrgUnits     []orgtypes.OrgUnit
	ManagerEdges []stafftypes.ManagerEdge
	Memberships  []orgtypes.Membership
	Grants       []iamtypes.RoleGrant
	Users        []iamtypes.User
}

func LoadSnapshot(ctx context.Context, src Sources) (*Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.OrgUnits, err = src.OrgUnits.ListOrgUnits(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.ManagerEdges, err = src.ManagerEdges.ListManagerEdges(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Memberships, err = src.Memberships.ListMemberships(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Grants, err = src.Grants.ListGrants(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Users, err = src.Users.ListUsers(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}
