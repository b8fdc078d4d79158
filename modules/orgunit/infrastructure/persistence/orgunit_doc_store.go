package persistence

import (
	"context"
	"slices"
	"time"

	"github.com/jacksonlee411/worklog/modules/orgunit/domain/ports"
	"github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	"github.com/jacksonlee411/worklog/pkg/docstore"
	"github.com/jacksonlee411/worklog/pkg/orggraph"
)

const (
	OrgUnitsCollection    = "org_units"
	MembershipsCollection = "user_org_memberships"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

func timestamp() string { return nowUTC().Format(time.RFC3339) }

type OrgUnitDocStore struct {
	units docstore.Collection[types.OrgUnit]
}

func NewOrgUnitDocStore(s *docstore.Store) ports.OrgUnitStore {
	return &OrgUnitDocStore{units: docstore.NewCollection[types.OrgUnit](s, OrgUnitsCollection)}
}

func (s *OrgUnitDocStore) ListOrgUnits(ctx context.Context) ([]types.OrgUnit, error) {
	return s.units.Items(ctx)
}

func (s *OrgUnitDocStore) CreateOrgUnit(ctx context.Context, unit types.OrgUnit) (types.OrgUnit, error) {
	var created types.OrgUnit
	_, err := s.units.Mutate(ctx, func(f *docstore.File[types.OrgUnit]) error {
		if unit.ParentID != nil && indexOf(f.Items, *unit.ParentID) < 0 {
			return ports.ErrParentNotFound
		}
		created = unit
		created.ID = f.NextID()
		created.CreatedAt = timestamp()
		created.UpdatedAt = created.CreatedAt
		f.Items = append(f.Items, created)
		return nil
	})
	if err != nil {
		return types.OrgUnit{}, err
	}
	return created, nil
}

func (s *OrgUnitDocStore) UpdateOrgUnit(ctx context.Context, id int64, patch types.OrgUnitPatch) (types.OrgUnit, error) {
	var updated types.OrgUnit
	_, err := s.units.Mutate(ctx, func(f *docstore.File[types.OrgUnit]) error {
		i := indexOf(f.Items, id)
		if i < 0 {
			return ports.ErrOrgUnitNotFound
		}
		u := f.Items[i]
		if patch.SetParent {
			if patch.ParentID != nil {
				if *patch.ParentID == id {
					return ports.ErrParentCycle
				}
				if indexOf(f.Items, *patch.ParentID) < 0 {
					return ports.ErrParentNotFound
				}
			}
			parents := make(map[int64]*int64, len(f.Items))
			for _, it := range f.Items {
				parents[it.ID] = it.ParentID
			}
			if orggraph.WouldCreateCycle(parents, id, patch.ParentID) {
				return ports.ErrParentCycle
			}
			u.ParentID = patch.ParentID
		}
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Type != nil {
			u.Type = *patch.Type
		}
		if patch.Active != nil {
			u.Active = *patch.Active
		}
		u.UpdatedAt = timestamp()
		f.Items[i] = u
		updated = u
		return nil
	})
	if err != nil {
		return types.OrgUnit{}, err
	}
	return updated, nil
}

func (s *OrgUnitDocStore) ReplaceOrgUnits(ctx context.Context, units []types.OrgUnit) error {
	var lastID int64
	for _, u := range units {
		lastID = max(lastID, u.ID)
	}
	return s.units.Replace(ctx, units, lastID)
}

func indexOf(units []types.OrgUnit, id int64) int {
	return slices.IndexFunc(units, func(u types.OrgUnit) bool { return u.ID == id })
}

type MembershipDocStore struct {
	items docstore.Collection[types.Membership]
}

func NewMembershipDocStore(s *docstore.Store) ports.MembershipStore {
	return &MembershipDocStore{items: docstore.NewCollection[types.Membership](s, MembershipsCollection)}
}

func (s *MembershipDocStore) ListMemberships(ctx context.Context) ([]types.Membership, error) {
	return s.items.Items(ctx)
}

func (s *MembershipDocStore) SetPrimary(ctx context.Context, userID int64, orgID int64, startDate string, closeOn string) (types.Membership, error) {
	next := types.Membership{UserID: userID, OrgID: orgID, IsPrimary: true, StartDate: startDate}
	_, err := s.items.Mutate(ctx, func(f *docstore.File[types.Membership]) error {
		kept := f.Items[:0]
		for _, m := range f.Items {
			// Primaries already ended by closeOn are history.
			if m.UserID != userID || !m.IsPrimary || (m.EndDate != nil && *m.EndDate <= closeOn) {
				kept = append(kept, m)
				continue
			}
			// An open or future-ended primary starting on or after the new
			// start is superseded outright; earlier ones end on closeOn.
			if m.StartDate >= startDate {
				continue
			}
			end := closeOn
			m.EndDate = &end
			kept = append(kept, m)
		}
		f.Items = append(kept, next)
		f.Meta.LastID = max(f.Meta.LastID, int64(len(f.Items)))
		return nil
	})
	if err != nil {
		return types.Membership{}, err
	}
	return next, nil
}

func (s *MembershipDocStore) ReplaceMemberships(ctx context.Context, items []types.Membership) error {
	return s.items.Replace(ctx, items, int64(len(items)))
}
