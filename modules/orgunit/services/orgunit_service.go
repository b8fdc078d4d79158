package services

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/jacksonlee411/worklog/modules/orgunit/domain/ports"
	"github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

const (
	errOrgNameRequired   = "ORG_NAME_REQUIRED"
	errOrgTypeInvalid    = "ORG_TYPE_INVALID"
	errOrgNotFound       = "ORG_NOT_FOUND"
	errOrgParentNotFound = "ORG_PARENT_NOT_FOUND"
	errOrgParentCycle    = "ORG_PARENT_CYCLE"
	errOrgInvalidArg     = "ORG_INVALID_ARGUMENT"
	errEffectiveDate     = "EFFECTIVE_DATE_INVALID"
)

var validOrgTypes = []string{types.OrgTypeCompany, types.OrgTypeDepartment, types.OrgTypeTeam}

type CreateOrgUnitRequest struct {
	Name     string
	Type     string
	ParentID *int64
	Active   *bool
}

type OrgUnitService struct {
	units       ports.OrgUnitStore
	memberships ports.MembershipStore
}

func NewOrgUnitService(units ports.OrgUnitStore, memberships ports.MembershipStore) OrgUnitService {
	return OrgUnitService{units: units, memberships: memberships}
}

func (s OrgUnitService) CreateOrgUnit(ctx context.Context, req CreateOrgUnitRequest) (types.OrgUnit, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return types.OrgUnit{}, httperr.NewBadRequest(errOrgNameRequired)
	}
	orgType, err := normalizeOrgType(req.Type)
	if err != nil {
		return types.OrgUnit{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	unit, err := s.units.CreateOrgUnit(ctx, types.OrgUnit{Name: name, Type: orgType, ParentID: req.ParentID, Active: active})
	return unit, mapStoreError(err)
}

func (s OrgUnitService) UpdateOrgUnit(ctx context.Context, id int64, patch types.OrgUnitPatch) (types.OrgUnit, error) {
	if id <= 0 {
		return types.OrgUnit{}, httperr.NewBadRequest(errOrgInvalidArg)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return types.OrgUnit{}, httperr.NewBadRequest(errOrgNameRequired)
		}
		patch.Name = &name
	}
	if patch.Type != nil {
		orgType, err := normalizeOrgType(*patch.Type)
		if err != nil {
			return types.OrgUnit{}, err
		}
		patch.Type = &orgType
	}
	if patch.SetParent && patch.ParentID != nil && *patch.ParentID == id {
		return types.OrgUnit{}, httperr.NewConflict(errOrgParentCycle)
	}
	unit, err := s.units.UpdateOrgUnit(ctx, id, patch)
	return unit, mapStoreError(err)
}

func (s OrgUnitService) ListOrgUnits(ctx context.Context) ([]types.OrgUnit, error) {
	units, err := s.units.ListOrgUnits(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(units, func(a, b types.OrgUnit) int { return cmp.Compare(a.ID, b.ID) })
	return units, nil
}

// OrgTree nests units under their parents. Units whose parent is missing are
// returned as roots.
func (s OrgUnitService) OrgTree(ctx context.Context) ([]*types.OrgTreeNode, error) {
	units, err := s.ListOrgUnits(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make(map[int64]*types.OrgTreeNode, len(units))
	for _, u := range units {
		nodes[u.ID] = &types.OrgTreeNode{OrgUnit: u, Children: []*types.OrgTreeNode{}}
	}
	roots := []*types.OrgTreeNode{}
	for _, u := range units {
		n := nodes[u.ID]
		if u.ParentID != nil {
			if p, ok := nodes[*u.ParentID]; ok && *u.ParentID != u.ID {
				p.Children = append(p.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots, nil
}

// SetPrimaryOrg moves userID's primary membership to orgID from effectiveDate on.
func (s OrgUnitService) SetPrimaryOrg(ctx context.Context, userID int64, orgID int64, effectiveDate string) (types.Membership, error) {
	if userID <= 0 || orgID <= 0 {
		return types.Membership{}, httperr.NewBadRequest(errOrgInvalidArg)
	}
	day, err := asof.Normalize(effectiveDate)
	if err != nil {
		return types.Membership{}, httperr.NewBadRequest(errEffectiveDate)
	}
	closeOn, err := asof.DayBefore(day)
	if err != nil {
		return types.Membership{}, httperr.NewBadRequest(errEffectiveDate)
	}
	units, err := s.units.ListOrgUnits(ctx)
	if err != nil {
		return types.Membership{}, err
	}
	if !slices.ContainsFunc(units, func(u types.OrgUnit) bool { return u.ID == orgID }) {
		return types.Membership{}, httperr.NewNotFound(errOrgNotFound)
	}
	return s.memberships.SetPrimary(ctx, userID, orgID, day, closeOn)
}

// PrimaryOrgID returns the org of userID's primary membership effective on
// asOfDate. When several overlap the latest start wins.
func (s OrgUnitService) PrimaryOrgID(ctx context.Context, userID int64, asOfDate string) (int64, bool, error) {
	items, err := s.memberships.ListMemberships(ctx)
	if err != nil {
		return 0, false, err
	}
	var best *types.Membership
	for i := range items {
		m := &items[i]
		if m.UserID != userID || !m.IsPrimary || !asof.IsEffective(m, asOfDate) {
			continue
		}
		if best == nil || m.StartDate > best.StartDate {
			best = m
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.OrgID, true, nil
}

// ListMemberships returns all memberships, or only userID's when userID > 0.
func (s OrgUnitService) ListMemberships(ctx context.Context, userID int64) ([]types.Membership, error) {
	items, err := s.memberships.ListMemberships(ctx)
	if err != nil {
		return nil, err
	}
	if userID <= 0 {
		return items, nil
	}
	return slices.DeleteFunc(items, func(m types.Membership) bool { return m.UserID != userID }), nil
}

func normalizeOrgType(raw string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return types.OrgTypeDepartment, nil
	}
	if !slices.Contains(validOrgTypes, t) {
		return "", httperr.NewBadRequest(errOrgTypeInvalid)
	}
	return t, nil
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrOrgUnitNotFound):
		return httperr.NewNotFound(errOrgNotFound)
	case errors.Is(err, ports.ErrParentNotFound):
		return httperr.NewBadRequest(errOrgParentNotFound)
	case errors.Is(err, ports.ErrParentCycle):
		return httperr.NewConflict(errOrgParentCycle)
	default:
		return err
	}
}
