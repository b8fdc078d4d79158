package services

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/jacksonlee411/worklog/modules/iam/domain/ports"
	"github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

const (
	errRoleCodeRequired     = "ROLE_CODE_REQUIRED"
	errRoleNotFound         = "ROLE_NOT_FOUND"
	errGrantNotFound        = "ROLE_GRANT_NOT_FOUND"
	errGrantInvalidArgument = "ROLE_GRANT_INVALID_ARGUMENT"
	errGrantScopeInvalid    = "ROLE_GRANT_SCOPE_INVALID"
	errGrantStartDate       = "ROLE_GRANT_START_DATE_INVALID"
	errGrantEndDate         = "ROLE_GRANT_END_DATE_INVALID"
	errGrantRoleRequired    = "ROLE_GRANT_ROLE_REQUIRED"
)

type AddGrantRequest struct {
	GranteeUserID int64
	RoleID        int64
	// RoleCode is used when RoleID is zero; the role is created on demand.
	RoleCode    string
	DomainOrgID int64
	Scope       string
	StartDate   string
	EndDate     *string
}

type RoleGrantService struct {
	roles  ports.RoleStore
	grants ports.GrantStore
}

func NewRoleGrantService(roles ports.RoleStore, grants ports.GrantStore) RoleGrantService {
	return RoleGrantService{roles: roles, grants: grants}
}

func (s RoleGrantService) EnsureRole(ctx context.Context, code string, name string) (types.Role, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.Role{}, httperr.NewBadRequest(errRoleCodeRequired)
	}
	return s.roles.EnsureRole(ctx, code, strings.TrimSpace(name))
}

func (s RoleGrantService) RoleByCode(ctx context.Context, code string) (types.Role, bool, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return types.Role{}, false, err
	}
	i := slices.IndexFunc(roles, func(r types.Role) bool { return r.Code == code })
	if i < 0 {
		return types.Role{}, false, nil
	}
	return roles[i], true, nil
}

func (s RoleGrantService) ListRoles(ctx context.Context) ([]types.Role, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(roles, func(a, b types.Role) int { return cmp.Compare(a.ID, b.ID) })
	return roles, nil
}

func (s RoleGrantService) AddGrant(ctx context.Context, req AddGrantRequest) (types.RoleGrant, error) {
	if req.GranteeUserID <= 0 || req.DomainOrgID <= 0 {
		return types.RoleGrant{}, httperr.NewBadRequest(errGrantInvalidArgument)
	}
	scope := types.GrantScope(strings.ToLower(strings.TrimSpace(req.Scope)))
	if scope == "" {
		scope = types.GrantScopeSelf
	}
	if !scope.Valid() {
		return types.RoleGrant{}, httperr.NewBadRequest(errGrantScopeInvalid)
	}
	start, end, err := grantInterval(req.StartDate, req.EndDate)
	if err != nil {
		return types.RoleGrant{}, err
	}

	roleID := req.RoleID
	switch {
	case roleID > 0:
		roles, err := s.roles.ListRoles(ctx)
		if err != nil {
			return types.RoleGrant{}, err
		}
		if !slices.ContainsFunc(roles, func(r types.Role) bool { return r.ID == roleID }) {
			return types.RoleGrant{}, httperr.NewNotFound(errRoleNotFound)
		}
	case strings.TrimSpace(req.RoleCode) != "":
		role, err := s.EnsureRole(ctx, req.RoleCode, "")
		if err != nil {
			return types.RoleGrant{}, err
		}
		roleID = role.ID
	default:
		return types.RoleGrant{}, httperr.NewBadRequest(errGrantRoleRequired)
	}

	return s.grants.AddGrant(ctx, types.RoleGrant{
		GranteeUserID: req.GranteeUserID,
		RoleID:        roleID,
		DomainOrgID:   req.DomainOrgID,
		Scope:         scope,
		StartDate:     start,
		EndDate:       end,
	})
}

func (s RoleGrantService) UpdateGrant(ctx context.Context, id int64, patch types.RoleGrantPatch) (types.RoleGrant, error) {
	if id <= 0 {
		return types.RoleGrant{}, httperr.NewBadRequest(errGrantInvalidArgument)
	}
	if patch.Scope != nil {
		scope := types.GrantScope(strings.ToLower(strings.TrimSpace(string(*patch.Scope))))
		if !scope.Valid() {
			return types.RoleGrant{}, httperr.NewBadRequest(errGrantScopeInvalid)
		}
		patch.Scope = &scope
	}
	if patch.StartDate != nil {
		day, err := asof.Normalize(*patch.StartDate)
		if err != nil {
			return types.RoleGrant{}, httperr.NewBadRequest(errGrantStartDate)
		}
		patch.StartDate = &day
	}
	if patch.EndDate != nil && !patch.ClearEndDate {
		day, err := asof.Normalize(*patch.EndDate)
		if err != nil {
			return types.RoleGrant{}, httperr.NewBadRequest(errGrantEndDate)
		}
		patch.EndDate = &day
	}
	if patch.RoleID != nil {
		roles, err := s.roles.ListRoles(ctx)
		if err != nil {
			return types.RoleGrant{}, err
		}
		if !slices.ContainsFunc(roles, func(r types.Role) bool { return r.ID == *patch.RoleID }) {
			return types.RoleGrant{}, httperr.NewNotFound(errRoleNotFound)
		}
	}
	g, err := s.grants.UpdateGrant(ctx, id, patch, func(g types.RoleGrant) error {
		if g.EndDate != nil && *g.EndDate < g.StartDate {
			return httperr.NewBadRequest(errGrantEndDate)
		}
		return nil
	})
	if errors.Is(err, ports.ErrGrantNotFound) {
		return types.RoleGrant{}, httperr.NewNotFound(errGrantNotFound)
	}
	return g, err
}

func (s RoleGrantService) DeleteGrant(ctx context.Context, id int64) error {
	err := s.grants.DeleteGrant(ctx, id)
	if errors.Is(err, ports.ErrGrantNotFound) {
		return httperr.NewNotFound(errGrantNotFound)
	}
	return err
}

// ListGrants joins grants with their roles, ordered by id. granteeUserID > 0
// restricts the result to that user.
func (s RoleGrantService) ListGrants(ctx context.Context, granteeUserID int64) ([]types.RoleGrantView, error) {
	grants, err := s.grants.ListGrants(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]types.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	slices.SortFunc(grants, func(a, b types.RoleGrant) int { return cmp.Compare(a.ID, b.ID) })
	out := make([]types.RoleGrantView, 0, len(grants))
	for _, g := range grants {
		if granteeUserID > 0 && g.GranteeUserID != granteeUserID {
			continue
		}
		r := byID[g.RoleID]
		out = append(out, types.RoleGrantView{RoleGrant: g, RoleCode: r.Code, RoleName: r.Name})
	}
	return out, nil
}

func (s RoleGrantService) ActiveGrants(ctx context.Context, userID int64, asOfDate string) ([]types.RoleGrant, error) {
	grants, err := s.grants.ListGrants(ctx)
	if err != nil {
		return nil, err
	}
	return activeGrants(grants, userID, asOfDate), nil
}

// HasEffectiveGrant reports whether userID holds roleCode on asOfDate. An
// unknown role code is simply not held.
func (s RoleGrantService) HasEffectiveGrant(ctx context.Context, userID int64, roleCode string, asOfDate string) (bool, error) {
	role, ok, err := s.RoleByCode(ctx, roleCode)
	if err != nil || !ok {
		return false, err
	}
	grants, err := s.ActiveGrants(ctx, userID, asOfDate)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(grants, func(g types.RoleGrant) bool { return g.RoleID == role.ID }), nil
}

// RoleCodes lists the distinct codes of roles userID holds on asOfDate.
func (s RoleGrantService) RoleCodes(ctx context.Context, userID int64, asOfDate string) ([]string, error) {
	grants, err := s.ActiveGrants(ctx, userID, asOfDate)
	if err != nil || len(grants) == 0 {
		return nil, err
	}
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(grants))
	for _, g := range grants {
		i := slices.IndexFunc(roles, func(r types.Role) bool { return r.ID == g.RoleID })
		if i >= 0 && !slices.Contains(codes, roles[i].Code) {
			codes = append(codes, roles[i].Code)
		}
	}
	slices.Sort(codes)
	return codes, nil
}

func activeGrants(grants []types.RoleGrant, userID int64, asOfDate string) []types.RoleGrant {
	return slices.DeleteFunc(grants, func(g types.RoleGrant) bool {
		return g.GranteeUserID != userID || !asof.IsEffective(g, asOfDate)
	})
}

func grantInterval(startRaw string, endRaw *string) (string, *string, error) {
	start, err := asof.Normalize(startRaw)
	if err != nil {
		return "", nil, httperr.NewBadRequest(errGrantStartDate)
	}
	end, err := asof.NormalizePtr(endRaw)
	if err != nil || (end != nil && *end < start) {
		return "", nil, httperr.NewBadRequest(errGrantEndDate)
	}
	return start, end, nil
}
