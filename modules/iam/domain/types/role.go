package types

type Role struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (r Role) EntityID() int64 { return r.ID }

// GrantScope says which orgs around the domain org a grant covers.
type GrantScope string

const (
	GrantScopeSelf    GrantScope = "self"
	GrantScopeDirect  GrantScope = "direct"
	GrantScopeSubtree GrantScope = "subtree"
)

func (s GrantScope) Valid() bool {
	switch s {
	case GrantScopeSelf, GrantScopeDirect, GrantScopeSubtree:
		return true
	}
	return false
}

type RoleGrant struct {
	ID            int64      `json:"id"`
	GranteeUserID int64      `json:"granteeUserId"`
	RoleID        int64      `json:"roleId"`
	DomainOrgID   int64      `json:"domainOrgId"`
	Scope         GrantScope `json:"scope"`
	StartDate     string     `json:"startDate"`
	EndDate       *string    `json:"endDate"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

func (g RoleGrant) EntityID() int64 { return g.ID }

func (g RoleGrant) EffectiveInterval() (string, *string) { return g.StartDate, g.EndDate }

// RoleGrantPatch fields left nil are untouched. ClearEndDate reopens the grant.
type RoleGrantPatch struct {
	RoleID       *int64
	DomainOrgID  *int64
	Scope        *GrantScope
	StartDate    *string
	EndDate      *string
	ClearEndDate bool
}

// RoleGrantView is a grant joined with its role for listing.
type RoleGrantView struct {
	RoleGrant
	RoleCode string `json:"roleCode"`
	RoleName string `json:"roleName"`
}
