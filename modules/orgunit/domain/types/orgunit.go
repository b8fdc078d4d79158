package types

const (
	OrgTypeCompany    = "company"
	OrgTypeDepartment = "department"
	OrgTypeTeam       = "team"
)

type OrgUnit struct {
	ID        int64  `json:"id"`
	ParentID  *int64 `json:"parentId"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (o OrgUnit) EntityID() int64 { return o.ID }

// OrgUnitPatch carries the fields an update may touch. SetParent
// distinguishes "move to root" (ParentID nil) from "leave parent alone".
type OrgUnitPatch struct {
	Name      *string
	Type      *string
	Active    *bool
	SetParent bool
	ParentID  *int64
}

type OrgTreeNode struct {
	OrgUnit
	Children []*OrgTreeNode `json:"children"`
}

type Membership struct {
	UserID    int64   `json:"userId"`
	OrgID     int64   `json:"orgId"`
	IsPrimary bool    `json:"isPrimary"`
	StartDate string  `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

func (m Membership) EffectiveInterval() (string, *string) { return m.StartDate, m.EndDate }
