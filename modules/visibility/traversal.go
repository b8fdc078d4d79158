package visibility

import (
	"fmt"
	"strings"

	orgtypes "github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/orggraph"
)

// Traversal answers graph questions about one snapshot on one day. Returned
// sets belong to the traversal and must not be modified.
type Traversal interface {
	// DirectSubordinates excludes managerID itself.
	DirectSubordinates(managerID int64) orggraph.Set
	// AllSubordinates is the transitive closure of DirectSubordinates.
	AllSubordinates(managerID int64) orggraph.Set
	// OrgDirectChildren lists the orgs whose parent is orgID.
	OrgDirectChildren(orgID int64) orggraph.Set
	// OrgSubtree includes orgID.
	OrgSubtree(orgID int64) orggraph.Set
	// UsersByOrgs lists users with a membership in any of orgIDs.
	UsersByOrgs(orgIDs orggraph.Set) orggraph.Set
}

// Strategy prepares a Traversal for a snapshot and day.
type Strategy interface {
	Name() string
	Prepare(snap *Snapshot, asOfDate string) Traversal
}

const (
	StrategyNaive   = "naive"
	StrategyClosure = "closure"
)

func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyNaive:
		return NaiveTraversal{}, nil
	case StrategyClosure:
		return ClosureTraversal{}, nil
	default:
		return nil, fmt.Errorf("visibility: unknown traversal strategy %q", name)
	}
}

// graphInputs is what every strategy derives from a snapshot first: the org
// tree, the management edges effective on the day, and the memberships that
// are effective and point at a known user and a known org.
type graphInputs struct {
	orgChildren orggraph.Index
	managers    orggraph.Index
	memberships []orgtypes.Membership
}

func prepareInputs(snap *Snapshot, asOfDate string) graphInputs {
	links := make([]orggraph.OrgLink, 0, len(snap.OrgUnits))
	orgs := orggraph.NewSet()
	for _, o := range snap.OrgUnits {
		links = append(links, orggraph.OrgLink{ID: o.ID, ParentID: o.ParentID})
		orgs.Add(o.ID)
	}
	edges := make([]orggraph.ManagerLink, 0, len(snap.ManagerEdges))
	for _, e := range snap.ManagerEdges {
		edges = append(edges, orggraph.ManagerLink{
			ManagerID:     e.ManagerID,
			SubordinateID: e.SubordinateID,
			StartDate:     e.StartDate,
			EndDate:       e.EndDate,
		})
	}
	users := orggraph.NewSet()
	for _, u := range snap.Users {
		users.Add(u.ID)
	}
	var members []orgtypes.Membership
	for _, m := range snap.Memberships {
		if orgs.Has(m.OrgID) && users.Has(m.UserID) && asof.IsEffective(m, asOfDate) {
			members = append(members, m)
		}
	}
	return graphInputs{
		orgChildren: orggraph.BuildOrgChildrenIndex(links),
		managers:    orggraph.BuildManagerDirectIndex(edges, asOfDate),
		memberships: members,
	}
}

// NaiveTraversal walks the indices on every call.
type NaiveTraversal struct{}

func (NaiveTraversal) Name() string { return StrategyNaive }

func (NaiveTraversal) Prepare(snap *Snapshot, asOfDate string) Traversal {
	return naiveGraph{in: prepareInputs(snap, asOfDate)}
}

type naiveGraph struct {
	in graphInputs
}

func (t naiveGraph) DirectSubordinates(managerID int64) orggraph.Set {
	return orggraph.CollectManagerDirect(t.in.managers, managerID)
}

func (t naiveGraph) AllSubordinates(managerID int64) orggraph.Set {
	return orggraph.CollectManagerSubtree(t.in.managers, managerID)
}

func (t naiveGraph) OrgDirectChildren(orgID int64) orggraph.Set {
	return orggraph.NewSet(t.in.orgChildren[orgID]...)
}

func (t naiveGraph) OrgSubtree(orgID int64) orggraph.Set {
	return orggraph.CollectOrgSubtree(t.in.orgChildren, orgID)
}

func (t naiveGraph) UsersByOrgs(orgIDs orggraph.Set) orggraph.Set {
	out := orggraph.NewSet()
	for _, m := range t.in.memberships {
		if orgIDs.Has(m.OrgID) {
			out.Add(m.UserID)
		}
	}
	return out
}
