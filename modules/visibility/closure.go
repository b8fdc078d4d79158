package visibility

import "github.com/jacksonlee411/worklog/pkg/orggraph"

// ClosureTraversal precomputes every closure once per Prepare and answers
// lookups from maps. It suits resolving many viewers against one snapshot.
type ClosureTraversal struct{}

func (ClosureTraversal) Name() string { return StrategyClosure }

func (ClosureTraversal) Prepare(snap *Snapshot, asOfDate string) Traversal {
	in := prepareInputs(snap, asOfDate)
	t := closureGraph{
		direct:      make(map[int64]orggraph.Set, len(in.managers)),
		subordinate: make(map[int64]orggraph.Set, len(in.managers)),
		children:    make(map[int64]orggraph.Set, len(in.orgChildren)),
		subtree:     make(map[int64]orggraph.Set, len(in.orgChildren)),
		members:     make(map[int64]orggraph.Set),
	}
	for mgr := range in.managers {
		t.direct[mgr] = orggraph.CollectManagerDirect(in.managers, mgr)
		t.subordinate[mgr] = orggraph.CollectManagerSubtree(in.managers, mgr)
	}
	for org, kids := range in.orgChildren {
		t.children[org] = orggraph.NewSet(kids...)
		t.subtree[org] = orggraph.CollectOrgSubtree(in.orgChildren, org)
	}
	for _, m := range in.memberships {
		set, ok := t.members[m.OrgID]
		if !ok {
			set = orggraph.NewSet()
			t.members[m.OrgID] = set
		}
		set.Add(m.UserID)
	}
	return t
}

type closureGraph struct {
	direct      map[int64]orggraph.Set
	subordinate map[int64]orggraph.Set
	children    map[int64]orggraph.Set
	subtree     map[int64]orggraph.Set
	members     map[int64]orggraph.Set
}

func orEmpty(s orggraph.Set) orggraph.Set {
	if s == nil {
		return orggraph.NewSet()
	}
	return s
}

func (t closureGraph) DirectSubordinates(managerID int64) orggraph.Set {
	return orEmpty(t.direct[managerID])
}

func (t closureGraph) AllSubordinates(managerID int64) orggraph.Set {
	return orEmpty(t.subordinate[managerID])
}

func (t closureGraph) OrgDirectChildren(orgID int64) orggraph.Set {
	return orEmpty(t.children[orgID])
}

func (t closureGraph) OrgSubtree(orgID int64) orggraph.Set {
	if s, ok := t.subtree[orgID]; ok {
		return s
	}
	return orggraph.NewSet(orgID)
}

func (t closureGraph) UsersByOrgs(orgIDs orggraph.Set) orggraph.Set {
	out := orggraph.NewSet()
	for org := range orgIDs {
		out.Union(t.members[org])
	}
	return out
}
