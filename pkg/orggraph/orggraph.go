// Package orggraph builds adjacency indices over the org tree and the
// management graph and walks them iteratively. Every walk keeps a visited
// set, so malformed input containing cycles still terminates.
package orggraph

import (
	"slices"

	"github.com/jacksonlee411/worklog/pkg/asof"
)

// Index maps a node to its immediate children (org units) or direct
// subordinates (managers). Child order follows input order.
type Index map[int64][]int64

type OrgLink struct {
	ID       int64
	ParentID *int64
}

type ManagerLink struct {
	ManagerID     int64
	SubordinateID int64
	StartDate     string
	EndDate       *string
}

func (l ManagerLink) EffectiveInterval() (string, *string) { return l.StartDate, l.EndDate }

// Set is an unordered id set.
type Set map[int64]struct{}

func NewSet(ids ...int64) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Add(id int64) { s[id] = struct{}{} }

func (s Set) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Union(other Set) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func BuildOrgChildrenIndex(units []OrgLink) Index {
	idx := make(Index, len(units))
	for _, u := range units {
		if u.ParentID == nil {
			continue
		}
		idx[*u.ParentID] = append(idx[*u.ParentID], u.ID)
	}
	return idx
}

// CollectOrgSubtree returns root and every descendant of root.
func CollectOrgSubtree(idx Index, root int64) Set {
	out := NewSet(root)
	stack := []int64{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range idx[n] {
			if out.Has(child) {
				continue
			}
			out.Add(child)
			stack = append(stack, child)
		}
	}
	return out
}

// CollectOrgDirect returns root and its immediate children.
func CollectOrgDirect(idx Index, root int64) Set {
	out := NewSet(root)
	for _, child := range idx[root] {
		out.Add(child)
	}
	return out
}

// BuildManagerDirectIndex indexes only the edges effective on asOf.
func BuildManagerDirectIndex(edges []ManagerLink, asOf string) Index {
	idx := make(Index)
	for _, e := range edges {
		if !asof.IsEffective(e, asOf) {
			continue
		}
		idx[e.ManagerID] = append(idx[e.ManagerID], e.SubordinateID)
	}
	return idx
}

// CollectManagerDirect returns the direct subordinates of root. root itself
// is never included, even when it appears as its own subordinate.
func CollectManagerDirect(idx Index, root int64) Set {
	out := make(Set, len(idx[root]))
	for _, sub := range idx[root] {
		if sub != root {
			out.Add(sub)
		}
	}
	return out
}

// CollectManagerSubtree returns every transitive subordinate of root, root excluded.
func CollectManagerSubtree(idx Index, root int64) Set {
	out := make(Set)
	visited := NewSet(root)
	queue := []int64{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, sub := range idx[n] {
			if visited.Has(sub) {
				continue
			}
			visited.Add(sub)
			out.Add(sub)
			queue = append(queue, sub)
		}
	}
	return out
}

// WouldCreateCycle reports whether re-parenting id under newParent would
// make id its own ancestor. parents maps each org to its current parent.
func WouldCreateCycle(parents map[int64]*int64, id int64, newParent *int64) bool {
	if newParent == nil {
		return false
	}
	seen := make(Set)
	for cur := newParent; cur != nil; cur = parents[*cur] {
		if *cur == id {
			return true
		}
		if seen.Has(*cur) {
			// Existing data already loops without passing through id.
			return false
		}
		seen.Add(*cur)
	}
	return false
}
