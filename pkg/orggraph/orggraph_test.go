package orggraph

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }

func sampleOrgs() []OrgLink {
	// 1 -> 2 -> 4
	//   -> 3
	// 5 (second root)
	return []OrgLink{
		{ID: 1},
		{ID: 2, ParentID: ptr(1)},
		{ID: 3, ParentID: ptr(1)},
		{ID: 4, ParentID: ptr(2)},
		{ID: 5},
	}
}

func TestCollectOrgSubtree(t *testing.T) {
	idx := BuildOrgChildrenIndex(sampleOrgs())

	assert.Equal(t, []int64{1, 2, 3, 4}, CollectOrgSubtree(idx, 1).Sorted())
	assert.Equal(t, []int64{2, 4}, CollectOrgSubtree(idx, 2).Sorted())
	assert.Equal(t, []int64{5}, CollectOrgSubtree(idx, 5).Sorted())
	assert.Equal(t, []int64{99}, CollectOrgSubtree(idx, 99).Sorted())
}

func TestCollectOrgDirect(t *testing.T) {
	idx := BuildOrgChildrenIndex(sampleOrgs())

	assert.Equal(t, []int64{1, 2, 3}, CollectOrgDirect(idx, 1).Sorted())
	assert.Equal(t, []int64{4}, CollectOrgDirect(idx, 4).Sorted())
}

func TestCollectOrgSubtree_CyclicParentsTerminate(t *testing.T) {
	idx := BuildOrgChildrenIndex([]OrgLink{
		{ID: 1, ParentID: ptr(3)},
		{ID: 2, ParentID: ptr(1)},
		{ID: 3, ParentID: ptr(2)},
	})
	assert.Equal(t, []int64{1, 2, 3}, CollectOrgSubtree(idx, 1).Sorted())
}

func TestCollectOrgSubtree_DeepChainNoRecursion(t *testing.T) {
	const depth = 200_000
	units := make([]OrgLink, 0, depth)
	units = append(units, OrgLink{ID: 0})
	for i := int64(1); i < depth; i++ {
		units = append(units, OrgLink{ID: i, ParentID: ptr(i - 1)})
	}
	assert.Len(t, CollectOrgSubtree(BuildOrgChildrenIndex(units), 0), depth)
}

func TestBuildManagerDirectIndex_FiltersByAsOf(t *testing.T) {
	edges := []ManagerLink{
		{ManagerID: 10, SubordinateID: 11, StartDate: "2024-01-01"},
		{ManagerID: 10, SubordinateID: 12, StartDate: "2024-07-01"},
		{ManagerID: 10, SubordinateID: 13, StartDate: "2023-01-01", EndDate: strPtr("2023-12-31")},
		{ManagerID: 10, SubordinateID: 14, StartDate: "2024-01-01", EndDate: strPtr("2024-06-01")},
	}
	idx := BuildManagerDirectIndex(edges, "2024-06-01")

	assert.Equal(t, []int64{11, 14}, CollectManagerDirect(idx, 10).Sorted())
}

func TestCollectManagerSubtree_Cycle(t *testing.T) {
	edges := []ManagerLink{
		{ManagerID: 1, SubordinateID: 2, StartDate: "2024-01-01"},
		{ManagerID: 2, SubordinateID: 3, StartDate: "2024-01-01"},
		{ManagerID: 3, SubordinateID: 1, StartDate: "2024-01-01"},
		{ManagerID: 3, SubordinateID: 4, StartDate: "2024-01-01"},
	}
	idx := BuildManagerDirectIndex(edges, "2024-06-01")

	assert.Equal(t, []int64{2, 3, 4}, CollectManagerSubtree(idx, 1).Sorted())
	assert.Equal(t, []int64{1, 2, 4}, CollectManagerSubtree(idx, 3).Sorted())
	assert.Empty(t, CollectManagerSubtree(idx, 4))
}

func TestCollectManagerDirect_SelfEdgeIgnored(t *testing.T) {
	idx := Index{7: {7, 8}}
	assert.Equal(t, []int64{8}, CollectManagerDirect(idx, 7).Sorted())
	assert.Equal(t, []int64{8}, CollectManagerSubtree(idx, 7).Sorted())
}

// Subtree must equal the fixed point of repeatedly applying direct, whatever
// order the edges were inserted in.
func TestCollectManagerSubtree_IsFixedPointOfDirect(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 50; round++ {
		var edges []ManagerLink
		for i := 0; i < 40; i++ {
			edges = append(edges, ManagerLink{
				ManagerID:     int64(r.IntN(15)),
				SubordinateID: int64(r.IntN(15)),
				StartDate:     "2024-01-01",
			})
		}
		shuffled := append([]ManagerLink(nil), edges...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		idx := BuildManagerDirectIndex(edges, "2024-06-01")
		idxShuffled := BuildManagerDirectIndex(shuffled, "2024-06-01")

		for root := int64(0); root < 15; root++ {
			want := make(Set)
			frontier := NewSet(root)
			for len(frontier) > 0 {
				next := make(Set)
				for n := range frontier {
					for sub := range CollectManagerDirect(idx, n) {
						if sub == root || want.Has(sub) {
							continue
						}
						want.Add(sub)
						next.Add(sub)
					}
				}
				frontier = next
			}
			assert.Equal(t, want.Sorted(), CollectManagerSubtree(idx, root).Sorted(), "round %d root %d", round, root)
			assert.Equal(t, want.Sorted(), CollectManagerSubtree(idxShuffled, root).Sorted(), "round %d root %d shuffled", round, root)
		}
	}
}

func TestWouldCreateCycle(t *testing.T) {
	parents := map[int64]*int64{1: nil, 2: ptr(1), 3: ptr(2), 4: ptr(1)}

	assert.True(t, WouldCreateCycle(parents, 1, ptr(3)))
	assert.True(t, WouldCreateCycle(parents, 2, ptr(2)))
	assert.False(t, WouldCreateCycle(parents, 3, ptr(4)))
	assert.False(t, WouldCreateCycle(parents, 3, nil))

	looped := map[int64]*int64{5: ptr(6), 6: ptr(5)}
	assert.False(t, WouldCreateCycle(looped, 1, ptr(5)))
}
