package visibility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	orgtypes "github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	stafftypes "github.com/jacksonlee411/worklog/modules/staffing/domain/types"
)

type snapshotSources struct {
	snap *Snapshot
	err  error
}

func (s snapshotSources) ListOrgUnits(context.Context) ([]orgtypes.OrgUnit, error) {
	return s.snap.OrgUnits, s.err
}

func (s snapshotSources) ListManagerEdges(context.Context) ([]stafftypes.ManagerEdge, error) {
	return s.snap.ManagerEdges, nil
}

func (s snapshotSources) ListMemberships(context.Context) ([]orgtypes.Membership, error) {
	return s.snap.Memberships, nil
}

func (s snapshotSources) ListGrants(context.Context) ([]iamtypes.RoleGrant, error) {
	return s.snap.Grants, nil
}

func (s snapshotSources) ListUsers(context.Context) ([]iamtypes.User, error) {
	return s.snap.Users, nil
}

func sourcesOf(snap *Snapshot) Sources {
	src := snapshotSources{snap: snap}
	return Sources{OrgUnits: src, ManagerEdges: src, Memberships: src, Grants: src, Users: src}
}

func ptr[T any](v T) *T { return &v }

func org(id int64, parent *int64) orgtypes.OrgUnit {
	return orgtypes.OrgUnit{ID: id, ParentID: parent, Name: "org", Type: orgtypes.OrgTypeDepartment, Active: true}
}

func users(ids ...int64) []iamtypes.User {
	out := make([]iamtypes.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, iamtypes.User{ID: id, Name: "u", Active: true})
	}
	return out
}

// org 1 -> 2, manager 10 -> 11, viewer 10 holds a subtree grant on org 2,
// and user 11 is a member of org 2.
func scenario() *Snapshot {
	return &Snapshot{
		OrgUnits:     []orgtypes.OrgUnit{org(1, nil), org(2, ptr[int64](1))},
		ManagerEdges: []stafftypes.ManagerEdge{{ManagerID: 10, SubordinateID: 11, StartDate: "2024-01-01", Priority: 100}},
		Memberships:  []orgtypes.Membership{{UserID: 11, OrgID: 2, IsPrimary: true, StartDate: "2024-01-01"}},
		Grants: []iamtypes.RoleGrant{{
			ID: 1, GranteeUserID: 10, RoleID: 1, DomainOrgID: 2,
			Scope: iamtypes.GrantScopeSubtree, StartDate: "2024-01-01",
		}},
		Users: users(10, 11),
	}
}

func strategies() []Strategy { return []Strategy{NaiveTraversal{}, ClosureTraversal{}} }

func TestResolveVisibleUsers_Scenario(t *testing.T) {
	ctx := context.Background()
	for _, st := range strategies() {
		t.Run(st.Name(), func(t *testing.T) {
			r := NewResolver(sourcesOf(scenario()), WithStrategy(st))

			got, err := r.ResolveVisibleUsers(ctx, 10, ScopeDirect, "2024-06-01")
			require.NoError(t, err)
			assert.Equal(t, []int64{10, 11}, got)

			got, err = r.ResolveVisibleUsers(ctx, 11, ScopeSubtree, "2024-06-01")
			require.NoError(t, err)
			assert.Equal(t, []int64{11}, got)

			got, err = r.ResolveVisibleUsers(ctx, 10, ScopeSelf, "2023-12-31")
			require.NoError(t, err)
			assert.Equal(t, []int64{10}, got)
		})
	}
}

func TestResolve_ZeroGrantsSelfScope(t *testing.T) {
	snap := scenario()
	snap.Grants = nil
	r := NewResolver(sourcesOf(snap))

	got, err := r.ResolveVisibleUsers(context.Background(), 10, ScopeSelf, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, got)

	got, err = r.ResolveVisibleUsers(context.Background(), 99, ScopeSubtree, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, []int64{99}, got)
}

func TestResolve_GrantEndDateInclusive(t *testing.T) {
	snap := scenario()
	snap.ManagerEdges = nil
	snap.Grants[0].EndDate = ptr("2024-06-01")
	r := NewResolver(sourcesOf(snap))

	got, err := r.ResolveVisibleUsers(context.Background(), 10, ScopeSelf, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, got)

	got, err = r.ResolveVisibleUsers(context.Background(), 10, ScopeSelf, "2024-06-02")
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, got)
}

func TestCompute_GrantScopes(t *testing.T) {
	// 1 -> 2 -> 3, members 21@1, 22@2, 23@3
	snap := &Snapshot{
		OrgUnits: []orgtypes.OrgUnit{org(1, nil), org(2, ptr[int64](1)), org(3, ptr[int64](2))},
		Memberships: []orgtypes.Membership{
			{UserID: 21, OrgID: 1, StartDate: "2024-01-01"},
			{UserID: 22, OrgID: 2, StartDate: "2024-01-01"},
			{UserID: 23, OrgID: 3, StartDate: "2024-01-01"},
		},
		Users: users(5, 21, 22, 23),
	}
	tests := []struct {
		scope iamtypes.GrantScope
		want  []int64
	}{
		{scope: iamtypes.GrantScopeSelf, want: []int64{5, 21}},
		{scope: iamtypes.GrantScopeDirect, want: []int64{5, 21, 22}},
		{scope: iamtypes.GrantScopeSubtree, want: []int64{5, 21, 22, 23}},
	}
	for _, tc := range tests {
		t.Run(string(tc.scope), func(t *testing.T) {
			snap.Grants = []iamtypes.RoleGrant{{ID: 1, GranteeUserID: 5, DomainOrgID: 1, Scope: tc.scope, StartDate: "2024-01-01"}}
			for _, st := range strategies() {
				res := Compute(snap, st.Prepare(snap, "2024-03-01"), 5, ScopeSelf, "2024-03-01")
				assert.Equal(t, tc.want, res.UserIDs, st.Name())
				assert.Len(t, res.Grants, 1)
			}
		})
	}
}

func TestCompute_TolerantReads(t *testing.T) {
	snap := scenario()
	snap.ManagerEdges = nil
	snap.Grants = append(snap.Grants, iamtypes.RoleGrant{
		ID: 2, GranteeUserID: 10, DomainOrgID: 404, Scope: iamtypes.GrantScopeSubtree, StartDate: "2024-01-01",
	})
	snap.Memberships = append(snap.Memberships,
		orgtypes.Membership{UserID: 77, OrgID: 2, StartDate: "2024-01-01"},
		orgtypes.Membership{UserID: 11, OrgID: 505, StartDate: "2024-01-01"},
	)
	for _, st := range strategies() {
		res := Compute(snap, st.Prepare(snap, "2024-06-01"), 10, ScopeSelf, "2024-06-01")
		assert.Equal(t, []int64{10, 11}, res.UserIDs, st.Name())
		require.Len(t, res.Grants, 1)
		assert.Equal(t, int64(1), res.Grants[0].ID)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver(sourcesOf(scenario()), WithStrategy(ClosureTraversal{}))
	first, err := r.ResolveVisibleUsers(context.Background(), 10, ScopeSubtree, "2024-06-01")
	require.NoError(t, err)
	second, err := r.ResolveVisibleUsers(context.Background(), 10, ScopeSubtree, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_Errors(t *testing.T) {
	r := NewResolver(sourcesOf(scenario()))
	_, err := r.ResolveVisibleUsers(context.Background(), 10, ScopeSelf, "yesterday")
	require.Error(t, err)

	boom := errors.New("backend down")
	src := snapshotSources{snap: scenario(), err: boom}
	r = NewResolver(Sources{OrgUnits: src, ManagerEdges: src, Memberships: src, Grants: src, Users: src})
	_, err = r.ResolveVisibleUsers(context.Background(), 10, ScopeSelf, "2024-06-01")
	require.ErrorIs(t, err, boom)
}

func TestParseScope(t *testing.T) {
	for raw, want := range map[string]Scope{
		"":             ScopeSelf,
		"self":         ScopeSelf,
		" Direct ":     ScopeDirect,
		"subordinates": ScopeDirect,
		"SUBTREE":      ScopeSubtree,
		"everyone":     ScopeSelf,
	} {
		assert.Equal(t, want, ParseScope(raw), raw)
	}
}

func TestStrategyByName(t *testing.T) {
	st, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, StrategyNaive, st.Name())

	st, err = StrategyByName("Closure")
	require.NoError(t, err)
	assert.Equal(t, StrategyClosure, st.Name())

	_, err = StrategyByName("bfs")
	require.Error(t, err)
}
