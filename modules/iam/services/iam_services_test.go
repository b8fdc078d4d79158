package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/modules/iam/infrastructure/persistence"
	"github.com/jacksonlee411/worklog/pkg/authz"
	"github.com/jacksonlee411/worklog/pkg/docstore"
	"github.com/jacksonlee411/worklog/pkg/httperr"
	"github.com/jacksonlee411/worklog/pkg/objstore"
)

type fixture struct {
	users  UserService
	grants RoleGrantService
	audit  AuditService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ds := docstore.New(objstore.NewMemory(), docstore.WithRetry(docstore.DefaultMaxAttempts, 0))
	return fixture{
		users:  NewUserService(persistence.NewUserDocStore(ds)),
		grants: NewRoleGrantService(persistence.NewRoleDocStore(ds), persistence.NewGrantDocStore(ds)),
		audit:  NewAuditService(persistence.NewAuditDocStore(ds), nil),
	}
}

func ptr[T any](v T) *T { return &v }

func TestUserService_CreateUpdateGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.users.CreateUser(ctx, CreateUserRequest{Name: " "})
	assert.Equal(t, errUserNameRequired, httperr.Code(err))

	alice, err := f.users.CreateUser(ctx, CreateUserRequest{Name: "Alice", EmployeeNo: "E001", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)
	assert.True(t, alice.Active)
	assert.Nil(t, alice.Phone)

	_, err = f.users.CreateUser(ctx, CreateUserRequest{Name: "Imposter", EmployeeNo: "E001"})
	require.True(t, httperr.IsConflict(err))

	bob, err := f.users.CreateUser(ctx, CreateUserRequest{Name: "Bob", EmployeeNo: "E002"})
	require.NoError(t, err)

	_, err = f.users.UpdateUser(ctx, bob.ID, types.UserPatch{EmployeeNo: ptr("E001")})
	require.True(t, httperr.IsConflict(err))

	updated, err := f.users.UpdateUser(ctx, alice.ID, types.UserPatch{Email: ptr(""), JobTitle: ptr(" Lead "), Active: ptr(false)})
	require.NoError(t, err)
	assert.Nil(t, updated.Email)
	assert.Equal(t, ptr("Lead"), updated.JobTitle)
	assert.False(t, updated.Active)

	_, err = f.users.UpdateUser(ctx, 99, types.UserPatch{Name: ptr("x")})
	require.True(t, httperr.IsNotFound(err))

	got, err := f.users.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
	_, err = f.users.GetUser(ctx, 42)
	require.True(t, httperr.IsNotFound(err))

	active, err := f.users.ActiveUsers(ctx, []int64{alice.ID, bob.ID, 42})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, bob.ID, active[0].ID)
}

func TestUserService_ListUsersKeywordAndPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, req := range []CreateUserRequest{
		{Name: "Alice Zhang", Email: "az@corp.io"},
		{Name: "Bob", EmployeeNo: "ZX-9"},
		{Name: "Carol", Email: "carol@other.io"},
	} {
		_, err := f.users.CreateUser(ctx, req)
		require.NoError(t, err)
	}

	page, err := f.users.ListUsers(ctx, "z", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, DefaultUserPageLimit, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Alice Zhang", page.Items[0].Name)
	assert.Equal(t, "Bob", page.Items[1].Name)

	page, err = f.users.ListUsers(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Carol", page.Items[0].Name)

	page, err = f.users.ListUsers(ctx, "", 1000, 5)
	require.NoError(t, err)
	assert.Equal(t, MaxUserPageLimit, page.Limit)
	assert.Empty(t, page.Items)
}

func TestRoleGrantService_AddAndResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.grants.AddGrant(ctx, AddGrantRequest{GranteeUserID: 10, DomainOrgID: 2, StartDate: "2024-01-01"})
	assert.Equal(t, errGrantRoleRequired, httperr.Code(err))
	_, err = f.grants.AddGrant(ctx, AddGrantRequest{GranteeUserID: 10, DomainOrgID: 2, RoleCode: "manager", Scope: "everything", StartDate: "2024-01-01"})
	assert.Equal(t, errGrantScopeInvalid, httperr.Code(err))
	_, err = f.grants.AddGrant(ctx, AddGrantRequest{GranteeUserID: 10, DomainOrgID: 2, RoleID: 77, StartDate: "2024-01-01"})
	require.True(t, httperr.IsNotFound(err))

	g, err := f.grants.AddGrant(ctx, AddGrantRequest{
		GranteeUserID: 10, DomainOrgID: 2, RoleCode: "manager", Scope: "subtree",
		StartDate: "2024-01-01", EndDate: ptr("2024-06-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.GrantScopeSubtree, g.Scope)

	role, ok, err := f.grants.RoleByCode(ctx, "manager")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "manager", role.Name)
	assert.Equal(t, role.ID, g.RoleID)

	for _, tc := range []struct {
		asOf string
		want bool
	}{
		{asOf: "2023-12-31", want: false},
		{asOf: "2024-01-01", want: true},
		{asOf: "2024-06-01", want: true},
		{asOf: "2024-06-02", want: false},
	} {
		has, err := f.grants.HasEffectiveGrant(ctx, 10, "manager", tc.asOf)
		require.NoError(t, err)
		assert.Equal(t, tc.want, has, tc.asOf)
	}

	has, err := f.grants.HasEffectiveGrant(ctx, 10, "no_such_role", "2024-03-01")
	require.NoError(t, err)
	assert.False(t, has)

	codes, err := f.grants.RoleCodes(ctx, 10, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"manager"}, codes)

	views, err := f.grants.ListGrants(ctx, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "manager", views[0].RoleCode)

	others, err := f.grants.ListGrants(ctx, 11)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestRoleGrantService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g, err := f.grants.AddGrant(ctx, AddGrantRequest{GranteeUserID: 3, DomainOrgID: 1, RoleCode: "viewer", StartDate: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, types.GrantScopeSelf, g.Scope)

	_, err = f.grants.UpdateGrant(ctx, g.ID, types.RoleGrantPatch{EndDate: ptr("2023-01-01")})
	assert.Equal(t, errGrantEndDate, httperr.Code(err))

	scope := types.GrantScope("DIRECT")
	updated, err := f.grants.UpdateGrant(ctx, g.ID, types.RoleGrantPatch{Scope: &scope, EndDate: ptr("2024-12-31")})
	require.NoError(t, err)
	assert.Equal(t, types.GrantScopeDirect, updated.Scope)
	assert.Equal(t, ptr("2024-12-31"), updated.EndDate)

	reopened, err := f.grants.UpdateGrant(ctx, g.ID, types.RoleGrantPatch{ClearEndDate: true})
	require.NoError(t, err)
	assert.Nil(t, reopened.EndDate)

	_, err = f.grants.UpdateGrant(ctx, 999, types.RoleGrantPatch{})
	require.True(t, httperr.IsNotFound(err))

	require.NoError(t, f.grants.DeleteGrant(ctx, g.ID))
	require.True(t, httperr.IsNotFound(f.grants.DeleteGrant(ctx, g.ID)))
}

func TestEnsureRole_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.grants.EnsureRole(ctx, authz.RoleSysAdmin, "System admin")
	require.NoError(t, err)
	b, err := f.grants.EnsureRole(ctx, authz.RoleSysAdmin, "ignored")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = f.grants.EnsureRole(ctx, " ", "")
	assert.Equal(t, errRoleCodeRequired, httperr.Code(err))

	roles, err := f.grants.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestExportGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	clock := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	f.audit.now = func() time.Time { return clock }
	gate := NewExportGate(f.audit, 2)
	gate.now = func() time.Time { return clock }

	for range 2 {
		require.NoError(t, gate.Allow(ctx, 7))
		_, err := f.audit.Record(ctx, AuditEntry{ActorUserID: 7, Action: types.ActionExportRequest})
		require.NoError(t, err)
	}

	err := gate.Allow(ctx, 7)
	require.True(t, httperr.IsTooManyRequests(err))
	denied, err := f.audit.CountSince(ctx, 7, types.ActionExportDenied, clock.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, denied)

	require.NoError(t, gate.Allow(ctx, 8), "limits are per actor")

	clock = clock.Add(61 * time.Second)
	require.NoError(t, gate.Allow(ctx, 7), "window slides")
}

func TestAdminGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	policies, err := authz.DefaultPolicies()
	require.NoError(t, err)

	_, err = f.grants.AddGrant(ctx, AddGrantRequest{GranteeUserID: 1, DomainOrgID: 1, RoleCode: authz.RoleSysAdmin, StartDate: "2000-01-01"})
	require.NoError(t, err)
	_, err = f.grants.AddGrant(ctx, AddGrantRequest{GranteeUserID: 2, DomainOrgID: 1, RoleCode: authz.RoleAuditor, StartDate: "2000-01-01"})
	require.NoError(t, err)

	enforce, err := authz.NewAuthorizer(policies, authz.ModeEnforce)
	require.NoError(t, err)
	guard := NewAdminGuard(f.grants, enforce, nil)

	require.NoError(t, guard.Check(ctx, 1, authz.ObjectAdminRoleGrants, authz.ActionWrite))
	require.NoError(t, guard.Check(ctx, 2, authz.ObjectAdminUsers, authz.ActionRead))
	require.True(t, httperr.IsForbidden(guard.Check(ctx, 2, authz.ObjectAdminUsers, authz.ActionWrite)))
	require.True(t, httperr.IsForbidden(guard.Check(ctx, 3, authz.ObjectAdminOrgs, authz.ActionRead)))

	shadow, err := authz.NewAuthorizer(policies, authz.ModeShadow)
	require.NoError(t, err)
	require.NoError(t, NewAdminGuard(f.grants, shadow, nil).Check(ctx, 3, authz.ObjectAdminOrgs, authz.ActionWrite))

	// With no policies at all only the sys_admin grant still opens the door.
	bare, err := authz.NewAuthorizer(nil, authz.ModeEnforce)
	require.NoError(t, err)
	bareGuard := NewAdminGuard(f.grants, bare, nil)
	require.NoError(t, bareGuard.Check(ctx, 1, authz.ObjectAdminRoleGrants, authz.ActionWrite))
	require.True(t, httperr.IsForbidden(bareGuard.Check(ctx, 2, authz.ObjectAdminUsers, authz.ActionRead)))
}
