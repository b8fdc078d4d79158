package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	"github.com/jacksonlee411/worklog/modules/orgunit/infrastructure/persistence"
	"github.com/jacksonlee411/worklog/pkg/docstore"
	"github.com/jacksonlee411/worklog/pkg/httperr"
	"github.com/jacksonlee411/worklog/pkg/objstore"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T) OrgUnitService {
	t.Helper()
	ds := docstore.New(objstore.NewMemory(), docstore.WithRetry(docstore.DefaultMaxAttempts, 0))
	return NewOrgUnitService(persistence.NewOrgUnitDocStore(ds), persistence.NewMembershipDocStore(ds))
}

type membershipStoreStub struct {
	listFn func(ctx context.Context) ([]types.Membership, error)
}

func (s membershipStoreStub) ListMemberships(ctx context.Context) ([]types.Membership, error) {
	if s.listFn == nil {
		return nil, errors.New("ListMemberships not mocked")
	}
	return s.listFn(ctx)
}

func (membershipStoreStub) SetPrimary(context.Context, int64, int64, string, string) (types.Membership, error) {
	return types.Membership{}, errors.New("SetPrimary not mocked")
}

func (membershipStoreStub) ReplaceMemberships(context.Context, []types.Membership) error {
	return errors.New("ReplaceMemberships not mocked")
}

func mustCreate(t *testing.T, svc OrgUnitService, req CreateOrgUnitRequest) types.OrgUnit {
	t.Helper()
	u, err := svc.CreateOrgUnit(context.Background(), req)
	if err != nil {
		t.Fatalf("create %q: err=%v", req.Name, err)
	}
	return u
}

func TestCreateOrgUnit_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.CreateOrgUnit(ctx, CreateOrgUnitRequest{Name: "  "})
	if !httperr.IsBadRequest(err) || httperr.Code(err) != errOrgNameRequired {
		t.Fatalf("blank name: err=%v", err)
	}
	if _, err := svc.CreateOrgUnit(ctx, CreateOrgUnitRequest{Name: "x", Type: "galaxy"}); httperr.Code(err) != errOrgTypeInvalid {
		t.Fatalf("bad type: err=%v", err)
	}
	if _, err := svc.CreateOrgUnit(ctx, CreateOrgUnitRequest{Name: "x", ParentID: ptr(int64(9))}); httperr.Code(err) != errOrgParentNotFound {
		t.Fatalf("missing parent: err=%v", err)
	}

	u, err := svc.CreateOrgUnit(ctx, CreateOrgUnitRequest{Name: " Sales ", Type: "TEAM"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if u.Name != "Sales" || u.Type != types.OrgTypeTeam || !u.Active {
		t.Fatalf("u=%+v", u)
	}
}

func TestUpdateOrgUnit_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	root := mustCreate(t, svc, CreateOrgUnitRequest{Name: "root"})
	child := mustCreate(t, svc, CreateOrgUnitRequest{Name: "child", ParentID: ptr(root.ID)})

	_, err := svc.UpdateOrgUnit(ctx, root.ID, types.OrgUnitPatch{SetParent: true, ParentID: ptr(child.ID)})
	if !httperr.IsConflict(err) || httperr.Code(err) != errOrgParentCycle {
		t.Fatalf("cycle: err=%v", err)
	}
	if _, err := svc.UpdateOrgUnit(ctx, root.ID, types.OrgUnitPatch{SetParent: true, ParentID: ptr(root.ID)}); httperr.Code(err) != errOrgParentCycle {
		t.Fatalf("self parent: err=%v", err)
	}
	if _, err := svc.UpdateOrgUnit(ctx, 77, types.OrgUnitPatch{Active: ptr(false)}); !httperr.IsNotFound(err) {
		t.Fatalf("missing: err=%v", err)
	}
	if _, err := svc.UpdateOrgUnit(ctx, root.ID, types.OrgUnitPatch{Name: ptr(" ")}); httperr.Code(err) != errOrgNameRequired {
		t.Fatalf("blank name: err=%v", err)
	}

	got, err := svc.UpdateOrgUnit(ctx, child.ID, types.OrgUnitPatch{Active: ptr(false)})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got.Active || got.ParentID == nil || *got.ParentID != root.ID {
		t.Fatalf("got=%+v", got)
	}
}

func TestOrgTree(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	a := mustCreate(t, svc, CreateOrgUnitRequest{Name: "a"})
	b := mustCreate(t, svc, CreateOrgUnitRequest{Name: "b", ParentID: ptr(a.ID)})
	mustCreate(t, svc, CreateOrgUnitRequest{Name: "c", ParentID: ptr(b.ID)})
	mustCreate(t, svc, CreateOrgUnitRequest{Name: "d"})

	roots, err := svc.OrgTree(ctx)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(roots) != 2 || roots[0].Name != "a" || roots[1].Name != "d" {
		t.Fatalf("roots=%+v", roots)
	}
	if len(roots[0].Children) != 1 || len(roots[0].Children[0].Children) != 1 {
		t.Fatalf("a subtree=%+v", roots[0])
	}
	if name := roots[0].Children[0].Children[0].Name; name != "c" {
		t.Fatalf("grandchild=%q", name)
	}
	if len(roots[1].Children) != 0 {
		t.Fatalf("d children=%d", len(roots[1].Children))
	}
}

func TestSetPrimaryOrg(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	o1 := mustCreate(t, svc, CreateOrgUnitRequest{Name: "one"})
	o2 := mustCreate(t, svc, CreateOrgUnitRequest{Name: "two"})

	if _, err := svc.SetPrimaryOrg(ctx, 10, 99, "2024-01-01"); !httperr.IsNotFound(err) {
		t.Fatalf("missing org: err=%v", err)
	}
	if _, err := svc.SetPrimaryOrg(ctx, 10, o1.ID, "01/02/2024"); httperr.Code(err) != errEffectiveDate {
		t.Fatalf("bad date: err=%v", err)
	}
	if _, err := svc.SetPrimaryOrg(ctx, 10, o1.ID, "2024-01-01"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := svc.SetPrimaryOrg(ctx, 10, o2.ID, "2024-03-01T10:00:00Z"); err != nil {
		t.Fatalf("err=%v", err)
	}

	for _, tc := range []struct {
		asOf string
		want int64
		ok   bool
	}{
		{asOf: "2023-12-31", ok: false},
		{asOf: "2024-01-01", want: o1.ID, ok: true},
		{asOf: "2024-02-29", want: o1.ID, ok: true},
		{asOf: "2024-03-01", want: o2.ID, ok: true},
	} {
		got, ok, err := svc.PrimaryOrgID(ctx, 10, tc.asOf)
		if err != nil {
			t.Fatalf("%s: err=%v", tc.asOf, err)
		}
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: got=%d ok=%v, want %d ok=%v", tc.asOf, got, ok, tc.want, tc.ok)
		}
	}

	ms, err := svc.ListMemberships(ctx, 10)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(ms) != 2 || ms[0].EndDate == nil || *ms[0].EndDate != "2024-02-29" {
		t.Fatalf("memberships=%+v", ms)
	}

	none, err := svc.ListMemberships(ctx, 11)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(none) != 0 {
		t.Fatalf("user 11 memberships=%+v", none)
	}
}

func TestPrimaryOrgID_LatestStartWins(t *testing.T) {
	svc := NewOrgUnitService(nil, membershipStoreStub{listFn: func(context.Context) ([]types.Membership, error) {
		return []types.Membership{
			{UserID: 1, OrgID: 4, IsPrimary: true, StartDate: "2024-01-01"},
			{UserID: 1, OrgID: 5, IsPrimary: true, StartDate: "2024-02-01"},
			{UserID: 1, OrgID: 6, IsPrimary: false, StartDate: "2024-03-01"},
		}, nil
	}})
	got, ok, err := svc.PrimaryOrgID(context.Background(), 1, "2024-06-01")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !ok || got != 5 {
		t.Fatalf("got=%d ok=%v", got, ok)
	}
}
