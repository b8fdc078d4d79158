package authz

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseMode_Default(t *testing.T) {
	m, err := ParseMode("", false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeEnforce {
		t.Fatalf("mode=%q", m)
	}
}

func TestParseMode_Shadow(t *testing.T) {
	m, err := ParseMode(" Shadow ", false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeShadow {
		t.Fatalf("mode=%q", m)
	}
}

func TestParseMode_DisabledRequiresUnsafe(t *testing.T) {
	if _, err := ParseMode("disabled", false); err == nil {
		t.Fatal("expected error")
	}
	m, err := ParseMode("disabled", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeDisabled {
		t.Fatalf("mode=%q", m)
	}
}

func TestParseMode_Invalid(t *testing.T) {
	if _, err := ParseMode("nope", true); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaultPolicies_SysAdminEverything(t *testing.T) {
	policies, err := DefaultPolicies()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	a, err := NewAuthorizer(policies, ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	for _, obj := range []string{ObjectAdminOrgs, ObjectAdminRoleGrants, ObjectAdminUsers} {
		allowed, enforced, err := a.AuthorizeRoles([]string{RoleSysAdmin}, obj, ActionWrite)
		if err != nil || !allowed || !enforced {
			t.Fatalf("sys_admin %s: allowed=%v enforced=%v err=%v", obj, allowed, enforced, err)
		}
	}

	allowed, _, err := a.AuthorizeRoles([]string{RoleOrgAdmin}, ObjectAdminRoleGrants, ActionWrite)
	if err != nil || allowed {
		t.Fatalf("org_admin grants write: allowed=%v err=%v", allowed, err)
	}
	allowed, _, err = a.AuthorizeRoles([]string{"employee", RoleOrgAdmin}, ObjectAdminOrgs, ActionWrite)
	if err != nil || !allowed {
		t.Fatalf("org_admin orgs write: allowed=%v err=%v", allowed, err)
	}
	allowed, _, err = a.AuthorizeRoles([]string{RoleAuditor}, ObjectAdminRoleGrants, ActionRead)
	if err != nil || !allowed {
		t.Fatalf("auditor read: allowed=%v err=%v", allowed, err)
	}
	allowed, _, err = a.AuthorizeRoles([]string{RoleAuditor}, ObjectAdminRoleGrants, ActionWrite)
	if err != nil || allowed {
		t.Fatalf("auditor write: allowed=%v err=%v", allowed, err)
	}
	allowed, _, err = a.AuthorizeRoles(nil, ObjectAdminOrgs, ActionRead)
	if err != nil || allowed {
		t.Fatalf("anonymous: allowed=%v err=%v", allowed, err)
	}
}

func TestAuthorize_ShadowAndDisabled(t *testing.T) {
	a, err := NewAuthorizer(nil, ModeShadow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	allowed, enforced, err := a.Authorize(SubjectFromRoleCode("x"), DomainGlobal, ObjectAdminOrgs, ActionRead)
	if err != nil || allowed || enforced {
		t.Fatalf("shadow: allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}

	a, err = NewAuthorizer(nil, ModeDisabled)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	allowed, enforced, err = a.Authorize(SubjectFromRoleCode("x"), DomainGlobal, ObjectAdminOrgs, ActionRead)
	if err != nil || !allowed || enforced {
		t.Fatalf("disabled: allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}
}

func TestLoadPolicies_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(`
version: 1
policies:
  - role: reporter
    object: admin.roles
    action: read
`), 0o644); err != nil {
		t.Fatal(err)
	}
	policies, err := LoadPolicies(path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(policies) != 1 || policies[0].Domain != DomainGlobal {
		t.Fatalf("policies=%+v", policies)
	}

	a, err := NewAuthorizer(policies, ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	allowed, _, err := a.AuthorizeRoles([]string{"Reporter"}, ObjectAdminRoles, ActionRead)
	if err != nil || !allowed {
		t.Fatalf("allowed=%v err=%v", allowed, err)
	}
}

func TestParsePoliciesYAML_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "version: [",
		"wrong version":  "version: 2\npolicies: []\n",
		"missing object": "version: 1\npolicies:\n  - role: a\n    action: read\n",
	}
	for name, in := range cases {
		if _, err := ParsePoliciesYAML([]byte(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSubjectFromRoleCode(t *testing.T) {
	if got := SubjectFromRoleCode(" SYS_ADMIN "); got != "role:sys_admin" {
		t.Fatalf("got=%q", got)
	}
	if got := SubjectFromRoleCode(""); got != "role:anonymous" {
		t.Fatalf("got=%q", got)
	}
}
