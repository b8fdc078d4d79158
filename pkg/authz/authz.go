package authz

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"gopkg.in/yaml.v3"
)

//go:embed model.conf default_policy.yaml
var assets embed.FS

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// ParseMode validates a configured mode. "disabled" is refused unless the
// operator has explicitly allowed it.
func ParseMode(raw string, allowDisabled bool) (Mode, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	case ModeDisabled:
		if !allowDisabled {
			return "", errors.New("authz: mode=disabled requires allow_disabled")
		}
		return ModeDisabled, nil
	default:
		return "", errors.New("authz: invalid mode (expected enforce|shadow|disabled)")
	}
}

// Policy allows a role to perform action on object. Object and action may
// end in "*" to match a family ("admin.*").
type Policy struct {
	Role   string `yaml:"role"`
	Domain string `yaml:"domain"`
	Object string `yaml:"object"`
	Action string `yaml:"action"`
}

type policyFile struct {
	Version  int      `yaml:"version"`
	Policies []Policy `yaml:"policies"`
}

func ParsePoliciesYAML(b []byte) ([]Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("authz: parse policy: %w", err)
	}
	if f.Version != 1 {
		return nil, errors.New("authz: unsupported policy version")
	}
	for i, p := range f.Policies {
		if strings.TrimSpace(p.Role) == "" || p.Object == "" || p.Action == "" {
			return nil, fmt.Errorf("authz: policy %d: role, object and action are required", i)
		}
		if p.Domain == "" {
			f.Policies[i].Domain = DomainGlobal
		}
	}
	return f.Policies, nil
}

// LoadPolicies reads a policy file, or the built-in defaults when path is empty.
func LoadPolicies(path string) ([]Policy, error) {
	if path == "" {
		return DefaultPolicies()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePoliciesYAML(b)
}

func DefaultPolicies() ([]Policy, error) {
	b, err := assets.ReadFile("default_policy.yaml")
	if err != nil {
		return nil, err
	}
	return ParsePoliciesYAML(b)
}

type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

func NewAuthorizer(policies []Policy, mode Mode) (*Authorizer, error) {
	text, err := assets.ReadFile("model.conf")
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(string(text))
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		if _, err := enforcer.AddPolicy(SubjectFromRoleCode(p.Role), p.Domain, p.Object, p.Action); err != nil {
			return nil, err
		}
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

func SubjectFromRoleCode(code string) string {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		code = RoleAnonymous
	}
	return "role:" + code
}

func (a *Authorizer) Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error) {
	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeShadow:
		ok, err := a.enforcer.Enforce(subject, domain, object, action)
		if err != nil {
			return false, false, err
		}
		return ok, false, nil
	case ModeEnforce:
		ok, err := a.enforcer.Enforce(subject, domain, object, action)
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
	default:
		return false, false, errors.New("authz: unknown mode")
	}
}

// AuthorizeRoles allows the request when any of roleCodes is allowed.
func (a *Authorizer) AuthorizeRoles(roleCodes []string, object string, action string) (allowed bool, enforced bool, err error) {
	if len(roleCodes) == 0 {
		roleCodes = []string{RoleAnonymous}
	}
	for _, code := range roleCodes {
		allowed, enforced, err = a.Authorize(SubjectFromRoleCode(code), DomainGlobal, object, action)
		if err != nil || allowed {
			return allowed, enforced, err
		}
	}
	return false, enforced, nil
}
