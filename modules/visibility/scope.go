package visibility

import "strings"

// Scope selects how far down the management graph a viewer sees.
type Scope string

const (
	ScopeSelf    Scope = "self"
	ScopeDirect  Scope = "direct"
	ScopeSubtree Scope = "subtree"
)

// ParseScope is lenient: "subordinates" means direct, and anything
// unrecognised falls back to self.
func ParseScope(raw string) Scope {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case ScopeSelf, ScopeDirect, ScopeSubtree:
		return s
	case "subordinates":
		return ScopeDirect
	default:
		return ScopeSelf
	}
}
