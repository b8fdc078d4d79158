package visibility

import (
	"context"
	"time"

	"go.uber.org/zap"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/orggraph"
)

// Result is a resolved visible-user set together with the grants that
// contributed org coverage.
type Result struct {
	UserIDs []int64
	Grants  []iamtypes.RoleGrant
}

// Compute resolves what viewerID may see on asOfDate. It is a pure function
// of its inputs; t must have been prepared from snap for the same day.
func Compute(snap *Snapshot, t Traversal, viewerID int64, scope Scope, asOfDate string) Result {
	visible := orggraph.NewSet(viewerID)
	switch scope {
	case ScopeDirect:
		visible.Union(t.DirectSubordinates(viewerID))
	case ScopeSubtree:
		visible.Union(t.AllSubordinates(viewerID))
	}

	known := orggraph.NewSet()
	for _, o := range snap.OrgUnits {
		known.Add(o.ID)
	}
	covered := orggraph.NewSet()
	var used []iamtypes.RoleGrant
	for _, g := range snap.Grants {
		if g.GranteeUserID != viewerID || !known.Has(g.DomainOrgID) || !asof.IsEffective(g, asOfDate) {
			continue
		}
		used = append(used, g)
		switch g.Scope {
		case iamtypes.GrantScopeSubtree:
			covered.Union(t.OrgSubtree(g.DomainOrgID))
		case iamtypes.GrantScopeDirect:
			covered.Add(g.DomainOrgID)
			covered.Union(t.OrgDirectChildren(g.DomainOrgID))
		default:
			covered.Add(g.DomainOrgID)
		}
	}
	if len(covered) > 0 {
		visible.Union(t.UsersByOrgs(covered))
	}
	return Result{UserIDs: visible.Sorted(), Grants: used}
}

type Option func(*Resolver)

func WithStrategy(s Strategy) Option {
	return func(r *Resolver) {
		if s != nil {
			r.strategy = s
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// Resolver loads a fresh snapshot for every call.
type Resolver struct {
	src      Sources
	strategy Strategy
	log      *zap.Logger
}

func NewResolver(src Sources, opts ...Option) *Resolver {
	r := &Resolver{src: src, strategy: NaiveTraversal{}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Strategy() string { return r.strategy.Name() }

func (r *Resolver) Resolve(ctx context.Context, viewerID int64, scope Scope, asOfDate string) (Result, error) {
	day, err := asof.Normalize(asOfDate)
	if err != nil {
		return Result{}, err
	}
	started := time.Now()
	snap, err := LoadSnapshot(ctx, r.src)
	if err != nil {
		return Result{}, err
	}
	res := Compute(snap, r.strategy.Prepare(snap, day), viewerID, scope, day)
	r.log.Debug("visibility resolved",
		zap.Int64("viewer_id", viewerID),
		zap.String("scope", string(scope)),
		zap.String("as_of", day),
		zap.String("strategy", r.strategy.Name()),
		zap.Int("visible", len(res.UserIDs)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

// ResolveVisibleUsers returns the sorted ids viewerID may see on asOfDate.
func (r *Resolver) ResolveVisibleUsers(ctx context.Context, viewerID int64, scope Scope, asOfDate string) ([]int64, error) {
	res, err := r.Resolve(ctx, viewerID, scope, asOfDate)
	if err != nil {
		return nil, err
	}
	return res.UserIDs, nil
}
