package migrate

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	orgtypes "github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	stafftypes "github.com/jacksonlee411/worklog/modules/staffing/domain/types"
	worktypes "github.com/jacksonlee411/worklog/modules/worklog/domain/types"
)

type UserWriter interface {
	ReplaceUsers(ctx context.Context, users []iamtypes.User) error
}

type OrgUnitWriter interface {
	ReplaceOrgUnits(ctx context.Context, units []orgtypes.OrgUnit) error
}

type MembershipWriter interface {
	ReplaceMemberships(ctx context.Context, items []orgtypes.Membership) error
}

type ManagerEdgeWriter interface {
	ReplaceManagerEdges(ctx context.Context, edges []stafftypes.ManagerEdge) error
}

type RoleWriter interface {
	ReplaceRoles(ctx context.Context, roles []iamtypes.Role) error
}

type GrantWriter interface {
	ReplaceGrants(ctx context.Context, grants []iamtypes.RoleGrant) error
}

type AuditWriter interface {
	ReplaceAuditLogs(ctx context.Context, logs []iamtypes.AuditLog) error
}

// ShardWriter owns the per-user work item documents and the shared id
// counter.
type ShardWriter interface {
	ReplaceUserWorkItems(ctx context.Context, userID int64, items []worktypes.WorkItem) error
	ShardUserIDs(ctx context.Context) ([]int64, error)
	DeleteShard(ctx context.Context, userID int64) error
	RaiseLastID(ctx context.Context, id int64) error
}

type UserLister interface {
	ListUsers(ctx context.Context) ([]iamtypes.User, error)
}

type Targets struct {
	Users        UserWriter
	OrgUnits     OrgUnitWriter
	Memberships  MembershipWriter
	ManagerEdges ManagerEdgeWriter
	Roles        RoleWriter
	Grants       GrantWriter
	AuditLogs    AuditWriter
	WorkItems    ShardWriter
}

type Summary struct {
	Users            int   `json:"users"`
	OrgUnits         int   `json:"orgUnits"`
	Memberships      int   `json:"memberships"`
	ManagerEdges     int   `json:"managerEdges"`
	Roles            int   `json:"roles"`
	RoleGrants       int   `json:"roleGrants"`
	WorkItems        int   `json:"workItems"`
	DroppedWorkItems int   `json:"droppedWorkItems"`
	AuditLogs        int   `json:"auditLogs"`
	PrunedShards     int   `json:"prunedShards"`
	MaxWorkItemID    int64 `json:"maxWorkItemId"`
}

type Migrator struct {
	src Source
	dst Targets
	log *zap.Logger
}

func New(src Source, dst Targets, log *zap.Logger) *Migrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{src: src, dst: dst, log: log}
}

func (m *Migrator) load(ctx context.Context) (dataset, error) {
	var d dataset
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.users, err = m.src.Users(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.orgUnits, err = m.src.OrgUnits(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.memberships, err = m.src.Memberships(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.managerEdges, err = m.src.ManagerEdges(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.roles, err = m.src.Roles(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.roleGrants, err = m.src.RoleGrants(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.workItems, err = m.src.WorkItems(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.auditLogs, err = m.src.AuditLogs(ctx)
		return err
	})
	return d, g.Wait()
}

// Run replaces every collection with the source's content, re-shards work
// items by creator and removes shards whose user no longer exists. It is
// safe to rerun; each collection is written wholesale.
func (m *Migrator) Run(ctx context.Context) (Summary, error) {
	d, err := m.load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load source: %w", err)
	}

	steps := []struct {
		name  string
		count int
		write func() error
	}{
		{"users", len(d.users), func() error { return m.dst.Users.ReplaceUsers(ctx, d.users) }},
		{"org_units", len(d.orgUnits), func() error { return m.dst.OrgUnits.ReplaceOrgUnits(ctx, d.orgUnits) }},
		{"user_org_memberships", len(d.memberships), func() error { return m.dst.Memberships.ReplaceMemberships(ctx, d.memberships) }},
		{"manager_edges", len(d.managerEdges), func() error { return m.dst.ManagerEdges.ReplaceManagerEdges(ctx, d.managerEdges) }},
		{"roles", len(d.roles), func() error { return m.dst.Roles.ReplaceRoles(ctx, d.roles) }},
		{"role_grants", len(d.roleGrants), func() error { return m.dst.Grants.ReplaceGrants(ctx, d.roleGrants) }},
		{"audit_logs", len(d.auditLogs), func() error { return m.dst.AuditLogs.ReplaceAuditLogs(ctx, d.auditLogs) }},
	}
	for _, step := range steps {
		if err := step.write(); err != nil {
			return Summary{}, fmt.Errorf("write %s: %w", step.name, err)
		}
		m.log.Info("collection migrated", zap.String("collection", step.name), zap.Int("count", step.count))
	}

	sum := Summary{
		Users:        len(d.users),
		OrgUnits:     len(d.orgUnits),
		Memberships:  len(d.memberships),
		ManagerEdges: len(d.managerEdges),
		Roles:        len(d.roles),
		RoleGrants:   len(d.roleGrants),
		AuditLogs:    len(d.auditLogs),
	}
	if err := m.reshard(ctx, d, &sum); err != nil {
		return Summary{}, err
	}
	pruned, err := m.prune(ctx, d.users)
	if err != nil {
		return Summary{}, err
	}
	sum.PrunedShards = pruned
	m.log.Info("migration finished",
		zap.Int("work_items", sum.WorkItems),
		zap.Int("dropped_work_items", sum.DroppedWorkItems),
		zap.Int("pruned_shards", sum.PrunedShards),
	)
	return sum, nil
}

// reshard writes one shard per existing user, including users with no
// items, so stale shard content never survives a rerun.
func (m *Migrator) reshard(ctx context.Context, d dataset, sum *Summary) error {
	byCreator := make(map[int64][]worktypes.WorkItem, len(d.users))
	for _, u := range d.users {
		byCreator[u.ID] = []worktypes.WorkItem{}
	}
	for _, w := range d.workItems {
		sum.MaxWorkItemID = max(sum.MaxWorkItemID, w.ID)
		items, ok := byCreator[w.CreatorID]
		if !ok {
			sum.DroppedWorkItems++
			continue
		}
		byCreator[w.CreatorID] = append(items, w)
		sum.WorkItems++
	}
	if sum.DroppedWorkItems > 0 {
		m.log.Warn("work items without a creator dropped", zap.Int("count", sum.DroppedWorkItems))
	}

	creators := make([]int64, 0, len(byCreator))
	for id := range byCreator {
		creators = append(creators, id)
	}
	slices.Sort(creators)
	for _, id := range creators {
		items := byCreator[id]
		slices.SortFunc(items, func(a, b worktypes.WorkItem) int {
			return cmp.Or(cmp.Compare(a.WorkDate, b.WorkDate), cmp.Compare(a.ID, b.ID))
		})
		if err := m.dst.WorkItems.ReplaceUserWorkItems(ctx, id, items); err != nil {
			return fmt.Errorf("write work item shard %d: %w", id, err)
		}
	}
	if err := m.dst.WorkItems.RaiseLastID(ctx, sum.MaxWorkItemID); err != nil {
		return fmt.Errorf("write work item counter: %w", err)
	}
	m.log.Info("work items resharded", zap.Int("shards", len(creators)), zap.Int("count", sum.WorkItems))
	return nil
}

func (m *Migrator) prune(ctx context.Context, users []iamtypes.User) (int, error) {
	known := make(map[int64]struct{}, len(users))
	for _, u := range users {
		known[u.ID] = struct{}{}
	}
	shards, err := m.dst.WorkItems.ShardUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list shards: %w", err)
	}
	pruned := 0
	for _, id := range shards {
		if _, ok := known[id]; ok {
			continue
		}
		if err := m.dst.WorkItems.DeleteShard(ctx, id); err != nil {
			return pruned, fmt.Errorf("delete shard %d: %w", id, err)
		}
		m.log.Info("orphan shard deleted", zap.Int64("user_id", id))
		pruned++
	}
	return pruned, nil
}

// PruneShards deletes work item shards whose user is not in the store's own
// user collection. It needs no database.
func PruneShards(ctx context.Context, users UserLister, shards ShardWriter, log *zap.Logger) (int, error) {
	list, err := users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	m := New(nil, Targets{WorkItems: shards}, log)
	return m.prune(ctx, list)
}
