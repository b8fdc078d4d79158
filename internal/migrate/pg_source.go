package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	orgtypes "github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	stafftypes "github.com/jacksonlee411/worklog/modules/staffing/domain/types"
	worktypes "github.com/jacksonlee411/worklog/modules/worklog/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
)

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGSource reads the legacy PostgreSQL schema. Timestamps the schema does
// not carry are stamped with the migration time.
type PGSource struct {
	db  pgQuerier
	now func() time.Time
}

func NewPGSource(db pgQuerier) *PGSource {
	return &PGSource{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PGSource) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func collect[T any](ctx context.Context, db pgQuerier, table string, sql string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

func dayPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	d := asof.Format(*t)
	return &d
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

// SplitTags turns the legacy comma-joined tag column into a list.
func SplitTags(raw *string) []string {
	tags := []string{}
	if raw == nil {
		return tags
	}
	for _, t := range strings.Split(*raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (s *PGSource) Users(ctx context.Context) ([]iamtypes.User, error) {
	now := s.stamp()
	return collect(ctx, s.db, "users", `
SELECT id, employee_no, name, email, phone, job_title, grade, active
FROM users
ORDER BY id`, func(r pgx.Rows) (iamtypes.User, error) {
		var u iamtypes.User
		var name *string
		if err := r.Scan(&u.ID, &u.EmployeeNo, &name, &u.Email, &u.Phone, &u.JobTitle, &u.Grade, &u.Active); err != nil {
			return u, err
		}
		if name != nil {
			u.Name = *name
		}
		u.EmployeeNo = blankToNil(u.EmployeeNo)
		u.CreatedAt, u.UpdatedAt = now, now
		return u, nil
	})
}

func (s *PGSource) OrgUnits(ctx context.Context) ([]orgtypes.OrgUnit, error) {
	now := s.stamp()
	return collect(ctx, s.db, "org_units", `
SELECT id, name, parent_id, type, active
FROM org_units
ORDER BY id`, func(r pgx.Rows) (orgtypes.OrgUnit, error) {
		var o orgtypes.OrgUnit
		var orgType *string
		if err := r.Scan(&o.ID, &o.Name, &o.ParentID, &orgType, &o.Active); err != nil {
			return o, err
		}
		o.Type = orgtypes.OrgTypeDepartment
		if orgType != nil && *orgType != "" {
			o.Type = *orgType
		}
		o.CreatedAt, o.UpdatedAt = now, now
		return o, nil
	})
}

func (s *PGSource) Memberships(ctx context.Context) ([]orgtypes.Membership, error) {
	return collect(ctx, s.db, "user_org_memberships", `
SELECT user_id, org_id, is_primary, start_date, end_date
FROM user_org_memberships
ORDER BY user_id, start_date`, func(r pgx.Rows) (orgtypes.Membership, error) {
		var m orgtypes.Membership
		var start time.Time
		var end *time.Time
		if err := r.Scan(&m.UserID, &m.OrgID, &m.IsPrimary, &start, &end); err != nil {
			return m, err
		}
		m.StartDate = asof.Format(start)
		m.EndDate = dayPtr(end)
		return m, nil
	})
}

func (s *PGSource) ManagerEdges(ctx context.Context) ([]stafftypes.ManagerEdge, error) {
	return collect(ctx, s.db, "manager_edges", `
SELECT manager_id, subordinate_id, start_date, end_date, priority
FROM manager_edges
ORDER BY manager_id, subordinate_id, start_date`, func(r pgx.Rows) (stafftypes.ManagerEdge, error) {
		var e stafftypes.ManagerEdge
		var start time.Time
		var end *time.Time
		var priority *int32
		if err := r.Scan(&e.ManagerID, &e.SubordinateID, &start, &end, &priority); err != nil {
			return e, err
		}
		e.StartDate = asof.Format(start)
		e.EndDate = dayPtr(end)
		e.Priority = stafftypes.DefaultEdgePriority
		if priority != nil {
			e.Priority = int(*priority)
		}
		return e, nil
	})
}

func (s *PGSource) Roles(ctx context.Context) ([]iamtypes.Role, error) {
	now := s.stamp()
	return collect(ctx, s.db, "roles", `
SELECT id, code, name
FROM roles
ORDER BY id`, func(r pgx.Rows) (iamtypes.Role, error) {
		var role iamtypes.Role
		if err := r.Scan(&role.ID, &role.Code, &role.Name); err != nil {
			return role, err
		}
		role.CreatedAt, role.UpdatedAt = now, now
		return role, nil
	})
}

func (s *PGSource) RoleGrants(ctx context.Context) ([]iamtypes.RoleGrant, error) {
	now := s.stamp()
	return collect(ctx, s.db, "role_grants", `
SELECT id, grantee_user_id, role_id, domain_org_id, scope, start_date, end_date
FROM role_grants
ORDER BY id`, func(r pgx.Rows) (iamtypes.RoleGrant, error) {
		var g iamtypes.RoleGrant
		var scope string
		var start time.Time
		var end *time.Time
		if err := r.Scan(&g.ID, &g.GranteeUserID, &g.RoleID, &g.DomainOrgID, &scope, &start, &end); err != nil {
			return g, err
		}
		g.Scope = iamtypes.GrantScope(strings.ToLower(scope))
		g.StartDate = asof.Format(start)
		g.EndDate = dayPtr(end)
		g.CreatedAt, g.UpdatedAt = now, now
		return g, nil
	})
}

func (s *PGSource) WorkItems(ctx context.Context) ([]worktypes.WorkItem, error) {
	return collect(ctx, s.db, "work_items", `
SELECT id, creator_id, org_id, work_date, title, type, duration_minutes, tags, detail, created_at, updated_at
FROM work_items
ORDER BY id`, func(r pgx.Rows) (worktypes.WorkItem, error) {
		var w worktypes.WorkItem
		var workDate, createdAt, updatedAt time.Time
		var duration *int32
		var tags *string
		if err := r.Scan(&w.ID, &w.CreatorID, &w.OrgID, &workDate, &w.Title, &w.Type, &duration, &tags, &w.Detail, &createdAt, &updatedAt); err != nil {
			return w, err
		}
		w.WorkDate = asof.Format(workDate)
		if duration != nil {
			d := int(*duration)
			w.DurationMinutes = &d
		}
		w.Tags = SplitTags(tags)
		w.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		w.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
		return w, nil
	})
}

func (s *PGSource) AuditLogs(ctx context.Context) ([]iamtypes.AuditLog, error) {
	return collect(ctx, s.db, "audit_logs", `
SELECT id, actor_user_id, action, object_type, object_id, detail, created_at
FROM audit_logs
ORDER BY id`, func(r pgx.Rows) (iamtypes.AuditLog, error) {
		var l iamtypes.AuditLog
		var detail []byte
		var createdAt time.Time
		if err := r.Scan(&l.ID, &l.ActorUserID, &l.Action, &l.ObjectType, &l.ObjectID, &detail, &createdAt); err != nil {
			return l, err
		}
		if len(detail) > 0 && json.Valid(detail) {
			l.Detail = json.RawMessage(detail)
		}
		l.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		return l, nil
	})
}
