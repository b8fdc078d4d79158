package persistence

import (
	"context"
	"slices"
	"time"

	"github.com/jacksonlee411/worklog/modules/iam/domain/ports"
	"github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/pkg/docstore"
)

const (
	UsersCollection      = "users"
	RolesCollection      = "roles"
	RoleGrantsCollection = "role_grants"
	AuditLogsCollection  = "audit_logs"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

func timestamp() string { return nowUTC().Format(time.RFC3339) }

func maxID[T docstore.Identified](items []T) int64 {
	var id int64
	for _, it := range items {
		id = max(id, it.EntityID())
	}
	return id
}

func indexByID[T docstore.Identified](items []T, id int64) int {
	return slices.IndexFunc(items, func(it T) bool { return it.EntityID() == id })
}

type UserDocStore struct {
	users docstore.Collection[types.User]
}

func NewUserDocStore(s *docstore.Store) ports.UserStore {
	return &UserDocStore{users: docstore.NewCollection[types.User](s, UsersCollection)}
}

func (s *UserDocStore) ListUsers(ctx context.Context) ([]types.User, error) {
	return s.users.Items(ctx)
}

func (s *UserDocStore) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	var created types.User
	_, err := s.users.Mutate(ctx, func(f *docstore.File[types.User]) error {
		if employeeNoTaken(f.Items, user.EmployeeNo, 0) {
			return ports.ErrEmployeeNoConflict
		}
		created = user
		created.ID = f.NextID()
		created.CreatedAt = timestamp()
		created.UpdatedAt = created.CreatedAt
		f.Items = append(f.Items, created)
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return created, nil
}

func (s *UserDocStore) UpdateUser(ctx context.Context, id int64, patch types.UserPatch) (types.User, error) {
	var updated types.User
	_, err := s.users.Mutate(ctx, func(f *docstore.File[types.User]) error {
		i := indexByID(f.Items, id)
		if i < 0 {
			return ports.ErrUserNotFound
		}
		u := f.Items[i]
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.EmployeeNo != nil {
			u.EmployeeNo = optional(*patch.EmployeeNo)
			if employeeNoTaken(f.Items, u.EmployeeNo, id) {
				return ports.ErrEmployeeNoConflict
			}
		}
		if patch.Email != nil {
			u.Email = optional(*patch.Email)
		}
		if patch.Phone != nil {
			u.Phone = optional(*patch.Phone)
		}
		if patch.JobTitle != nil {
			u.JobTitle = optional(*patch.JobTitle)
		}
		if patch.Grade != nil {
			u.Grade = optional(*patch.Grade)
		}
		if patch.Active != nil {
			u.Active = *patch.Active
		}
		u.UpdatedAt = timestamp()
		f.Items[i] = u
		updated = u
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return updated, nil
}

func (s *UserDocStore) ReplaceUsers(ctx context.Context, users []types.User) error {
	return s.users.Replace(ctx, users, maxID(users))
}

func employeeNoTaken(users []types.User, employeeNo *string, self int64) bool {
	if employeeNo == nil {
		return false
	}
	return slices.ContainsFunc(users, func(u types.User) bool {
		return u.ID != self && u.EmployeeNo != nil && *u.EmployeeNo == *employeeNo
	})
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

type RoleDocStore struct {
	roles docstore.Collection[types.Role]
}

func NewRoleDocStore(s *docstore.Store) ports.RoleStore {
	return &RoleDocStore{roles: docstore.NewCollection[types.Role](s, RolesCollection)}
}

func (s *RoleDocStore) ListRoles(ctx context.Context) ([]types.Role, error) {
	return s.roles.Items(ctx)
}

func (s *RoleDocStore) EnsureRole(ctx context.Context, code string, name string) (types.Role, error) {
	var role types.Role
	_, err := s.roles.Mutate(ctx, func(f *docstore.File[types.Role]) error {
		if i := slices.IndexFunc(f.Items, func(r types.Role) bool { return r.Code == code }); i >= 0 {
			role = f.Items[i]
			return nil
		}
		if name == "" {
			name = code
		}
		now := timestamp()
		role = types.Role{ID: f.NextID(), Code: code, Name: name, CreatedAt: now, UpdatedAt: now}
		f.Items = append(f.Items, role)
		return nil
	})
	if err != nil {
		return types.Role{}, err
	}
	return role, nil
}

func (s *RoleDocStore) ReplaceRoles(ctx context.Context, roles []types.Role) error {
	return s.roles.Replace(ctx, roles, maxID(roles))
}

type GrantDocStore struct {
	grants docstore.Collection[types.RoleGrant]
}

func NewGrantDocStore(s *docstore.Store) ports.GrantStore {
	return &GrantDocStore{grants: docstore.NewCollection[types.RoleGrant](s, RoleGrantsCollection)}
}

func (s *GrantDocStore) ListGrants(ctx context.Context) ([]types.RoleGrant, error) {
	return s.grants.Items(ctx)
}

func (s *GrantDocStore) AddGrant(ctx context.Context, grant types.RoleGrant) (types.RoleGrant, error) {
	var created types.RoleGrant
	_, err := s.grants.Mutate(ctx, func(f *docstore.File[types.RoleGrant]) error {
		created = grant
		created.ID = f.NextID()
		created.CreatedAt = timestamp()
		created.UpdatedAt = created.CreatedAt
		f.Items = append(f.Items, created)
		return nil
	})
	if err != nil {
		return types.RoleGrant{}, err
	}
	return created, nil
}

func (s *GrantDocStore) UpdateGrant(ctx context.Context, id int64, patch types.RoleGrantPatch, check func(types.RoleGrant) error) (types.RoleGrant, error) {
	var updated types.RoleGrant
	_, err := s.grants.Mutate(ctx, func(f *docstore.File[types.RoleGrant]) error {
		i := indexByID(f.Items, id)
		if i < 0 {
			return ports.ErrGrantNotFound
		}
		g := f.Items[i]
		if patch.RoleID != nil {
			g.RoleID = *patch.RoleID
		}
		if patch.DomainOrgID != nil {
			g.DomainOrgID = *patch.DomainOrgID
		}
		if patch.Scope != nil {
			g.Scope = *patch.Scope
		}
		if patch.StartDate != nil {
			g.StartDate = *patch.StartDate
		}
		if patch.ClearEndDate {
			g.EndDate = nil
		} else if patch.EndDate != nil {
			end := *patch.EndDate
			g.EndDate = &end
		}
		if check != nil {
			if err := check(g); err != nil {
				return err
			}
		}
		g.UpdatedAt = timestamp()
		f.Items[i] = g
		updated = g
		return nil
	})
	if err != nil {
		return types.RoleGrant{}, err
	}
	return updated, nil
}

func (s *GrantDocStore) DeleteGrant(ctx context.Context, id int64) error {
	_, err := s.grants.Mutate(ctx, func(f *docstore.File[types.RoleGrant]) error {
		i := indexByID(f.Items, id)
		if i < 0 {
			return ports.ErrGrantNotFound
		}
		f.Items = slices.Delete(f.Items, i, i+1)
		return nil
	})
	return err
}

func (s *GrantDocStore) ReplaceGrants(ctx context.Context, grants []types.RoleGrant) error {
	return s.grants.Replace(ctx, grants, maxID(grants))
}

type AuditDocStore struct {
	logs docstore.Collection[types.AuditLog]
}

func NewAuditDocStore(s *docstore.Store) ports.AuditStore {
	return &AuditDocStore{logs: docstore.NewCollection[types.AuditLog](s, AuditLogsCollection)}
}

func (s *AuditDocStore) AppendAuditLog(ctx context.Context, entry types.AuditLog) (types.AuditLog, error) {
	var created types.AuditLog
	_, err := s.logs.Mutate(ctx, func(f *docstore.File[types.AuditLog]) error {
		created = entry
		created.ID = f.NextID()
		if created.CreatedAt == "" {
			created.CreatedAt = timestamp()
		}
		f.Items = append(f.Items, created)
		return nil
	})
	if err != nil {
		return types.AuditLog{}, err
	}
	return created, nil
}

func (s *AuditDocStore) ListAuditLogs(ctx context.Context) ([]types.AuditLog, error) {
	return s.logs.Items(ctx)
}

func (s *AuditDocStore) ReplaceAuditLogs(ctx context.Context, logs []types.AuditLog) error {
	return s.logs.Replace(ctx, logs, maxID(logs))
}
