package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/worklog/modules/iam/domain/types"
)

var (
	ErrUserNotFound       = errors.New("user_not_found")
	ErrEmployeeNoConflict = errors.New("employee_no_conflict")
	ErrGrantNotFound      = errors.New("role_grant_not_found")
)

type UserStore interface {
	ListUsers(ctx context.Context) ([]types.User, error)
	CreateUser(ctx context.Context, user types.User) (types.User, error)
	UpdateUser(ctx context.Context, id int64, patch types.UserPatch) (types.User, error)
	ReplaceUsers(ctx context.Context, users []types.User) error
}

type RoleStore interface {
	ListRoles(ctx context.Context) ([]types.Role, error)
	// EnsureRole returns the role with code, creating it when missing.
	EnsureRole(ctx context.Context, code string, name string) (types.Role, error)
	ReplaceRoles(ctx context.Context, roles []types.Role) error
}

type GrantStore interface {
	ListGrants(ctx context.Context) ([]types.RoleGrant, error)
	AddGrant(ctx context.Context, grant types.RoleGrant) (types.RoleGrant, error)
	// UpdateGrant applies patch and then check, which may veto the result.
	UpdateGrant(ctx context.Context, id int64, patch types.RoleGrantPatch, check func(types.RoleGrant) error) (types.RoleGrant, error)
	DeleteGrant(ctx context.Context, id int64) error
	ReplaceGrants(ctx context.Context, grants []types.RoleGrant) error
}

type AuditStore interface {
	AppendAuditLog(ctx context.Context, entry types.AuditLog) (types.AuditLog, error)
	ListAuditLogs(ctx context.Context) ([]types.AuditLog, error)
	ReplaceAuditLogs(ctx context.Context, logs []types.AuditLog) error
}
