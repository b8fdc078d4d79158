// Package migrate bulk-loads the relational system of record into the
// document store and keeps the per-user work item shards consistent with
// the user table.
package migrate

import (
	"context"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	orgtypes "github.com/jacksonlee411/worklog/modules/orgunit/domain/types"
	stafftypes "github.com/jacksonlee411/worklog/modules/staffing/domain/types"
	worktypes "github.com/jacksonlee411/worklog/modules/worklog/domain/types"
)

// Source yields every row of one collection, already in document form.
type Source interface {
	Users(ctx context.Context) ([]iamtypes.User, error)
	OrgUnits(ctx context.Context) ([]orgtypes.OrgUnit, error)
	Memberships(ctx context.Context) ([]orgtypes.Membership, error)
	ManagerEdges(ctx context.Context) ([]stafftypes.ManagerEdge, error)
	Roles(ctx context.Context) ([]iamtypes.Role, error)
	RoleGrants(ctx context.Context) ([]iamtypes.RoleGrant, error)
	WorkItems(ctx context.Context) ([]worktypes.WorkItem, error)
	AuditLogs(ctx context.Context) ([]iamtypes.AuditLog, error)
}

type dataset struct {
	users        []iamtypes.User
	orgUnits     []orgtypes.OrgUnit
	memberships  []orgtypes.Membership
	managerEdges []stafftypes.ManagerEdge
	roles        []iamtypes.Role
	roleGrants   []iamtypes.RoleGrant
	workItems    []worktypes.WorkItem
	auditLogs    []iamtypes.AuditLog
}
