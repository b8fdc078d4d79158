package ports

import (
	"context"

	"github.com/jacksonlee411/worklog/modules/staffing/domain/types"
)

type ManagerEdgeStore interface {
	ListManagerEdges(ctx context.Context) ([]types.ManagerEdge, error)
	// AddManagerEdge reports false when an edge with the same manager,
	// subordinate and start date already exists.
	AddManagerEdge(ctx context.Context, edge types.ManagerEdge) (bool, error)
	DeleteManagerEdge(ctx context.Context, managerID int64, subordinateID int64, startDate string) (bool, error)
	ReplaceManagerEdges(ctx context.Context, edges []types.ManagerEdge) error
}
