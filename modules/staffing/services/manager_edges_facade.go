package services

import (
	"cmp"
	"context"
	"slices"

	"github.com/jacksonlee411/worklog/modules/staffing/domain/ports"
	"github.com/jacksonlee411/worklog/modules/staffing/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

const (
	errEdgeInvalidArgument = "MANAGER_EDGE_INVALID_ARGUMENT"
	errEdgeSelf            = "MANAGER_EDGE_SELF"
	errEdgeStartDate       = "MANAGER_EDGE_START_DATE_INVALID"
	errEdgeEndDate         = "MANAGER_EDGE_END_DATE_INVALID"
	errEdgeExists          = "MANAGER_EDGE_EXISTS"
	errEdgeNotFound        = "MANAGER_EDGE_NOT_FOUND"
)

type AddManagerEdgeRequest struct {
	ManagerID     int64
	SubordinateID int64
	StartDate     string
	EndDate       *string
	Priority      *int
}

type ManagerEdgesFacade struct {
	store ports.ManagerEdgeStore
}

func NewManagerEdgesFacade(store ports.ManagerEdgeStore) ManagerEdgesFacade {
	return ManagerEdgesFacade{store: store}
}

func (f ManagerEdgesFacade) AddManagerEdge(ctx context.Context, req AddManagerEdgeRequest) (types.ManagerEdge, error) {
	if req.ManagerID <= 0 || req.SubordinateID <= 0 {
		return types.ManagerEdge{}, httperr.NewBadRequest(errEdgeInvalidArgument)
	}
	if req.ManagerID == req.SubordinateID {
		return types.ManagerEdge{}, httperr.NewBadRequest(errEdgeSelf)
	}
	start, err := asof.Normalize(req.StartDate)
	if err != nil {
		return types.ManagerEdge{}, httperr.NewBadRequest(errEdgeStartDate)
	}
	end, err := asof.NormalizePtr(req.EndDate)
	if err != nil || (end != nil && *end < start) {
		return types.ManagerEdge{}, httperr.NewBadRequest(errEdgeEndDate)
	}
	edge := types.ManagerEdge{
		ManagerID:     req.ManagerID,
		SubordinateID: req.SubordinateID,
		StartDate:     start,
		EndDate:       end,
		Priority:      types.DefaultEdgePriority,
	}
	if req.Priority != nil {
		edge.Priority = *req.Priority
	}
	added, err := f.store.AddManagerEdge(ctx, edge)
	if err != nil {
		return types.ManagerEdge{}, err
	}
	if !added {
		return types.ManagerEdge{}, httperr.NewConflict(errEdgeExists)
	}
	return edge, nil
}

func (f ManagerEdgesFacade) DeleteManagerEdge(ctx context.Context, managerID int64, subordinateID int64, startDate string) error {
	start, err := asof.Normalize(startDate)
	if err != nil {
		return httperr.NewBadRequest(errEdgeStartDate)
	}
	removed, err := f.store.DeleteManagerEdge(ctx, managerID, subordinateID, start)
	if err != nil {
		return err
	}
	if !removed {
		return httperr.NewNotFound(errEdgeNotFound)
	}
	return nil
}

// ListManagerEdges returns edges ordered by (manager, subordinate, start).
// Zero filter fields match everything.
func (f ManagerEdgesFacade) ListManagerEdges(ctx context.Context, filter types.ManagerEdgeFilter) ([]types.ManagerEdge, error) {
	edges, err := f.store.ListManagerEdges(ctx)
	if err != nil {
		return nil, err
	}
	edges = slices.DeleteFunc(edges, func(e types.ManagerEdge) bool {
		return (filter.ManagerID > 0 && e.ManagerID != filter.ManagerID) ||
			(filter.SubordinateID > 0 && e.SubordinateID != filter.SubordinateID)
	})
	slices.SortFunc(edges, func(a, b types.ManagerEdge) int {
		return cmp.Or(
			cmp.Compare(a.ManagerID, b.ManagerID),
			cmp.Compare(a.SubordinateID, b.SubordinateID),
			cmp.Compare(a.StartDate, b.StartDate),
		)
	})
	return edges, nil
}
