package persistence

import (
	"context"
	"slices"

	"github.com/jacksonlee411/worklog/modules/staffing/domain/ports"
	"github.com/jacksonlee411/worklog/modules/staffing/domain/types"
	"github.com/jacksonlee411/worklog/pkg/docstore"
)

const ManagerEdgesCollection = "manager_edges"

type ManagerEdgeDocStore struct {
	edges docstore.Collection[types.ManagerEdge]
}

func NewManagerEdgeDocStore(s *docstore.Store) ports.ManagerEdgeStore {
	return &ManagerEdgeDocStore{edges: docstore.NewCollection[types.ManagerEdge](s, ManagerEdgesCollection)}
}

func (s *ManagerEdgeDocStore) ListManagerEdges(ctx context.Context) ([]types.ManagerEdge, error) {
	return s.edges.Items(ctx)
}

func (s *ManagerEdgeDocStore) AddManagerEdge(ctx context.Context, edge types.ManagerEdge) (bool, error) {
	added := false
	_, err := s.edges.Mutate(ctx, func(f *docstore.File[types.ManagerEdge]) error {
		added = false
		if slices.ContainsFunc(f.Items, sameKey(edge.ManagerID, edge.SubordinateID, edge.StartDate)) {
			return nil
		}
		f.Items = append(f.Items, edge)
		f.Meta.LastID = max(f.Meta.LastID, int64(len(f.Items)))
		added = true
		return nil
	})
	return added, err
}

func (s *ManagerEdgeDocStore) DeleteManagerEdge(ctx context.Context, managerID int64, subordinateID int64, startDate string) (bool, error) {
	removed := false
	_, err := s.edges.Mutate(ctx, func(f *docstore.File[types.ManagerEdge]) error {
		before := len(f.Items)
		f.Items = slices.DeleteFunc(f.Items, sameKey(managerID, subordinateID, startDate))
		removed = len(f.Items) < before
		return nil
	})
	return removed, err
}

func (s *ManagerEdgeDocStore) ReplaceManagerEdges(ctx context.Context, edges []types.ManagerEdge) error {
	return s.edges.Replace(ctx, edges, int64(len(edges)))
}

func sameKey(managerID, subordinateID int64, startDate string) func(types.ManagerEdge) bool {
	return func(e types.ManagerEdge) bool {
		return e.ManagerID == managerID && e.SubordinateID == subordinateID && e.StartDate == startDate
	}
}
