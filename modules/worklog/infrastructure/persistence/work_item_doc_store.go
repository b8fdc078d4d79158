package persistence

import (
	"context"
	"slices"
	"time"

	"github.com/jacksonlee411/worklog/modules/worklog/domain/ports"
	"github.com/jacksonlee411/worklog/modules/worklog/domain/types"
	"github.com/jacksonlee411/worklog/pkg/docstore"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

type WorkItemDocStore struct {
	store *docstore.Store
}

func NewWorkItemDocStore(s *docstore.Store) ports.WorkItemStore {
	return &WorkItemDocStore{store: s}
}

func (s *WorkItemDocStore) shard(userID int64) docstore.Collection[types.WorkItem] {
	return docstore.NewCollection[types.WorkItem](s.store, docstore.UserShardName(userID))
}

// AddWorkItem takes the id from the shared counter first and then appends to
// the shard. The two writes are separate CAS cycles; an id reserved by a
// failed append is skipped, never reused.
func (s *WorkItemDocStore) AddWorkItem(ctx context.Context, item types.WorkItem) (types.WorkItem, error) {
	id, err := s.store.NextSequence(ctx, docstore.ShardMetaName)
	if err != nil {
		return types.WorkItem{}, err
	}
	now := nowUTC().Format(time.RFC3339)
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Tags == nil {
		item.Tags = []string{}
	}
	_, err = s.shard(item.CreatorID).Mutate(ctx, func(f *docstore.File[types.WorkItem]) error {
		f.Items = append(f.Items, item)
		return nil
	})
	if err != nil {
		return types.WorkItem{}, err
	}
	return item, nil
}

func (s *WorkItemDocStore) RemoveWorkItem(ctx context.Context, userID int64, id int64) (bool, error) {
	removed := false
	_, err := s.shard(userID).Mutate(ctx, func(f *docstore.File[types.WorkItem]) error {
		before := len(f.Items)
		f.Items = slices.DeleteFunc(f.Items, func(w types.WorkItem) bool { return w.ID == id })
		removed = len(f.Items) < before
		return nil
	})
	return removed, err
}

func (s *WorkItemDocStore) ListUserWorkItems(ctx context.Context, userID int64) ([]types.WorkItem, error) {
	return s.shard(userID).Items(ctx)
}

func (s *WorkItemDocStore) ReplaceUserWorkItems(ctx context.Context, userID int64, items []types.WorkItem) error {
	var lastID int64
	for _, it := range items {
		lastID = max(lastID, it.ID)
	}
	return s.shard(userID).Replace(ctx, items, lastID)
}

func (s *WorkItemDocStore) ShardUserIDs(ctx context.Context) ([]int64, error) {
	return s.store.UserShards(ctx)
}

func (s *WorkItemDocStore) DeleteShard(ctx context.Context, userID int64) error {
	return s.store.Delete(ctx, docstore.UserShardName(userID))
}

func (s *WorkItemDocStore) RaiseLastID(ctx context.Context, id int64) error {
	return s.store.RaiseSequence(ctx, docstore.ShardMetaName, id)
}
