package ports

import (
	"context"

	"github.com/jacksonlee411/worklog/modules/worklog/domain/types"
)

// WorkItemStore keeps one shard per creator. Ids are global across shards.
type WorkItemStore interface {
	// AddWorkItem reserves an id and appends item to its creator's shard.
	AddWorkItem(ctx context.Context, item types.WorkItem) (types.WorkItem, error)
	RemoveWorkItem(ctx context.Context, userID int64, id int64) (bool, error)
	ListUserWorkItems(ctx context.Context, userID int64) ([]types.WorkItem, error)
	ReplaceUserWorkItems(ctx context.Context, userID int64, items []types.WorkItem) error
	ShardUserIDs(ctx context.Context) ([]int64, error)
	DeleteShard(ctx context.Context, userID int64) error
	// RaiseLastID moves the global id counter up to at least id.
	RaiseLastID(ctx context.Context, id int64) error
}
