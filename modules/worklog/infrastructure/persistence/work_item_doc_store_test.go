package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/worklog/modules/worklog/domain/types"
	"github.com/jacksonlee411/worklog/pkg/docstore"
	"github.com/jacksonlee411/worklog/pkg/objstore"
)

func newDocStore(t *testing.T) *docstore.Store {
	t.Helper()
	orig := nowUTC
	nowUTC = func() time.Time { return time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { nowUTC = orig })
	return docstore.New(objstore.NewMemory(), docstore.WithRetry(docstore.DefaultMaxAttempts, 0))
}

func TestWorkItemDocStore_IDsAreGlobalAcrossShards(t *testing.T) {
	ctx := context.Background()
	store := NewWorkItemDocStore(newDocStore(t))

	a, err := store.AddWorkItem(ctx, types.WorkItem{CreatorID: 1, OrgID: 2, WorkDate: "2024-06-03", Title: "a", Type: types.WorkItemTypeDone})
	require.NoError(t, err)
	b, err := store.AddWorkItem(ctx, types.WorkItem{CreatorID: 2, OrgID: 2, WorkDate: "2024-06-03", Title: "b", Type: types.WorkItemTypeDone})
	require.NoError(t, err)
	c, err := store.AddWorkItem(ctx, types.WorkItem{CreatorID: 1, OrgID: 2, WorkDate: "2024-06-04", Title: "c", Type: types.WorkItemTypeTemp})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, []int64{a.ID, b.ID, c.ID})
	assert.Equal(t, "2024-06-03T09:30:00Z", a.CreatedAt)
	assert.NotNil(t, a.Tags)

	mine, err := store.ListUserWorkItems(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	shards, err := store.ShardUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, shards)
}

func TestWorkItemDocStore_RemoveReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewWorkItemDocStore(newDocStore(t))

	item, err := store.AddWorkItem(ctx, types.WorkItem{CreatorID: 7, WorkDate: "2024-06-03", Title: "x", Type: types.WorkItemTypeDone})
	require.NoError(t, err)

	removed, err := store.RemoveWorkItem(ctx, 8, item.ID)
	require.NoError(t, err)
	assert.False(t, removed, "other users' shards are untouched")

	removed, err = store.RemoveWorkItem(ctx, 7, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, store.ReplaceUserWorkItems(ctx, 7, []types.WorkItem{
		{ID: 40, CreatorID: 7, WorkDate: "2024-05-01", Title: "imported", Type: types.WorkItemTypeDone, Tags: []string{}},
	}))
	require.NoError(t, store.RaiseLastID(ctx, 40))

	next, err := store.AddWorkItem(ctx, types.WorkItem{CreatorID: 9, WorkDate: "2024-06-03", Title: "y", Type: types.WorkItemTypeDone})
	require.NoError(t, err)
	assert.Equal(t, int64(41), next.ID)

	require.NoError(t, store.DeleteShard(ctx, 7))
	shards, err := store.ShardUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, shards)

	gone, err := store.ListUserWorkItems(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, gone)
}
