package objstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ConditionalPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	v1, err := m.Put(ctx, "a", []byte("one"), PutOptions{IfNoneMatch: true})
	require.NoError(t, err)

	_, err = m.Put(ctx, "a", []byte("dup"), PutOptions{IfNoneMatch: true})
	require.ErrorIs(t, err, ErrPreconditionFailed)

	v2, err := m.Put(ctx, "a", []byte("two"), PutOptions{IfMatch: v1})
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = m.Put(ctx, "a", []byte("stale"), PutOptions{IfMatch: v1})
	require.ErrorIs(t, err, ErrPreconditionFailed)

	_, err = m.Put(ctx, "missing", []byte("x"), PutOptions{IfMatch: v2})
	require.ErrorIs(t, err, ErrPreconditionFailed)

	obj, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "two", string(obj.Body))
	assert.Equal(t, v2, obj.Version)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Put(ctx, "k", []byte("abc"), PutOptions{})
	require.NoError(t, err)

	obj, err := m.Get(ctx, "k")
	require.NoError(t, err)
	obj.Body[0] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again.Body))
}

func TestMemory_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Put(ctx, "k", []byte("v"), PutOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAll_FollowsPages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory().WithPageSize(3)
	for i := 0; i < 10; i++ {
		_, err := m.Put(ctx, fmt.Sprintf("work_items/user/%02d", i), []byte("{}"), PutOptions{})
		require.NoError(t, err)
	}
	_, err := m.Put(ctx, "users", []byte("{}"), PutOptions{})
	require.NoError(t, err)

	first, err := m.List(ctx, "work_items/user/", "")
	require.NoError(t, err)
	assert.Len(t, first.Keys, 3)
	assert.Equal(t, "work_items/user/02", first.NextCursor)

	keys, err := ListAll(ctx, m, "work_items/user/")
	require.NoError(t, err)
	assert.Len(t, keys, 10)
	assert.Equal(t, "work_items/user/00", keys[0])
	assert.Equal(t, "work_items/user/09", keys[9])
}

type stuckLister struct{ Backend }

func (stuckLister) List(context.Context, string, string) (Page, error) {
	return Page{Keys: []string{"a"}, NextCursor: "a"}, nil
}

func TestListAll_StuckCursor(t *testing.T) {
	_, err := ListAll(context.Background(), stuckLister{}, "")
	require.Error(t, err)
}

func TestAfterCursor(t *testing.T) {
	keys := []string{"a", "b", "d"}
	assert.Equal(t, []string{"a", "b", "d"}, AfterCursor(keys, ""))
	assert.Equal(t, []string{"d"}, AfterCursor(keys, "b"))
	assert.Equal(t, []string{"d"}, AfterCursor(keys, "c"))
	assert.Empty(t, AfterCursor(keys, "z"))
}
