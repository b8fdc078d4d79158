package redisstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := NewClient(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test:"), mr
}

func TestStore_ConditionalWrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Get(ctx, "data/users.json")
	require.ErrorIs(t, err, objstore.ErrNotFound)

	v1, err := s.Put(ctx, "data/users.json", []byte(`{"n":1}`), objstore.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)
	_, err = s.Put(ctx, "data/users.json", []byte(`{"n":0}`), objstore.PutOptions{IfNoneMatch: true})
	require.ErrorIs(t, err, objstore.ErrPreconditionFailed)

	v2, err := s.Put(ctx, "data/users.json", []byte(`{"n":2}`), objstore.PutOptions{IfMatch: v1})
	require.NoError(t, err)
	_, err = s.Put(ctx, "data/users.json", []byte(`{"n":3}`), objstore.PutOptions{IfMatch: v1})
	require.ErrorIs(t, err, objstore.ErrPreconditionFailed)

	obj, err := s.Get(ctx, "data/users.json")
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, string(obj.Body))
	assert.Equal(t, v2, obj.Version)
}

func TestStore_RecreatedKeyGetsFreshVersion(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	v1, err := s.Put(ctx, "k", []byte("a"), objstore.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	v2, err := s.Put(ctx, "k", []byte("b"), objstore.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = s.Put(ctx, "k", []byte("c"), objstore.PutOptions{IfMatch: v1})
	require.ErrorIs(t, err, objstore.ErrPreconditionFailed)
}

func TestStore_ListPrefixPages(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.pageSize = 2

	for i := 1; i <= 3; i++ {
		_, err := s.Put(ctx, fmt.Sprintf("data/work_items/user/%d.json", i), []byte(`{}`), objstore.PutOptions{})
		require.NoError(t, err)
	}
	_, err := s.Put(ctx, "data/users.json", []byte(`{}`), objstore.PutOptions{})
	require.NoError(t, err)

	keys, err := objstore.ListAll(ctx, s, "data/work_items/user/")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/work_items/user/1.json", "data/work_items/user/2.json", "data/work_items/user/3.json"}, keys)
}

func TestStore_BackendFailurePropagates(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.SetError("LOADING")

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, objstore.ErrNotFound)

	_, err = s.Put(ctx, "k", []byte("v"), objstore.PutOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, objstore.ErrPreconditionFailed)
}

func TestNewClient_PingFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewClient(context.Background(), Config{Addr: addr})
	require.Error(t, err)
}

var _ redis.UniversalClient = (*redis.Client)(nil)
