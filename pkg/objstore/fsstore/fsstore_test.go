package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

func TestStore_CASRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	_, err = s.Get(ctx, "data/users.json")
	require.ErrorIs(t, err, objstore.ErrNotFound)

	v1, err := s.Put(ctx, "data/users.json", []byte(`{"a":1}`), objstore.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)
	_, err = s.Put(ctx, "data/users.json", []byte(`{"a":2}`), objstore.PutOptions{IfNoneMatch: true})
	require.ErrorIs(t, err, objstore.ErrPreconditionFailed)

	v2, err := s.Put(ctx, "data/users.json", []byte(`{"a":2}`), objstore.PutOptions{IfMatch: v1})
	require.NoError(t, err)
	_, err = s.Put(ctx, "data/users.json", []byte(`{"a":3}`), objstore.PutOptions{IfMatch: v1})
	require.ErrorIs(t, err, objstore.ErrPreconditionFailed)

	obj, err := s.Get(ctx, "data/users.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(obj.Body))
	assert.Equal(t, v2, obj.Version)

	onDisk, err := os.ReadFile(filepath.Join(root, "data", "users.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(onDisk))
}

func TestStore_RejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../x.json", "data/../../x.json", "", "/abs.json", "a//b.json"} {
		_, err := s.Put(context.Background(), key, []byte("{}"), objstore.PutOptions{})
		assert.Error(t, err, key)
	}
}

func TestStore_ListPagesAndDelete(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	s.pageSize = 2

	for i := 1; i <= 5; i++ {
		_, err := s.Put(ctx, fmt.Sprintf("data/work_items/user/%d.json", i), []byte("{}"), objstore.PutOptions{})
		require.NoError(t, err)
	}
	_, err = s.Put(ctx, "data/users.json", []byte("{}"), objstore.PutOptions{})
	require.NoError(t, err)

	keys, err := objstore.ListAll(ctx, s, "data/work_items/user/")
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	require.NoError(t, s.Delete(ctx, "data/work_items/user/3.json"))
	require.NoError(t, s.Delete(ctx, "data/work_items/user/3.json"))
	keys, err = objstore.ListAll(ctx, s, "data/work_items/user/")
	require.NoError(t, err)
	assert.NotContains(t, keys, "data/work_items/user/3.json")
	assert.Len(t, keys, 4)
}
