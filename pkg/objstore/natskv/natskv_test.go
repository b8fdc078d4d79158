package natskv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

func startJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	return js
}

func TestStore_RevisionCAS(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, startJetStream(t), "worklog_test")
	require.NoError(t, err)

	_, err = s.Get(ctx, "data/users.json")
	require.ErrorIs(t, err, objstore.ErrNotFound)

	v1, err := s.Put(ctx, "data/users.json", []byte(`{"n":1}`), objstore.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)

	_, err = s.Put(ctx, "data/users.json", []byte(`{"n":9}`), objstore.PutOptions{IfNoneMatch: true})
	require.ErrorIs(t, err, objstore.ErrPreconditionFailed)

	v2, err := s.Put(ctx, "data/users.json", []byte(`{"n":2}`), objstore.PutOptions{IfMatch: v1})
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = s.Put(ctx, "data/users.json", []byte(`{"n":3}`), objstore.PutOptions{IfMatch: v1})
	require.ErrorIs(t, err, objstore.ErrPreconditionFailed)

	obj, err := s.Get(ctx, "data/users.json")
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, string(obj.Body))
	assert.Equal(t, v2, obj.Version)
}

func TestStore_DeleteThenRecreate(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, startJetStream(t), "worklog_test")
	require.NoError(t, err)

	_, err = s.Put(ctx, "data/work_items/user/1.json", []byte(`{}`), objstore.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "data/work_items/user/1.json"))

	_, err = s.Get(ctx, "data/work_items/user/1.json")
	require.ErrorIs(t, err, objstore.ErrNotFound)

	_, err = s.Put(ctx, "data/work_items/user/1.json", []byte(`{}`), objstore.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)
}

func TestStore_ListPrefixAndPages(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, startJetStream(t), "worklog_test")
	require.NoError(t, err)
	s.pageSize = 2

	empty, err := s.List(ctx, "data/", "")
	require.NoError(t, err)
	assert.Empty(t, empty.Keys)

	for i := 1; i <= 5; i++ {
		_, err := s.Put(ctx, fmt.Sprintf("data/work_items/user/%d.json", i), []byte(`{}`), objstore.PutOptions{})
		require.NoError(t, err)
	}
	_, err = s.Put(ctx, "data/users.json", []byte(`{}`), objstore.PutOptions{})
	require.NoError(t, err)

	keys, err := objstore.ListAll(ctx, s, "data/work_items/user/")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
}
