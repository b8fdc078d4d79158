// Package natskv implements objstore.Backend on a NATS JetStream key-value
// bucket. The entry revision is the version tag; Create and Update provide
// the conditional writes.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

var _ objstore.Backend = (*Store)(nil)

type Store struct {
	kv       jetstream.KeyValue
	pageSize int
}

func New(kv jetstream.KeyValue) *Store {
	return &Store{kv: kv, pageSize: 1000}
}

// Open binds to bucket, creating it when missing.
func Open(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "worklog documents",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("natskv: bind bucket %s: %w", bucket, err)
	}
	return New(kv), nil
}

func (s *Store) Get(ctx context.Context, key string) (objstore.Object, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return objstore.Object{}, objstore.ErrNotFound
	}
	if err != nil {
		return objstore.Object{}, fmt.Errorf("natskv: get %s: %w", key, err)
	}
	return objstore.Object{Body: entry.Value(), Version: strconv.FormatUint(entry.Revision(), 10)}, nil
}

func (s *Store) Put(ctx context.Context, key string, body []byte, opts objstore.PutOptions) (string, error) {
	var (
		rev uint64
		err error
	)
	switch {
	case opts.IfNoneMatch:
		rev, err = s.kv.Create(ctx, key, body)
	case opts.IfMatch != "":
		expected, perr := strconv.ParseUint(opts.IfMatch, 10, 64)
		if perr != nil {
			return "", objstore.ErrPreconditionFailed
		}
		rev, err = s.kv.Update(ctx, key, body, expected)
	default:
		rev, err = s.kv.Put(ctx, key, body)
	}
	if err != nil {
		if isWrongRevision(err) {
			return "", objstore.ErrPreconditionFailed
		}
		return "", fmt.Errorf("natskv: put %s: %w", key, err)
	}
	return strconv.FormatUint(rev, 10), nil
}

func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	apiErr, ok := errors.AsType[*jetstream.APIError](err)
	return ok && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("natskv: delete %s: %w", key, err)
	}
	return nil
}

// List enumerates every live key in the bucket; KV subjects cannot express
// a "/" prefix filter, so prefix matching and paging happen client-side.
func (s *Store) List(ctx context.Context, prefix string, cursor string) (objstore.Page, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return objstore.Page{}, nil
		}
		return objstore.Page{}, fmt.Errorf("natskv: list: %w", err)
	}
	defer lister.Stop()

	var keys []string
	for k := range lister.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return objstore.PageFrom(objstore.AfterCursor(keys, cursor), s.pageSize), nil
}
