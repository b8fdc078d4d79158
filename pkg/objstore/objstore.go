// Package objstore is the narrow key/value contract the document store
// persists through. Every backend exposes an opaque version tag per key and
// honours conditional writes against it.
package objstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("objstore: not found")
	ErrPreconditionFailed = errors.New("objstore: precondition failed")
)

type Object struct {
	Body    []byte
	Version string
}

// PutOptions conditions a write. The zero value writes unconditionally.
type PutOptions struct {
	// IfMatch, when set, requires the stored version to equal it.
	IfMatch string
	// IfNoneMatch requires the key to be absent.
	IfNoneMatch bool
}

// Page is one slice of a listing. NextCursor is empty on the last page.
type Page struct {
	Keys       []string
	NextCursor string
}

type Backend interface {
	Get(ctx context.Context, key string) (Object, error)
	Put(ctx context.Context, key string, body []byte, opts PutOptions) (version string, err error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, cursor string) (Page, error)
}

// ListAll follows cursors until the listing is exhausted.
func ListAll(ctx context.Context, b Backend, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor string
	)
	for {
		page, err := b.List(ctx, prefix, cursor)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page.Keys...)
		if page.NextCursor == "" {
			return keys, nil
		}
		if page.NextCursor == cursor {
			return nil, errors.New("objstore: listing cursor did not advance")
		}
		cursor = page.NextCursor
	}
}
