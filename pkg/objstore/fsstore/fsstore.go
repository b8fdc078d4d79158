// Package fsstore keeps documents as files under a root directory. It backs
// the single-instance local deployment; conditional writes are serialized
// by an in-process lock, so one directory must not be shared by several
// processes.
package fsstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

var _ objstore.Backend = (*Store)(nil)

const defaultPageSize = 1000

type Store struct {
	root     string
	pageSize int
	mu       sync.Mutex
}

func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("fsstore: root directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: create root: %w", err)
	}
	return &Store{root: root, pageSize: defaultPageSize}, nil
}

func (s *Store) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", fmt.Errorf("fsstore: invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func version(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:16])
}

func (s *Store) Get(_ context.Context, key string) (objstore.Object, error) {
	p, err := s.path(key)
	if err != nil {
		return objstore.Object{}, err
	}
	body, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return objstore.Object{}, objstore.ErrNotFound
	}
	if err != nil {
		return objstore.Object{}, err
	}
	return objstore.Object{Body: body, Version: version(body)}, nil
}

func (s *Store) Put(_ context.Context, key string, body []byte, opts objstore.PutOptions) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.IfNoneMatch || opts.IfMatch != "" {
		cur, err := os.ReadFile(p)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if opts.IfNoneMatch && exists {
			return "", objstore.ErrPreconditionFailed
		}
		if opts.IfMatch != "" && (!exists || version(cur) != opts.IfMatch) {
			return "", objstore.ErrPreconditionFailed
		}
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", err
	}
	return version(body), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) List(_ context.Context, prefix string, cursor string) (objstore.Page, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return objstore.Page{}, err
	}
	slices.Sort(keys)
	return objstore.PageFrom(objstore.AfterCursor(keys, cursor), s.pageSize), nil
}
