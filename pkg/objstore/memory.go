package objstore

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
)

var _ Backend = (*Memory)(nil)

const defaultMemoryPageSize = 1000

type memoryEntry struct {
	body    []byte
	version uint64
}

// Memory is a process-local Backend. It is used by tests and by the
// in-memory storage driver.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	seq      uint64
	pageSize int
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), pageSize: defaultMemoryPageSize}
}

// WithPageSize caps List pages, which lets tests exercise pagination.
func (m *Memory) WithPageSize(n int) *Memory {
	if n > 0 {
		m.pageSize = n
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return Object{Body: slices.Clone(e.body), Version: strconv.FormatUint(e.version, 10)}, nil
}

func (m *Memory) Put(_ context.Context, key string, body []byte, opts PutOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.entries[key]
	if opts.IfNoneMatch && exists {
		return "", ErrPreconditionFailed
	}
	if opts.IfMatch != "" && (!exists || strconv.FormatUint(cur.version, 10) != opts.IfMatch) {
		return "", ErrPreconditionFailed
	}
	m.seq++
	m.entries[key] = memoryEntry{body: slices.Clone(body), version: m.seq}
	return strconv.FormatUint(m.seq, 10), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// List pages through keys in lexical order; the cursor is the last key returned.
func (m *Memory) List(_ context.Context, prefix string, cursor string) (Page, error) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) && k > cursor {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()

	slices.Sort(keys)
	return PageFrom(keys, m.pageSize), nil
}

// PageFrom cuts a sorted key slice down to one page, setting NextCursor when
// more keys remain. Backends that can only enumerate everything use it.
func PageFrom(sorted []string, size int) Page {
	if size <= 0 || len(sorted) <= size {
		return Page{Keys: sorted}
	}
	page := sorted[:size]
	return Page{Keys: page, NextCursor: page[len(page)-1]}
}

// AfterCursor drops keys that are lexically <= cursor from a sorted slice.
func AfterCursor(sorted []string, cursor string) []string {
	if cursor == "" {
		return sorted
	}
	i, found := slices.BinarySearch(sorted, cursor)
	if found {
		i++
	}
	return sorted[i:]
}
