// Package docstore keeps JSON collection documents in an objstore.Backend
// and updates them with optimistic compare-and-swap writes.
//
// Every update is a load, mutate, conditional-write cycle. When another
// writer got there first the cycle restarts from a fresh read, up to a
// fixed attempt budget. Reads may be served from a per-process cache of raw
// bytes; callers always receive freshly decoded values, never cached state.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 10 * time.Millisecond
	DefaultPrefix         = "data/"

	keySuffix = ".json"
)

// ErrConcurrentUpdate means the attempt budget ran out while other writers
// kept winning. Callers must surface it as a failure.
var ErrConcurrentUpdate = errors.New("docstore: concurrent update failed")

type ConflictError struct {
	Name     string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("docstore: concurrent update failed for %q after %d attempts", e.Name, e.Attempts)
}

func (e *ConflictError) Unwrap() error { return ErrConcurrentUpdate }

type cacheEntry struct {
	body     []byte
	version  string
	exists   bool
	loadedAt time.Time
}

// Snapshot is a raw document as last seen. Body is nil when the document
// does not exist yet.
type Snapshot struct {
	Body    []byte
	Version string
	Exists  bool
}

type Store struct {
	backend objstore.Backend
	log     *zap.Logger
	metrics *Metrics

	prefix         string
	maxAttempts    int
	initialBackoff time.Duration
	cacheTTL       time.Duration
	now            func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithPrefix sets the key prefix every document name is stored under.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithRetry sets the attempt budget and the first backoff interval. An
// initial interval of zero retries immediately.
func WithRetry(maxAttempts int, initial time.Duration) Option {
	return func(s *Store) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if initial >= 0 {
			s.initialBackoff = initial
		}
	}
}

// WithCacheTTL bounds how long a cached document is trusted. Zero or less
// keeps entries until a write or a conflict replaces them.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.cacheTTL = ttl }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(backend objstore.Backend, opts ...Option) *Store {
	s := &Store{
		backend:        backend,
		log:            zap.NewNop(),
		prefix:         DefaultPrefix,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		now:            time.Now,
		cache:          make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key maps a document name ("users", "work_items/user/7") to its backend key.
func (s *Store) Key(name string) string {
	return s.prefix + name + keySuffix
}

func (s *Store) nameFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, s.prefix) || !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), keySuffix), true
}

// Load returns the current raw document, from cache when possible.
func (s *Store) Load(ctx context.Context, name string) (Snapshot, error) {
	e, err := s.load(ctx, s.Key(name))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Body: slices.Clone(e.body), Version: e.version, Exists: e.exists}, nil
}

func (s *Store) load(ctx context.Context, key string) (cacheEntry, error) {
	e, _, err := s.lookup(ctx, key)
	return e, err
}

// lookup is load that also reports whether the entry came from the cache.
func (s *Store) lookup(ctx context.Context, key string) (cacheEntry, bool, error) {
	s.mu.RLock()
	e, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && (s.cacheTTL <= 0 || s.now().Sub(e.loadedAt) < s.cacheTTL) {
		s.metrics.cache(true)
		return e, true, nil
	}
	s.metrics.cache(false)
	e, err := s.fetch(ctx, key)
	return e, false, err
}

func (s *Store) fetch(ctx context.Context, key string) (cacheEntry, error) {
	var e cacheEntry
	obj, err := s.backend.Get(ctx, key)
	switch {
	case errors.Is(err, objstore.ErrNotFound):
		e = cacheEntry{loadedAt: s.now()}
	case err != nil:
		return cacheEntry{}, err
	default:
		e = cacheEntry{body: obj.Body, version: obj.Version, exists: true, loadedAt: s.now()}
	}
	s.mu.Lock()
	s.cache[key] = e
	s.mu.Unlock()
	return e, nil
}

func (s *Store) remember(key string, body []byte, version string) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{body: body, version: version, exists: true, loadedAt: s.now()}
	s.mu.Unlock()
}

// Invalidate drops the cached copy of name.
func (s *Store) Invalidate(name string) {
	s.invalidate(s.Key(name))
}

func (s *Store) invalidate(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

func (s *Store) newBackOff() backoff.BackOff {
	if s.initialBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = 20 * s.initialBackoff
	b.MaxElapsedTime = 0
	return b
}

// MutateRaw runs one CAS cycle per attempt: load, fn, conditional put.
// fn receives a private copy of the current body (nil when absent) and
// returns the replacement. An error from fn aborts without writing. When fn
// returns bytes identical to an existing document nothing is written.
func (s *Store) MutateRaw(ctx context.Context, name string, fn func(current []byte) ([]byte, error)) ([]byte, error) {
	key := s.Key(name)
	attempts := 0
	var out []byte

	op := func() error {
		attempts++
		cur, cached, err := s.lookup(ctx, key)
		if err != nil {
			return backoff.Permanent(err)
		}
		next, err := fn(slices.Clone(cur.body))
		if err != nil {
			s.metrics.mutation(resultAborted)
			return backoff.Permanent(err)
		}
		// A no-op decided against a cached copy is only trusted after
		// rerunning fn on what the backend holds now.
		if cached && cur.exists && bytes.Equal(next, cur.body) {
			s.invalidate(key)
			if cur, err = s.fetch(ctx, key); err != nil {
				return backoff.Permanent(err)
			}
			if next, err = fn(slices.Clone(cur.body)); err != nil {
				s.metrics.mutation(resultAborted)
				return backoff.Permanent(err)
			}
		}
		if cur.exists && bytes.Equal(next, cur.body) {
			s.metrics.mutation(resultUnchanged)
			out = next
			return nil
		}

		cond := objstore.PutOptions{IfMatch: cur.version}
		if !cur.exists {
			cond = objstore.PutOptions{IfNoneMatch: true}
		}
		version, err := s.backend.Put(ctx, key, next, cond)
		if errors.Is(err, objstore.ErrPreconditionFailed) {
			s.invalidate(key)
			s.metrics.conflict()
			return err
		}
		if err != nil {
			s.metrics.mutation(resultFailed)
			return backoff.Permanent(err)
		}
		s.remember(key, next, version)
		s.metrics.mutation(resultWritten)
		out = next
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.maxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		s.log.Debug("docstore: version conflict, retrying",
			zap.String("key", key),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
		)
	})
	if err == nil {
		return slices.Clone(out), nil
	}
	if errors.Is(err, objstore.ErrPreconditionFailed) {
		s.metrics.mutation(resultExhausted)
		s.log.Warn("docstore: concurrent update failed",
			zap.String("key", key),
			zap.Int("attempts", attempts),
		)
		return nil, &ConflictError{Name: name, Attempts: attempts}
	}
	return nil, err
}

// Delete removes a document and its cached copy. Deleting a missing
// document is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.Key(name)
	if err := s.backend.Delete(ctx, key); err != nil {
		return err
	}
	s.invalidate(key)
	return nil
}

// List returns the names of all documents under prefix, following backend
// pagination to the end.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := objstore.ListAll(ctx, s.backend, s.prefix+prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if name, ok := s.nameFromKey(k); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func decode[T any](body []byte) (T, error) {
	var v T
	if len(body) > 0 {
		if err := json.Unmarshal(body, &v); err != nil {
			return v, fmt.Errorf("docstore: decode: %w", err)
		}
	}
	if n, ok := any(&v).(normalizer); ok {
		n.normalize()
	}
	return v, nil
}

// Read decodes the current document into a fresh T. A missing document
// decodes as the zero value (an empty collection for File types).
func Read[T any](ctx context.Context, s *Store, name string) (T, error) {
	e, err := s.load(ctx, s.Key(name))
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](e.body)
}

// Mutate decodes the current document, lets fn edit it in place and writes
// it back with compare-and-swap, retrying on conflicts. The returned value
// is what was stored.
func Mutate[T any](ctx context.Context, s *Store, name string, fn func(*T) error) (T, error) {
	var result T
	_, err := s.MutateRaw(ctx, name, func(current []byte) ([]byte, error) {
		v, err := decode[T](current)
		if err != nil {
			return nil, err
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		if n, ok := any(&v).(normalizer); ok {
			n.normalize()
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode: %w", err)
		}
		result = v
		return b, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
