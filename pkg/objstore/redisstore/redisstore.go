// Package redisstore implements objstore.Backend on Redis. Each document is
// a hash {body, version}; a Lua script performs the conditional write so the
// version check and the update are one atomic step on the server.
package redisstore

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jacksonlee411/worklog/pkg/objstore"
)

var _ objstore.Backend = (*Store)(nil)

// KEYS[1] document hash, KEYS[2] global version sequence.
// ARGV[1] mode (any|absent|match), ARGV[2] expected version, ARGV[3] body.
// Versions come from one sequence so a recreated key never reuses an old tag.
var casScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "version")
if ARGV[1] == "absent" and cur then
  return -1
end
if ARGV[1] == "match" and cur ~= ARGV[2] then
  return -1
end
local v = redis.call("INCR", KEYS[2])
redis.call("HSET", KEYS[1], "body", ARGV[3], "version", v)
return v
`)

type Config struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return client, nil
}

type Store struct {
	client   redis.UniversalClient
	ns       string
	pageSize int
}

// New stores documents under namespace (default "worklog:").
func New(client redis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = "worklog:"
	}
	return &Store{client: client, ns: namespace, pageSize: 1000}
}

func (s *Store) docKey(key string) string { return s.ns + "doc:" + key }

func (s *Store) seqKey() string { return s.ns + "version_seq" }

func (s *Store) Get(ctx context.Context, key string) (objstore.Object, error) {
	vals, err := s.client.HMGet(ctx, s.docKey(key), "body", "version").Result()
	if err != nil {
		return objstore.Object{}, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	body, okBody := vals[0].(string)
	version, okVersion := vals[1].(string)
	if !okBody || !okVersion {
		return objstore.Object{}, objstore.ErrNotFound
	}
	return objstore.Object{Body: []byte(body), Version: version}, nil
}

func (s *Store) Put(ctx context.Context, key string, body []byte, opts objstore.PutOptions) (string, error) {
	mode := "any"
	switch {
	case opts.IfNoneMatch:
		mode = "absent"
	case opts.IfMatch != "":
		mode = "match"
	}
	v, err := casScript.Run(ctx, s.client, []string{s.docKey(key), s.seqKey()}, mode, opts.IfMatch, body).Int64()
	if err != nil {
		return "", fmt.Errorf("redisstore: put %s: %w", key, err)
	}
	if v < 0 {
		return "", objstore.ErrPreconditionFailed
	}
	return strconv.FormatInt(v, 10), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.docKey(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete %s: %w", key, err)
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// List scans the whole match set, then pages it by key. SCAN may repeat
// keys, so they are deduplicated first.
func (s *Store) List(ctx context.Context, prefix string, cursor string) (objstore.Page, error) {
	base := s.docKey("")
	match := globEscaper.Replace(base+prefix) + "*"
	seen := make(map[string]struct{})
	var keys []string
	it := s.client.Scan(ctx, 0, match, 500).Iterator()
	for it.Next(ctx) {
		k := strings.TrimPrefix(it.Val(), base)
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := it.Err(); err != nil {
		return objstore.Page{}, fmt.Errorf("redisstore: list %s: %w", prefix, err)
	}
	slices.Sort(keys)
	return objstore.PageFrom(objstore.AfterCursor(keys, cursor), s.pageSize), nil
}
