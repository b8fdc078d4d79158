package docstore

import (
	"context"
	"regexp"
	"slices"
	"strconv"
)

// Work items are sharded one document per creator, with a separate counter
// document holding the last id handed out across all shards.
const (
	UserShardPrefix = "work_items/user/"
	ShardMetaName   = "work_items/meta"
)

var userShardPattern = regexp.MustCompile(`^work_items/user/(\d+)$`)

func UserShardName(userID int64) string {
	return UserShardPrefix + strconv.FormatInt(userID, 10)
}

func ParseUserShardName(name string) (int64, bool) {
	m := userShardPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// UserShards lists the user ids that currently own a shard, ascending.
func (s *Store) UserShards(ctx context.Context) ([]int64, error) {
	names, err := s.List(ctx, UserShardPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		if id, ok := ParseUserShardName(n); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// NextSequence increments the counter document name and returns the new value.
func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	c, err := Mutate(ctx, s, name, func(c *Counter) error {
		c.LastID++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return c.LastID, nil
}

// RaiseSequence moves the counter up to at least v.
func (s *Store) RaiseSequence(ctx context.Context, name string, v int64) error {
	_, err := Mutate(ctx, s, name, func(c *Counter) error {
		c.LastID = max(c.LastID, v)
		return nil
	})
	return err
}
