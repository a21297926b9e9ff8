package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/carscore/internal/db"
)

// ZAddAll adds member to every sorted set in keys inside one MULTI/EXEC
// round-trip. In cluster mode the keys must share a hash slot.
func (s *Store) ZAddAll(ctx context.Context, keys []string, score int64, member string) error {
	if len(keys) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(keys)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, k := range keys {
		cmds = append(cmds, s.b().Zadd().Key(k).ScoreMember().ScoreMember(float64(score), member).Build())
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpZAdd, Err: err}
		}
	}
	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			return &db.Error{Op: db.OpZAdd, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	return nil
}

// ZRangeByScore returns members whose score lies in r, in ascending score order.
func (s *Store) ZRangeByScore(ctx context.Context, key string, r db.ScoreRange) ([]string, error) {
	lo, hi := rangeArgs(r)
	cmd := s.b().Zrangebyscore().Key(key).Min(lo).Max(hi).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRangeByScore, Err: err}
	}
	return members, nil
}

// ZCount counts members whose score lies in r.
func (s *Store) ZCount(ctx context.Context, key string, r db.ScoreRange) (int, error) {
	lo, hi := rangeArgs(r)
	cmd := s.b().Zcount().Key(key).Min(lo).Max(hi).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCount, Err: err}
	}
	return int(n), nil
}

func rangeArgs(r db.ScoreRange) (string, string) {
	lo, hi := "-inf", "+inf"
	if r.Min != nil {
		lo = strconv.FormatInt(*r.Min, 10)
	}
	if r.Max != nil {
		hi = strconv.FormatInt(*r.Max, 10)
	}
	return lo, hi
}
