package record

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/kailas-cloud/carscore/internal/db"
	"github.com/kailas-cloud/carscore/internal/domain/assessment"
	"github.com/kailas-cloud/carscore/internal/domain/mileage"
	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
	"github.com/kailas-cloud/carscore/internal/domain/vehicle"
)

type zmember struct {
	score  int64
	member string
}

// memStore is an in-memory implementation of the consumer interface.
type memStore struct {
	kv   map[string][]byte
	sets map[string][]zmember

	zaddErr  error
	mgetErr  error
	zcountFn func(key string, r db.ScoreRange) (int, error)
}

func newMemStore() *memStore {
	return &memStore{kv: map[string][]byte{}, sets: map[string][]zmember{}}
}

func (m *memStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	if m.mgetErr != nil {
		return nil, m.mgetErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.kv[k]
	}
	return out, nil
}

func (m *memStore) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	if _, ok := m.kv[key]; ok {
		return false, nil
	}
	m.kv[key] = value
	return true, nil
}

// ZAddAll is all-or-nothing, like MULTI/EXEC.
func (m *memStore) ZAddAll(_ context.Context, keys []string, score int64, member string) error {
	if m.zaddErr != nil {
		return m.zaddErr
	}
	for _, k := range keys {
		m.zadd(k, score, member)
	}
	return nil
}

func (m *memStore) zadd(key string, score int64, member string) {
	m.sets[key] = append(m.sets[key], zmember{score: score, member: member})
	sort.Slice(m.sets[key], func(i, j int) bool { return m.sets[key][i].score < m.sets[key][j].score })
}

func (m *memStore) ZRangeByScore(_ context.Context, key string, r db.ScoreRange) ([]string, error) {
	var out []string
	for _, zm := range m.sets[key] {
		if inRange(zm.score, r) {
			out = append(out, zm.member)
		}
	}
	return out, nil
}

func (m *memStore) ZCount(_ context.Context, key string, r db.ScoreRange) (int, error) {
	if m.zcountFn != nil {
		return m.zcountFn(key, r)
	}
	n := 0
	for _, zm := range m.sets[key] {
		if inRange(zm.score, r) {
			n++
		}
	}
	return n, nil
}

type countingStore struct {
	*memStore
	calls    int
	lastKeys []string
}

func (c *countingStore) ZAddAll(ctx context.Context, keys []string, score int64, member string) error {
	c.calls++
	c.lastKeys = keys
	return c.memStore.ZAddAll(ctx, keys, score, member)
}

func inRange(score int64, r db.ScoreRange) bool {
	if r.Min != nil && score < *r.Min {
		return false
	}
	if r.Max != nil && score > *r.Max {
		return false
	}
	return true
}

func makeRecord(t *testing.T, id, requester string, year int, created time.Time, score float64) *domrec.Record {
	t.Helper()
	identity, err := vehicle.New(vehicle.Fields{
		Make: "Toyota", Model: "Corolla", SubModel: "GLI", Year: year, MileageRange: "100-150k",
	})
	if err != nil {
		t.Fatalf("vehicle.New: %v", err)
	}
	result, err := assessment.Decode([]byte(`{"reliability_summary": "fine", "sources": ["a"]}`))
	if err != nil {
		t.Fatalf("assessment.Decode: %v", err)
	}
	result = result.WithBaseScore(score)

	rec, err := domrec.New(id, requester, identity, created, result, mileage.Adjust("100-150k"))
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return &rec
}
