package record

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/carscore/internal/db"
	domrec "github.com/kailas-cloud/carscore/internal/domain/record"
)

const mgetChunk = 500

// store is the consumer interface for record persistence (ISP).
type store interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	ZAddAll(ctx context.Context, keys []string, score int64, member string) error
	ZRangeByScore(ctx context.Context, key string, r db.ScoreRange) ([]string, error)
	ZCount(ctx context.Context, key string, r db.ScoreRange) (int, error)
}

// Repo is an append-only record store on Redis/Valkey.
// Each record is a JSON value; sorted sets scored by creation time index it
// globally, by requester and by model year.
type Repo struct {
	store  store
	prefix string
}

// New creates a record repository. prefix namespaces every key (e.g. "carscore:").
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Append stores a record and indexes it. The body is written before the
// indexes so an index entry never points at a missing record.
func (r *Repo) Append(ctx context.Context, rec *domrec.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	created, err := r.store.SetNX(ctx, r.recordKey(rec.ID()), data)
	if err != nil {
		return fmt.Errorf("store record %s: %w", rec.ID(), err)
	}
	if !created {
		return fmt.Errorf("record %s: %w", rec.ID(), db.ErrKeyExists)
	}

	indexes := []string{
		r.allIndex(),
		r.yearIndex(rec.Identity().Year()),
		r.requesterIndex(rec.Requester()),
	}
	if err := r.store.ZAddAll(ctx, indexes, rec.CreatedAt().UnixMilli(), rec.ID()); err != nil {
		return fmt.Errorf("index record %s: %w", rec.ID(), err)
	}
	return nil
}

// Window returns records of the given model year created at or after since.
// Records that cannot be decoded are skipped.
func (r *Repo) Window(ctx context.Context, year int, since time.Time) ([]domrec.Record, error) {
	ids, err := r.store.ZRangeByScore(ctx, r.yearIndex(year), db.From(since.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("window year %d: %w", year, err)
	}

	out := make([]domrec.Record, 0, len(ids))
	for start := 0; start < len(ids); start += mgetChunk {
		end := min(start+mgetChunk, len(ids))
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, r.recordKey(id))
		}

		values, err := r.store.MGet(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		for _, v := range values {
			if v == nil {
				continue
			}
			rec, err := decodeRecord(v)
			if err != nil {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of records created in [from, to).
// An empty requester counts across everyone.
func (r *Repo) Count(ctx context.Context, requester string, from, to time.Time) (int, error) {
	key := r.allIndex()
	if requester != "" {
		key = r.requesterIndex(requester)
	}
	n, err := r.store.ZCount(ctx, key, db.Bounds(from.UnixMilli(), to.UnixMilli()-1))
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (r *Repo) recordKey(id string) string { return r.prefix + "record:" + id }

// Index keys share the {records} hash tag so one transaction can update all of them.
func (r *Repo) allIndex() string { return r.prefix + "{records}:all" }

func (r *Repo) yearIndex(year int) string {
	return r.prefix + "{records}:year:" + strconv.Itoa(year)
}

func (r *Repo) requesterIndex(requester string) string {
	return r.prefix + "{records}:requester:" + requester
}
