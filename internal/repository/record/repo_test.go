package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/carscore/internal/db"
)

func TestAppend_ThenWindowRoundTrip(t *testing.T) {
	ms := newMemStore()
	repo := New(ms, "carscore:")
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	rec := makeRecord(t, "r1", "alice", 2020, now, 75)
	if err := repo.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	for _, key := range []string{
		"carscore:record:r1",
	} {
		if _, ok := ms.kv[key]; !ok {
			t.Errorf("expected key %s", key)
		}
	}
	for _, idx := range []string{
		"carscore:{records}:all",
		"carscore:{records}:year:2020",
		"carscore:{records}:requester:alice",
	} {
		if len(ms.sets[idx]) != 1 {
			t.Errorf("expected one entry in %s", idx)
		}
	}

	got, err := repo.Window(ctx, 2020, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	r := got[0]
	if r.ID() != "r1" || r.Requester() != "alice" || !r.CreatedAt().Equal(now) {
		t.Errorf("unexpected record: id=%s requester=%s created=%v", r.ID(), r.Requester(), r.CreatedAt())
	}
	if r.Identity().SubModel() != "gli" || r.Identity().Year() != 2020 {
		t.Errorf("unexpected identity: %+v", r.Identity().Fields())
	}
	if s, ok := r.Result().BaseScore(); !ok || s != 75 {
		t.Errorf("unexpected score: %v %v", s, ok)
	}
	if r.Result().Summary() != "fine" {
		t.Errorf("pass-through field lost")
	}
	if r.Adjustment().Delta != -5 {
		t.Errorf("expected stored adjustment -5, got %d", r.Adjustment().Delta)
	}
}

func TestAppend_Duplicate(t *testing.T) {
	ms := newMemStore()
	repo := New(ms, "p:")
	now := time.Now()

	rec := makeRecord(t, "dup", "alice", 2020, now, 70)
	if err := repo.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	err := repo.Append(context.Background(), rec)
	if !errors.Is(err, db.ErrKeyExists) {
		t.Errorf("expected ErrKeyExists, got %v", err)
	}
}

func TestAppend_IndexError(t *testing.T) {
	ms := newMemStore()
	ms.zaddErr = errors.New("boom")
	repo := New(ms, "p:")

	err := repo.Append(context.Background(), makeRecord(t, "r", "a", 2020, time.Now(), 70))
	if err == nil {
		t.Fatal("expected error")
	}
	for idx, members := range ms.sets {
		t.Errorf("index %s must stay empty after a failed append, has %d", idx, len(members))
	}
}

func TestAppend_IndexesInOneCall(t *testing.T) {
	ms := &countingStore{memStore: newMemStore()}
	repo := New(ms, "p:")

	if err := repo.Append(context.Background(), makeRecord(t, "r", "a", 2020, time.Now(), 70)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ms.calls != 1 || len(ms.lastKeys) != 3 {
		t.Errorf("expected one ZAddAll over 3 indexes, got %d calls with %v", ms.calls, ms.lastKeys)
	}
}

func TestWindow_FiltersByYearAndSince(t *testing.T) {
	ms := newMemStore()
	repo := New(ms, "p:")
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	_ = repo.Append(ctx, makeRecord(t, "old", "a", 2020, now.Add(-50*24*time.Hour), 60))
	_ = repo.Append(ctx, makeRecord(t, "fresh", "a", 2020, now.Add(-time.Hour), 61))
	_ = repo.Append(ctx, makeRecord(t, "other-year", "a", 2019, now.Add(-time.Hour), 62))

	got, err := repo.Window(ctx, 2020, now.Add(-45*24*time.Hour))
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "fresh" {
		t.Errorf("unexpected window: %d records", len(got))
	}
}

func TestWindow_SkipsMissingAndCorrupt(t *testing.T) {
	ms := newMemStore()
	repo := New(ms, "p:")
	ctx := context.Background()
	now := time.Now()

	_ = repo.Append(ctx, makeRecord(t, "good", "a", 2020, now, 70))
	ms.zadd("p:{records}:year:2020", now.UnixMilli(), "ghost")
	ms.zadd("p:{records}:year:2020", now.UnixMilli(), "corrupt")
	ms.kv["p:record:corrupt"] = []byte("{not json")

	got, err := repo.Window(ctx, 2020, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "good" {
		t.Errorf("expected only the good record, got %d", len(got))
	}
}

func TestWindow_StoreError(t *testing.T) {
	ms := newMemStore()
	repo := New(ms, "p:")
	_ = repo.Append(context.Background(), makeRecord(t, "r", "a", 2020, time.Now(), 70))
	ms.mgetErr = errors.New("down")

	if _, err := repo.Window(context.Background(), 2020, time.Now().Add(-time.Hour)); err == nil {
		t.Fatal("expected error")
	}
}

func TestCount_HalfOpenDay(t *testing.T) {
	ms := newMemStore()
	repo := New(ms, "p:")
	ctx := context.Background()
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	_ = repo.Append(ctx, makeRecord(t, "a1", "alice", 2020, day, 70))
	_ = repo.Append(ctx, makeRecord(t, "a2", "alice", 2020, day.Add(time.Hour), 70))
	_ = repo.Append(ctx, makeRecord(t, "b1", "bob", 2020, day.Add(2*time.Hour), 70))
	_ = repo.Append(ctx, makeRecord(t, "a3", "alice", 2020, next, 70))

	n, err := repo.Count(ctx, "alice", day, next)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("alice today: expected 2, got %d", n)
	}

	n, err = repo.Count(ctx, "", day, next)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("global today: expected 3, got %d", n)
	}
}

func TestCount_StoreError(t *testing.T) {
	ms := newMemStore()
	ms.zcountFn = func(string, db.ScoreRange) (int, error) { return 0, errors.New("down") }
	repo := New(ms, "p:")

	if _, err := repo.Count(context.Background(), "", time.Now(), time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error")
	}
}
