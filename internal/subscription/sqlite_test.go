package subscription

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"terminbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "subs.db"), time.Second, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	want := Subscription{
		UserID:          "100200300",
		DepartmentID:    "fs",
		AppointmentType: "FS Umschreibung Ausländischer FS",
		Interval:        30 * time.Minute,
		CreatedAt:       created,
	}
	if err := st.Put(ctx, want); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := st.Get(ctx, "100200300")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
	if got.ExpiresAt() != created.Add(Lifetime) {
		t.Fatalf("ExpiresAt = %v", got.ExpiresAt())
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	if _, err := st.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutOverwritesExisting(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	first := Subscription{
		UserID: "u1", DepartmentID: "fs", AppointmentType: "old",
		Interval: 15 * time.Minute, CreatedAt: time.Unix(1000, 0).UTC(),
	}
	second := Subscription{
		UserID: "u1", DepartmentID: "bb", AppointmentType: "An- oder Ummeldung - Einzelperson",
		Interval: 60 * time.Minute, CreatedAt: time.Unix(2000, 0).UTC(),
	}
	if err := st.Put(ctx, first); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := st.Put(ctx, second); err != nil {
		t.Fatalf("Put overwrite error: %v", err)
	}

	got, err := st.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != second {
		t.Fatalf("Get = %+v, want %+v", got, second)
	}

	subs, err := st.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("ListAll = %d records, want 1", len(subs))
	}
}

func TestRemoveIdempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	sub := Subscription{UserID: "u1", DepartmentID: "fs", AppointmentType: "x",
		Interval: 15 * time.Minute, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	if err := st.Put(ctx, sub); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	removed, err := st.Remove(ctx, "u1")
	if err != nil || !removed {
		t.Fatalf("first Remove = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = st.Remove(ctx, "u1")
	if err != nil || removed {
		t.Fatalf("second Remove = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestExpireBoundary(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	put := func(id string, created time.Time) {
		t.Helper()
		err := st.Put(ctx, Subscription{
			UserID: id, DepartmentID: "fs", AppointmentType: "x",
			Interval: 15 * time.Minute, CreatedAt: created,
		})
		if err != nil {
			t.Fatalf("Put(%s) error: %v", id, err)
		}
	}
	// exactly a week old: removed
	put("exactly", now.Add(-Lifetime))
	// one minute short of a week: kept
	put("almost", now.Add(-Lifetime).Add(time.Minute))
	// well past: removed
	put("stale", now.Add(-Lifetime).Add(-48*time.Hour))

	ids, err := st.Expire(ctx, now.Add(-Lifetime))
	if err != nil {
		t.Fatalf("Expire error: %v", err)
	}
	got := map[string]bool{}
	for _, id := range ids {
		got[id] = true
	}
	if !got["exactly"] || !got["stale"] || got["almost"] || len(ids) != 2 {
		t.Fatalf("Expire ids = %v", ids)
	}

	if _, err := st.Get(ctx, "almost"); err != nil {
		t.Fatalf("kept record missing: %v", err)
	}
	if _, err := st.Get(ctx, "exactly"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("boundary record still present, err = %v", err)
	}

	// second pass is a no-op
	ids, err = st.Expire(ctx, now.Add(-Lifetime))
	if err != nil {
		t.Fatalf("second Expire error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("second Expire ids = %v, want none", ids)
	}
}
