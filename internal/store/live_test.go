package store

import (
	"context"
	"testing"
	"time"
)

// next reads one snapshot or fails after timeout.
func next(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatal("live query closed unexpectedly")
		}
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return Snapshot{}
}

// nextMatching drains snapshots until one satisfies fn.
func nextMatching(t *testing.T, ch <-chan Snapshot, fn func(Snapshot) bool, msg string) Snapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				t.Fatalf("live query closed before: %s", msg)
			}
			if fn(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timeout: %s", msg)
		}
	}
}

func TestWatchAll_EmitsInitialAndOnChange(t *testing.T) {
	s := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := s.WatchAll(ctx)
	first := next(t, live)
	if first.Err != nil || len(first.Notes) != 0 {
		t.Fatalf("initial snapshot = %+v", first)
	}

	id, _ := s.Insert(ctx, note("one", false, 1))
	nextMatching(t, live, func(sn Snapshot) bool { return len(sn.Notes) == 1 }, "insert not observed")

	n, _ := s.GetByID(ctx, id)
	n.IsPinned = true
	_ = s.Update(ctx, n)
	nextMatching(t, live, func(sn Snapshot) bool {
		return len(sn.Notes) == 1 && sn.Notes[0].IsPinned
	}, "update not observed")

	_ = s.DeleteByID(ctx, id)
	nextMatching(t, live, func(sn Snapshot) bool { return len(sn.Notes) == 0 }, "delete not observed")
}

func TestWatchAll_MultipleSubscribersSameOrder(t *testing.T) {
	s := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.WatchAll(ctx)
	b := s.WatchAll(ctx)
	next(t, a)
	next(t, b)

	_, _ = s.Insert(ctx, note("A", true, 10))
	_, _ = s.Insert(ctx, note("B", false, 50))
	_, _ = s.Insert(ctx, note("C", true, 5))

	want := []string{"A", "C", "B"}
	for name, ch := range map[string]<-chan Snapshot{"a": a, "b": b} {
		got := nextMatching(t, ch, func(sn Snapshot) bool { return len(sn.Notes) == 3 }, name+": missing rows")
		if !equalStrings(titles(got.Notes), want) {
			t.Errorf("%s order = %v, want %v", name, titles(got.Notes), want)
		}
	}
}

func TestWatchAll_StalledSubscriberDoesNotBlockWriters(t *testing.T) {
	s := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.WatchAll(ctx) // never read
	active := s.WatchAll(ctx)
	next(t, active)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			_, _ = s.Insert(ctx, note("n", false, int64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writers blocked by a stalled live query")
	}
	nextMatching(t, active, func(sn Snapshot) bool { return len(sn.Notes) == 20 }, "active subscriber missed writes")
}

func TestWatchSearch_FiltersAndFollowsChanges(t *testing.T) {
	s := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = s.Insert(ctx, note("Meeting notes", false, 1))
	live := s.WatchSearch(ctx, "shop")
	if first := next(t, live); len(first.Notes) != 0 {
		t.Fatalf("initial = %v", titles(first.Notes))
	}

	_, _ = s.Insert(ctx, note("Shopping list", false, 2))
	got := nextMatching(t, live, func(sn Snapshot) bool { return len(sn.Notes) > 0 }, "matching insert not observed")
	if !equalStrings(titles(got.Notes), []string{"Shopping list"}) {
		t.Errorf("search results = %v", titles(got.Notes))
	}
}

func TestWatch_ClosesOnCancelAndStoreClose(t *testing.T) {
	s := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	live := s.WatchAll(ctx)
	next(t, live)
	cancel()

	select {
	case _, ok := <-live:
		if ok {
			// A final in-flight snapshot is allowed; the channel must close next.
			if _, ok := <-live; ok {
				t.Fatal("channel still open after cancel")
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("live query not closed after cancel")
	}

	other := s.WatchAll(context.Background())
	next(t, other)
	s.changes.Close()
	select {
	case _, ok := <-other:
		if ok {
			t.Fatal("expected closed channel after hub shutdown")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("live query not closed after store shutdown")
	}
}
