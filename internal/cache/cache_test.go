package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingFetch returns canned items and counts remote calls.
type countingFetch struct {
	items []string
	err   error
	calls int
}

func (f *countingFetch) fetch(ctx context.Context) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func TestLoadShortCircuitsWhenLoaded(t *testing.T) {
	fetch := &countingFetch{items: []string{"a", "b"}}
	c := NewCollection("test", fetch.fetch)

	for i := 0; i < 3; i++ {
		items, err := c.Load(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
	}

	if fetch.calls != 1 {
		t.Errorf("expected exactly 1 remote call, got %d", fetch.calls)
	}
}

func TestLoadForceRefetches(t *testing.T) {
	fetch := &countingFetch{items: []string{"a"}}
	c := NewCollection("test", fetch.fetch)

	c.Load(context.Background(), false)
	c.Load(context.Background(), true)

	if fetch.calls != 2 {
		t.Errorf("expected 2 remote calls, got %d", fetch.calls)
	}
}

func TestInvalidateForcesRefetchEvenWhenNonEmpty(t *testing.T) {
	fetch := &countingFetch{items: []string{"a", "b", "c"}}
	c := NewCollection("test", fetch.fetch)

	if _, err := c.Load(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Invalidate()

	if c.State() != StateInvalidated {
		t.Fatalf("expected invalidated state, got %s", c.State())
	}
	if _, ok := c.Snapshot(); ok {
		t.Error("invalidated cache must not serve a snapshot")
	}

	// Not forced, yet the fetch must still happen.
	if _, err := c.Load(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetch.calls != 2 {
		t.Errorf("expected refetch after invalidate, got %d calls", fetch.calls)
	}
	if c.State() != StateLoaded {
		t.Errorf("expected loaded state after refetch, got %s", c.State())
	}
}

func TestLoadedEmptyListDoesNotRefetch(t *testing.T) {
	fetch := &countingFetch{items: []string{}}
	c := NewCollection("test", fetch.fetch)

	c.Load(context.Background(), false)
	items, err := c.Load(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 0 {
		t.Fatalf("expected empty list, got %d items", len(items))
	}
	if fetch.calls != 1 {
		t.Errorf("loaded-but-empty must not refetch, got %d calls", fetch.calls)
	}
}

func TestServerFilterDisablesShortCircuit(t *testing.T) {
	fetch := &countingFetch{items: []string{"a"}}
	c := NewCollection("test", fetch.fetch)

	c.SetServerFilterActive(true)
	c.Load(context.Background(), false)
	c.Load(context.Background(), false)

	if fetch.calls != 2 {
		t.Errorf("active server filter must bypass the cache, got %d calls", fetch.calls)
	}
}

func TestLoadErrorRestoresPriorState(t *testing.T) {
	fetch := &countingFetch{err: errors.New("boom")}
	c := NewCollection("test", fetch.fetch)

	if _, err := c.Load(context.Background(), false); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != StateNotLoaded {
		t.Errorf("failed first load should leave NotLoaded, got %s", c.State())
	}

	fetch.err = nil
	fetch.items = []string{"a"}
	c.Load(context.Background(), false)
	c.Invalidate()
	fetch.err = errors.New("boom again")

	if _, err := c.Load(context.Background(), false); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != StateInvalidated {
		t.Errorf("failed reload should stay invalidated, got %s", c.State())
	}
}

func TestInvalidateMidFlightDropsResult(t *testing.T) {
	c := NewCollection[string]("test", nil)
	started := make(chan struct{})
	release := make(chan struct{})
	c.fetch = func(ctx context.Context) ([]string, error) {
		close(started)
		<-release
		return []string{"stale"}, nil
	}

	done := make(chan []string)
	go func() {
		items, _ := c.Load(context.Background(), false)
		done <- items
	}()

	<-started
	c.Invalidate()
	close(release)

	items := <-done
	if len(items) != 1 || items[0] != "stale" {
		t.Fatalf("caller should still receive the orphaned result, got %v", items)
	}
	if c.State() != StateInvalidated {
		t.Errorf("orphaned result must not be stored, state is %s", c.State())
	}
}

func TestPatchOneAndRemoveOne(t *testing.T) {
	fetch := &countingFetch{items: []string{"a", "b", "c"}}
	c := NewCollection("test", fetch.fetch)

	if c.PatchOne(func(s string) bool { return s == "b" }, "B") {
		t.Error("patch before load should report false")
	}

	c.Load(context.Background(), false)

	if !c.PatchOne(func(s string) bool { return s == "b" }, "B") {
		t.Fatal("expected patch to land")
	}
	items, _ := c.Snapshot()
	if items[1] != "B" {
		t.Errorf("expected patched item, got %v", items)
	}

	if !c.RemoveOne(func(s string) bool { return s == "a" }) {
		t.Fatal("expected removal to land")
	}
	items, _ = c.Snapshot()
	if len(items) != 2 || items[0] != "B" {
		t.Errorf("unexpected items after removal: %v", items)
	}

	if c.RemoveOne(func(s string) bool { return s == "missing" }) {
		t.Error("removing a missing item should report false")
	}
	if fetch.calls != 1 {
		t.Errorf("patch/remove must not hit the server, got %d calls", fetch.calls)
	}
}

func TestIsStale(t *testing.T) {
	fetch := &countingFetch{items: []string{"a"}}
	c := NewCollection("test", fetch.fetch)

	if !c.IsStale(time.Hour) {
		t.Error("never-loaded collection must be stale")
	}

	c.Load(context.Background(), false)
	if c.IsStale(time.Hour) {
		t.Error("fresh load must not be stale within its TTL")
	}

	c.loadedAt = time.Now().Add(-2 * time.Hour)
	if !c.IsStale(time.Hour) {
		t.Error("old load must be stale past its TTL")
	}
}

func TestResetReturnsToNotLoaded(t *testing.T) {
	fetch := &countingFetch{items: []string{"a"}}
	c := NewCollection("test", fetch.fetch)

	c.Load(context.Background(), false)
	c.Reset()

	if c.State() != StateNotLoaded {
		t.Errorf("expected NotLoaded after reset, got %s", c.State())
	}
	if !c.LoadedAt().IsZero() {
		t.Error("reset must clear the load stamp")
	}
}
