package ring

import (
	"context"
	"sync"
	"testing"

	"github.com/Forensiq/indexedRingBuffer/internal/store/memengine"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialSize = 4
	cfg.ParamList = []ParamSpec{
		{Name: "locked", LockKey: true},
		{Name: "owner", Immutable: true},
		{Name: "status", Mutable: true},
	}
	return cfg
}

type captureSink struct {
	mu      sync.Mutex
	evicted []string
}

func (s *captureSink) Eject(id string, record map[string]string, isFullDrain bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted = append(s.evicted, id)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evicted)
}

func newTestRing(t *testing.T, cfg Config, sink *captureSink) *Ring {
	t.Helper()
	r, err := New(cfg, memengine.New(), sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

// E1: insert then overwrite via a wrapped cursor evicts the oldest item.
func TestInsertAndOverwriteEvictsOldest(t *testing.T) {
	sink := &captureSink{}
	r := newTestRing(t, testConfig(), sink)

	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		if err := r.Set(id, map[string]string{"owner": id}); err != nil {
			t.Fatalf("Set(%s): %v", id, err)
		}
	}
	if sink.count() != 0 {
		t.Fatalf("no eviction expected yet, got %d", sink.count())
	}

	// a fifth distinct id wraps the cursor and evicts "a".
	if err := r.Set("e", map[string]string{"owner": "e"}); err != nil {
		t.Fatalf("Set(e): %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("expected exactly one eviction, got %d", sink.count())
	}
	if _, ok, _ := r.Get("a"); ok {
		t.Fatalf("expected id 'a' to have been evicted")
	}
	if _, ok, _ := r.Get("e"); !ok {
		t.Fatalf("expected id 'e' to be present")
	}
}

// E2: updating an existing id merges in place without moving slots or
// triggering an eviction.
func TestUpdateExistingMergesInPlace(t *testing.T) {
	sink := &captureSink{}
	r := newTestRing(t, testConfig(), sink)

	if err := r.Set("x", map[string]string{"owner": "alice", "status": "new"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Set("x", map[string]string{"status": "updated"}); err != nil {
		t.Fatalf("Set (update): %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("update-in-place should not evict, got %d", sink.count())
	}

	got, ok, err := r.Get("x")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got["owner"] != "alice" || got["status"] != "updated" {
		t.Fatalf("unexpected merged record: %+v", got)
	}
}

// E4: shrinking the ring evicts every slot beyond the new capacity.
func TestResizeShrinkEvictsOverflowSlots(t *testing.T) {
	sink := &captureSink{}
	r := newTestRing(t, testConfig(), sink)

	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		if err := r.Set(id, map[string]string{"owner": id}); err != nil {
			t.Fatalf("Set(%s): %v", id, err)
		}
	}

	if err := r.Resize(context.Background(), 2); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 evictions from shrink, got %d", sink.count())
	}
	if _, ok, _ := r.Get("a"); !ok {
		t.Fatalf("slot 1 (id a) should survive a shrink to 2")
	}
	if _, ok, _ := r.Get("c"); ok {
		t.Fatalf("slot 3 (id c) should have been evicted by the shrink")
	}
}

// E6: concurrent drains are single-flight; only one performs the sweep.
func TestDrainIsSingleFlight(t *testing.T) {
	sink := &captureSink{}
	r := newTestRing(t, testConfig(), sink)

	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		if err := r.Set(id, map[string]string{"owner": id}); err != nil {
			t.Fatalf("Set(%s): %v", id, err)
		}
	}

	const drainers = 8
	var wg sync.WaitGroup
	wg.Add(drainers)
	errs := make([]error, drainers)
	for i := 0; i < drainers; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Drain(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Drain[%d]: %v", i, err)
		}
	}
	if sink.count() != 4 {
		t.Fatalf("expected exactly 4 evictions from a single drain sweep, got %d", sink.count())
	}

	stats, err := r.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Draining {
		t.Fatalf("drain flag should be cleared after completion")
	}
}

func TestSetDroppedWhileDraining(t *testing.T) {
	sink := &captureSink{}
	r := newTestRing(t, testConfig(), sink)

	r.setString(nsRing, keyDraining, "1")
	if err := r.Set("z", map[string]string{"owner": "z"}); err != nil {
		t.Fatalf("Set during drain should not error: %v", err)
	}
	if _, ok, _ := r.Get("z"); ok {
		t.Fatalf("Set issued during a drain must be dropped")
	}
}
