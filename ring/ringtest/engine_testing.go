// Package ringtest provides a shared contract-test suite for
// store.Engine implementations, so any backend can be exercised the
// same way. In this module only memengine's tests run it.
package ringtest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Forensiq/indexedRingBuffer/internal/store"
)

// EngineFactory builds a fresh, empty store.Engine instance.
type EngineFactory func() store.Engine

// RunEngineTests runs the full contract suite against factory, under
// the subtest name name.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("SetGet", func(t *testing.T) { testSetGet(t, factory()) })
		t.Run("Delete", func(t *testing.T) { testDelete(t, factory()) })
		t.Run("Incr", func(t *testing.T) { testIncr(t, factory()) })
		t.Run("Add", func(t *testing.T) { testAdd(t, factory()) })
		t.Run("FlushAll", func(t *testing.T) { testFlushAll(t, factory()) })
		t.Run("NamespaceIsolation", func(t *testing.T) { testNamespaceIsolation(t, factory()) })
		t.Run("ConcurrentIncr", func(t *testing.T) { testConcurrentIncr(t, factory()) })
	})
}

func testSetGet(t *testing.T, e store.Engine) {
	_, ok, err := e.Get("ns", "missing")
	if err != nil {
		t.Fatalf("Get on empty engine: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for unset key")
	}

	if err := e.Set("ns", "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := e.Get("ns", "k")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("Get after Set: v=%q ok=%v err=%v", v, ok, err)
	}

	if err := e.Set("ns", "k", "v2"); err != nil {
		t.Fatalf("Set (overwrite): %v", err)
	}
	v, ok, err = e.Get("ns", "k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get after overwrite: v=%q ok=%v err=%v", v, ok, err)
	}
}

func testDelete(t *testing.T, e store.Engine) {
	_ = e.Set("ns", "k", "v")
	if err := e.Delete("ns", "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := e.Get("ns", "k"); ok {
		t.Fatalf("expected miss after Delete")
	}
	if err := e.Delete("ns", "nonexistent"); err != nil {
		t.Fatalf("Delete of missing key should not error: %v", err)
	}
}

func testIncr(t *testing.T, e store.Engine) {
	v, err := e.Incr("ns", "counter", 1)
	if err != nil || v != 1 {
		t.Fatalf("first Incr: v=%d err=%v", v, err)
	}
	v, err = e.Incr("ns", "counter", 5)
	if err != nil || v != 6 {
		t.Fatalf("second Incr: v=%d err=%v", v, err)
	}
	v, err = e.Incr("ns", "counter", -2)
	if err != nil || v != 4 {
		t.Fatalf("negative Incr: v=%d err=%v", v, err)
	}
}

func testAdd(t *testing.T, e store.Engine) {
	added, err := e.Add("ns", "lock", "1")
	if err != nil || !added {
		t.Fatalf("first Add should win: added=%v err=%v", added, err)
	}
	added, err = e.Add("ns", "lock", "1")
	if err != nil || added {
		t.Fatalf("second Add should lose: added=%v err=%v", added, err)
	}
	if err := e.Delete("ns", "lock"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	added, err = e.Add("ns", "lock", "1")
	if err != nil || !added {
		t.Fatalf("Add after Delete should win again: added=%v err=%v", added, err)
	}
}

func testFlushAll(t *testing.T, e store.Engine) {
	_ = e.Set("ns", "a", "1")
	_ = e.Set("ns", "b", "2")
	_ = e.Set("other", "c", "3")

	if err := e.FlushAll("ns"); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if _, ok, _ := e.Get("ns", "a"); ok {
		t.Fatalf("expected ns/a gone after FlushAll")
	}
	if _, ok, _ := e.Get("ns", "b"); ok {
		t.Fatalf("expected ns/b gone after FlushAll")
	}
	if _, ok, _ := e.Get("other", "c"); !ok {
		t.Fatalf("FlushAll must not touch other namespaces")
	}
}

func testNamespaceIsolation(t *testing.T, e store.Engine) {
	_ = e.Set("ns1", "k", "one")
	_ = e.Set("ns2", "k", "two")

	v1, _, _ := e.Get("ns1", "k")
	v2, _, _ := e.Get("ns2", "k")
	if v1 != "one" || v2 != "two" {
		t.Fatalf("same key in different namespaces collided: ns1=%q ns2=%q", v1, v2)
	}
}

func testConcurrentIncr(t *testing.T, e store.Engine) {
	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := e.Incr("ns", "hot", 1); err != nil {
					t.Errorf("Incr: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	v, ok, err := e.Get("ns", "hot")
	if err != nil || !ok {
		t.Fatalf("Get after concurrent Incr: v=%q ok=%v err=%v", v, ok, err)
	}
	want := fmt.Sprintf("%d", workers*perWorker)
	if v != want {
		t.Fatalf("expected %s concurrent increments, got %s", want, v)
	}
}
