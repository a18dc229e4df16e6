// Package memengine implements store.Engine in-process, sharding each
// namespace across a puzpuzpuz/xsync.MapOf the same way dKV's maple
// engine shards its key space — the ring's default backend and the one
// used by every unit test in this module.
package memengine

import (
	"strconv"
	"sync"

	"github.com/Forensiq/indexedRingBuffer/internal/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// Engine is an in-process implementation of store.Engine.
type Engine struct {
	mu   sync.RWMutex
	nss  map[string]*xsync.MapOf[string, string]
}

// New creates an empty in-process engine. Namespaces are created lazily
// on first use, so callers never need to pre-declare them.
func New() *Engine {
	return &Engine{nss: make(map[string]*xsync.MapOf[string, string])}
}

// namespace returns (creating if necessary) the map backing ns.
func (e *Engine) namespace(ns string) *xsync.MapOf[string, string] {
	e.mu.RLock()
	m, ok := e.nss[ns]
	e.mu.RUnlock()
	if ok {
		return m
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok = e.nss[ns]; ok {
		return m
	}
	m = xsync.NewMapOf[string, string]()
	e.nss[ns] = m
	return m
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.Engine)
// --------------------------------------------------------------------------

func (e *Engine) Get(ns, key string) (string, bool, error) {
	v, ok := e.namespace(ns).Load(key)
	return v, ok, nil
}

func (e *Engine) Set(ns, key, value string) error {
	e.namespace(ns).Store(key, value)
	return nil
}

func (e *Engine) Delete(ns, key string) error {
	e.namespace(ns).Delete(key)
	return nil
}

func (e *Engine) Incr(ns, key string, delta int64) (int64, error) {
	var result int64
	e.namespace(ns).Compute(key, func(old string, loaded bool) (string, bool) {
		var cur int64
		if loaded {
			// A malformed prior value is treated as 0 rather than
			// failing the whole operation - the ring never writes
			// anything but integers to counter keys.
			cur, _ = strconv.ParseInt(old, 10, 64)
		}
		result = cur + delta
		return strconv.FormatInt(result, 10), false
	})
	return result, nil
}

func (e *Engine) Add(ns, key, value string) (bool, error) {
	added := false
	e.namespace(ns).Compute(key, func(old string, loaded bool) (string, bool) {
		if loaded {
			return old, false
		}
		added = true
		return value, false
	})
	return added, nil
}

func (e *Engine) FlushAll(ns string) error {
	m := e.namespace(ns)
	m.Range(func(key string, _ string) bool {
		m.Delete(key)
		return true
	})
	return nil
}

var _ store.Engine = (*Engine)(nil)
