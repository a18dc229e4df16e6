package ring

import (
	"strconv"
)

// getInt64 reads an integer counter from the store, logging and
// swallowing both store errors and unparseable values by returning def.
func (r *Ring) getInt64(ns, key string, def int64) int64 {
	v, ok, err := r.store.Get(ns, key)
	if err != nil {
		r.log.Errorf("get %s/%s failed: %v", ns, key, err)
		return def
	}
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func (r *Ring) getFloat64(ns, key string, def float64) float64 {
	v, ok, err := r.store.Get(ns, key)
	if err != nil {
		r.log.Errorf("get %s/%s failed: %v", ns, key, err)
		return def
	}
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (r *Ring) setInt64(ns, key string, v int64) {
	if err := r.store.Set(ns, key, strconv.FormatInt(v, 10)); err != nil {
		r.log.Errorf("set %s/%s failed: %v", ns, key, err)
	}
}

func (r *Ring) setFloat64(ns, key string, v float64) {
	if err := r.store.Set(ns, key, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		r.log.Errorf("set %s/%s failed: %v", ns, key, err)
	}
}

func (r *Ring) setString(ns, key, v string) {
	if err := r.store.Set(ns, key, v); err != nil {
		r.log.Errorf("set %s/%s failed: %v", ns, key, err)
	}
}

func (r *Ring) incr(ns, key string, delta int64) int64 {
	v, err := r.store.Incr(ns, key, delta)
	if err != nil {
		r.log.Errorf("incr %s/%s failed: %v", ns, key, err)
		return 0
	}
	return v
}

func (r *Ring) deleteKey(ns, key string) {
	if err := r.store.Delete(ns, key); err != nil {
		r.log.Errorf("delete %s/%s failed: %v", ns, key, err)
	}
}
