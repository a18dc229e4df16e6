package ring

import "context"

// Drain implements spec.md §4.7's single-flight full drain. Concurrent
// callers race on store.Add("ring","draining",...) as their
// compare-and-set mutex (spec.md's Design Notes recommend exactly this
// hardening over the source's racy check-then-set); only the winner
// performs the sweep, everyone else returns immediately having done
// nothing.
func (r *Ring) Drain(ctx context.Context) error {
	won, err := r.store.Add(nsRing, keyDraining, "1")
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	defer r.deleteKey(nsRing, keyDraining)

	currentSize := r.getInt64(nsStats, keyCurrentSize, 0)

	b := r.newBatcher(true)
	for p := int64(1); p <= currentSize; p++ {
		select {
		case <-ctx.Done():
			b.flush()
			return ctx.Err()
		default:
		}
		b.add(p, false)
	}
	b.flush()

	if err := r.store.FlushAll(nsRing); err != nil {
		r.log.Errorf("drain: flush ring namespace failed: %v", err)
	}
	// keyDraining lives in nsRing and was just wiped by FlushAll; the
	// deferred deleteKey above is then a harmless no-op.
	if err := r.store.FlushAll(nsIndex); err != nil {
		r.log.Errorf("drain: flush index namespace failed: %v", err)
	}

	r.setInt64(nsStats, keyPos, 0)
	return nil
}
