package ring

import "context"

// Resize implements spec.md §4.5. It holds no lock and races with Set;
// the safety argument is that Set only ever writes slots <= currentSize
// and this shrink sweep only ever touches slots > newSize, so at most
// one straggler write gets evicted an instant after it lands.
func (r *Ring) Resize(ctx context.Context, newSize int64) error {
	if newSize <= 0 {
		return errConfig("resize target must be positive")
	}

	prevSize := r.getInt64(nsStats, keyCurrentSize, newSize)
	r.setInt64(nsStats, keyCurrentSize, newSize)

	if newSize >= prevSize {
		return nil
	}

	if pos := r.getInt64(nsStats, keyPos, 0); pos > newSize {
		r.setInt64(nsStats, keyPos, newSize)
	}

	b := r.newBatcher(false)
	for p := newSize + 1; p <= prevSize; p++ {
		select {
		case <-ctx.Done():
			b.flush()
			return ctx.Err()
		default:
		}
		b.add(p, true)
	}
	b.flush()
	return nil
}
