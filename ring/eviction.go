package ring

import (
	"strconv"

	"github.com/Forensiq/indexedRingBuffer/evict"
)

// dispatchEject notifies the sink for an already-decoded slot occupant
// and, if alsoDelete, removes its index entry and slot. Used by the
// insert path, which has already paid for the decode while checking
// what it's about to overwrite.
func (r *Ring) dispatchEject(pos int64, env slotEnvelope, isFullDrain, alsoDelete bool) {
	func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Errorf("eviction sink panicked for id %q: %v", env.ID, p)
			}
		}()
		r.sink.Eject(env.ID, makeReadable(r.schema, env.Record), isFullDrain)
	}()

	if alsoDelete {
		r.deleteKey(nsIndex, env.ID)
		r.deleteKey(nsRing, strconv.FormatInt(pos, 10))
	}
}

// EjectLocal performs one eviction named by an evict.EjectRequest that
// arrived from a remote ParallelTransport peer. It is the receiving
// side of the fan-out started by (*batcher).flush on another process.
func (r *Ring) EjectLocal(req evict.EjectRequest) {
	r.ejectItem(req.Pos, req.Del, false)
}

// ejectItem is the general form of spec.md §4.4's ejectItem: it reads
// whatever currently occupies pos, decodes it, and dispatches. A pos
// with no occupant is a silent no-op.
func (r *Ring) ejectItem(pos int64, alsoDelete, isFullDrain bool) {
	slotKey := strconv.FormatInt(pos, 10)
	raw, ok, err := r.store.Get(nsRing, slotKey)
	if err != nil {
		r.log.Errorf("ejectItem(%d): read failed: %v", pos, err)
		return
	}
	if !ok {
		return
	}
	env, err := decodeSlot(raw)
	if err != nil {
		r.log.Errorf("ejectItem(%d): decode failed: %v", pos, err)
		return
	}
	r.dispatchEject(pos, env, isFullDrain, alsoDelete)
}

// batcher accumulates slot positions during a sweep (shrink or full
// drain) and flushes them either through the configured
// evict.ParallelTransport, or inline through ejectItem when no
// transport is configured. This is spec.md §4.4's "parallel mode":
// purely a performance choice, observably equivalent to calling
// ejectItem per position.
type batcher struct {
	r         *Ring
	batch     []evictBatchEntry
	batchSize int
	isFullDrain bool
}

type evictBatchEntry struct {
	pos int64
	del bool
}

func (r *Ring) newBatcher(isFullDrain bool) *batcher {
	return &batcher{r: r, batchSize: r.drainParallelItems, isFullDrain: isFullDrain}
}

func (b *batcher) add(pos int64, del bool) {
	if b.r.transport == nil {
		b.r.ejectItem(pos, del, b.isFullDrain)
		return
	}
	b.batch = append(b.batch, evictBatchEntry{pos: pos, del: del})
	if len(b.batch) >= b.batchSize {
		b.flush()
	}
}

func (b *batcher) flush() {
	if len(b.batch) == 0 {
		return
	}
	if b.r.transport == nil {
		for _, e := range b.batch {
			b.r.ejectItem(e.pos, e.del, b.isFullDrain)
		}
		b.batch = b.batch[:0]
		return
	}

	req := make([]evict.EjectRequest, len(b.batch))
	for i, e := range b.batch {
		req[i] = evict.EjectRequest{Pos: e.pos, Del: e.del}
	}
	ctx, cancel := backgroundCtx()
	defer cancel()
	if err := b.r.transport.EjectBatch(ctx, req); err != nil {
		b.r.log.Errorf("parallel eject batch of %d failed, falling back to inline: %v", len(req), err)
		for _, e := range b.batch {
			b.r.ejectItem(e.pos, e.del, b.isFullDrain)
		}
	}
	b.batch = b.batch[:0]
}
