// Package ring implements the indexed ring-buffer cache: a
// fixed-capacity, FIFO-style store keyed by user-supplied identifiers,
// with automatic capacity control and pluggable eviction fan-out.
package ring

import (
	"context"
	"strconv"
	"time"

	"github.com/Forensiq/indexedRingBuffer/evict"
	"github.com/Forensiq/indexedRingBuffer/internal/log"
	"github.com/Forensiq/indexedRingBuffer/internal/store"
)

// Ring is the Ring Core: it owns the slot cursor, performs insert/merge,
// tracks the id-to-slot index, enforces the drain gate, and drives the
// Capacity Controller. All durable state lives in the injected
// store.Engine — Ring itself is a thin, effectively stateless facade,
// safe to share across goroutines without any additional locking.
type Ring struct {
	schema *Schema
	store  store.Engine
	sink   evict.Sink
	transport evict.ParallelTransport

	drainParallelItems int
	controller         *controller

	log log.Logger
}

// New builds a Ring from cfg, wiring it to the given store.Engine and
// eviction collaborators. transport may be nil, in which case ejection
// is always performed inline.
func New(cfg Config, eng store.Engine, sink evict.Sink, transport evict.ParallelTransport) (*Ring, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	schema, err := NewSchema(cfg.ParamList)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = evict.NoopSink{}
	}

	r := &Ring{
		schema:              schema,
		store:               eng,
		sink:                sink,
		transport:           transport,
		drainParallelItems:  cfg.DrainParallelItems,
		log:                 log.Get("ring"),
	}

	// initialize stats namespace only if this is a fresh ring (a shared
	// store surviving a process restart already has these keys).
	if _, ok, _ := eng.Get(nsStats, keyServerStart); !ok {
		r.setString(nsStats, keyServerStart, isoUTC(time.Now()))
		r.setInt64(nsStats, keyCurrentSize, cfg.InitialSize)
		r.setInt64(nsStats, keyPos, 0)
		r.setInt64(nsStats, keyItemCount, 0)
		r.setString(nsStats, keyPeriodStart, strconv.FormatInt(time.Now().Unix(), 10))
	}

	if cfg.AutoResize {
		r.controller = newController(r, cfg)
	}

	return r, nil
}

// Set inserts or merges fields into the record for id. See spec.md §4.2
// for the exact insert/merge/evict protocol this implements.
func (r *Ring) Set(id string, fields map[string]string) error {
	if r.isDraining() {
		return nil // dropped: the ring is being emptied
	}

	r.incr(nsStats, keyTotalReqCount, 1)

	if posStr, ok, err := r.store.Get(nsIndex, id); err == nil && ok {
		pos, perr := strconv.ParseInt(posStr, 10, 64)
		if perr == nil {
			if updated, err := r.updateExisting(pos, id, fields); err != nil {
				r.log.Errorf("set(%s): update failed: %v", id, err)
			} else if updated {
				return nil
			}
			// slot was stale (empty or owned by someone else) - fall
			// through to insert as a new id.
		}
	} else if err != nil {
		r.log.Errorf("set(%s): index lookup failed: %v", id, err)
	}

	return r.insertNew(id, fields)
}

// updateExisting attempts the "existing id" path from spec.md §4.2 step
// 3. It returns updated=false (with no error) if the index entry turned
// out to be stale, so the caller can fall through to insertion.
func (r *Ring) updateExisting(pos int64, id string, fields map[string]string) (bool, error) {
	slotKey := strconv.FormatInt(pos, 10)
	raw, ok, err := r.store.Get(nsRing, slotKey)
	if err != nil {
		return false, err
	}
	if !ok {
		// stale index entry: self-heal by deleting it.
		r.deleteKey(nsIndex, id)
		return false, nil
	}

	env, err := decodeSlot(raw)
	if err != nil {
		return false, err
	}
	if env.ID != id {
		// slot was reused by another id since the index was read.
		r.deleteKey(nsIndex, id)
		return false, nil
	}

	env.Record = merge(r.schema, env.Record, fields)
	encoded, err := encodeSlot(env)
	if err != nil {
		return false, err
	}
	if err := r.store.Set(nsRing, slotKey, encoded); err != nil {
		return false, err
	}
	return true, nil
}

// insertNew performs the "new id" path from spec.md §4.2 step 4.
func (r *Ring) insertNew(id string, fields map[string]string) error {
	currentSize := r.getInt64(nsStats, keyCurrentSize, 1)

	pos := r.incr(nsStats, keyPos, 1)
	if pos > currentSize {
		pos = 1
		r.setInt64(nsStats, keyPos, 1)
	}
	slotKey := strconv.FormatInt(pos, 10)

	if raw, ok, err := r.store.Get(nsRing, slotKey); err != nil {
		r.log.Errorf("set(%s): read occupant of slot %d failed: %v", id, pos, err)
	} else if ok {
		if env, derr := decodeSlot(raw); derr == nil {
			r.dispatchEject(pos, env, false, true)
		} else {
			r.log.Errorf("set(%s): decode occupant of slot %d failed: %v", id, pos, derr)
		}
	}

	record := merge(r.schema, r.schema.emptyRecord(), fields)
	encoded, err := encodeSlot(slotEnvelope{ID: id, Record: record})
	if err != nil {
		return err
	}
	r.setString(nsIndex, id, slotKey)
	if err := r.store.Set(nsRing, slotKey, encoded); err != nil {
		r.log.Errorf("set(%s): write to slot %d failed: %v", id, pos, err)
	}

	r.incr(nsStats, keyTotalItemCount, 1)
	if r.controller != nil {
		r.controller.onInsert()
	}
	return nil
}

// Get returns the readable projection of id's record, or ok=false if
// absent. Stale index entries may produce a miss; this is not
// self-healed on the read path (spec.md §4.2).
func (r *Ring) Get(id string) (map[string]string, bool, error) {
	posStr, ok, err := r.store.Get(nsIndex, id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	raw, ok, err := r.store.Get(nsRing, posStr)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		r.log.Warningf("get(%s): stale index entry pointing at empty slot %s", id, posStr)
		return nil, false, nil
	}
	env, err := decodeSlot(raw)
	if err != nil {
		return nil, false, err
	}
	if env.ID != id {
		r.log.Warningf("get(%s): stale index entry, slot %s now owned by %q", id, posStr, env.ID)
		return nil, false, nil
	}
	return makeReadable(r.schema, env.Record), true, nil
}

// Stats returns a snapshot of the ring's counters.
func (r *Ring) Stats() (Stats, error) {
	currentSize := r.getInt64(nsStats, keyCurrentSize, 0)
	totalReq := r.getInt64(nsStats, keyTotalReqCount, 0)
	totalItems := r.getInt64(nsStats, keyTotalItemCount, 0)
	lastAvg := r.getFloat64(nsStats, keyLastPeriodAvgMins, 0)
	serverStartStr, _, _ := r.store.Get(nsStats, keyServerStart)

	var reqsPerSec, itemsPerSec float64
	if t, err := time.Parse(time.RFC3339, serverStartStr); err == nil {
		elapsed := time.Since(t).Seconds()
		if elapsed > 0 {
			reqsPerSec = float64(totalReq) / elapsed
			itemsPerSec = float64(totalItems) / elapsed
		}
	}

	return Stats{
		CurrentSize:       currentSize,
		TotalReqCount:     totalReq,
		TotalItemCount:    totalItems,
		ReqsPerSecond:     reqsPerSec,
		ItemsPerSecond:    itemsPerSec,
		LastPeriodAvgMins: lastAvg,
		Draining:          r.isDraining(),
		ServerStart:       serverStartStr,
	}, nil
}

func (r *Ring) isDraining() bool {
	_, ok, err := r.store.Get(nsRing, keyDraining)
	if err != nil {
		r.log.Errorf("draining check failed: %v", err)
		return false
	}
	return ok
}

// backgroundCtx bounds each transport batch call made by (*batcher).flush;
// the Drain and Resize sweeps that drive the batcher do not pass their
// own context through to it.
func backgroundCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
