package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/Forensiq/indexedRingBuffer/evict"
)

// EjectFunc performs one local eject; it is the receiving end of a
// Batch delivered by HTTPParallelTransport. Implementations are
// expected to be ring.Ring.EjectLocal (or equivalent).
type EjectFunc func(req evict.EjectRequest)

// Handler returns an http.HandlerFunc suitable for mounting at an
// eject endpoint (spec.md's "/internal/eject" analogue of an upstream
// notification receiver). It decodes a Batch and invokes eject once
// per entry, synchronously, before responding.
func Handler(eject EjectFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var batch Batch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, "malformed batch: "+err.Error(), http.StatusBadRequest)
			return
		}
		for _, item := range batch.Items {
			eject(item)
		}
		w.WriteHeader(http.StatusOK)
	}
}
