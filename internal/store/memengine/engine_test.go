package memengine

import (
	"testing"

	"github.com/Forensiq/indexedRingBuffer/internal/store"
	"github.com/Forensiq/indexedRingBuffer/ring/ringtest"
)

func TestEngine(t *testing.T) {
	ringtest.RunEngineTests(t, "memengine", func() store.Engine {
		return New()
	})
}
