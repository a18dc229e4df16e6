// Package logsink provides a Sink that logs every eviction through the
// shared internal/log facility. Useful as a default sink for
// operators who have not yet wired a real downstream (archival store,
// message queue, etc).
package logsink

import (
	"github.com/Forensiq/indexedRingBuffer/internal/log"
)

// Sink logs each overwrite or shrink ejection at Info level and each
// full-drain ejection at Debug level.
type Sink struct {
	log log.Logger
}

// New returns a logsink.Sink.
func New() *Sink {
	return &Sink{log: log.Get("evict/logsink")}
}

func (s *Sink) Eject(id string, record map[string]string, isFullDrain bool) {
	if isFullDrain {
		s.log.Debugf("drain-evicted id=%s fields=%d", id, len(record))
		return
	}
	s.log.Infof("evicted id=%s fields=%d", id, len(record))
}
