package raftengine

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Forensiq/indexedRingBuffer/internal/store/raftengine/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// namespaceStateMachine replicates a single store.Engine namespace over
// Raft. One shard per namespace, mirroring how dKV gives each shard its
// own db.KVDB instance in KVStateMachine.
type namespaceStateMachine struct {
	shardID   uint64
	replicaID uint64
	data      map[string]string
}

// newStateMachineFactory returns the factory dragonboat calls per-replica
// to construct the state machine for a shard.
func newStateMachineFactory() func(shardID, replicaID uint64) sm.IStateMachine {
	return func(shardID, replicaID uint64) sm.IStateMachine {
		return &namespaceStateMachine{
			shardID:   shardID,
			replicaID: replicaID,
			data:      make(map[string]string),
		}
	}
}

// Lookup answers a Query without going through the replicated log.
func (fsm *namespaceStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, fmt.Errorf("raftengine: invalid query type %T", itf)
	}
	v, ok := fsm.data[q.Key]
	return internal.QueryResult{Value: v, Ok: ok}, nil
}

// Update applies one replicated Command to the shard's local map.
func (fsm *namespaceStateMachine) Update(entry sm.Entry) (sm.Result, error) {
	cmd := internal.Command{}
	if err := cmd.Deserialize(entry.Cmd); err != nil {
		return sm.Result{Value: 0, Data: []byte(err.Error())}, nil
	}

	switch cmd.Type {
	case internal.CommandTSet:
		fsm.data[cmd.Key] = cmd.Value
	case internal.CommandTDelete:
		delete(fsm.data, cmd.Key)
	case internal.CommandTIncr:
		var cur int64
		if old, ok := fsm.data[cmd.Key]; ok {
			cur, _ = strconv.ParseInt(old, 10, 64)
		}
		cur += cmd.Delta
		fsm.data[cmd.Key] = strconv.FormatInt(cur, 10)
		return sm.Result{Value: uint64(cur)}, nil
	case internal.CommandTAdd:
		if _, ok := fsm.data[cmd.Key]; ok {
			return sm.Result{Value: 0}, nil
		}
		fsm.data[cmd.Key] = cmd.Value
		return sm.Result{Value: 1}, nil
	case internal.CommandTFlushAll:
		fsm.data = make(map[string]string)
	default:
		return sm.Result{Value: 0, Data: []byte(fmt.Sprintf("unknown command type %s", cmd.Type))}, nil
	}
	return sm.Result{Value: 1}, nil
}

// SaveSnapshot writes the shard's map as a length-prefixed key/value
// stream, the same "everything fits in memory, just walk it" strategy
// dKV's maple engine uses for its own Save.
func (fsm *namespaceStateMachine) SaveSnapshot(w io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	for k, v := range fsm.data {
		if err := writeString(w, k); err != nil {
			return err
		}
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

// RecoverFromSnapshot rebuilds the shard's map from a stream written by
// SaveSnapshot.
func (fsm *namespaceStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	data := make(map[string]string)
	for {
		k, err := readString(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		v, err := readString(r)
		if err != nil {
			return err
		}
		data[k] = v
	}
	fsm.data = data
	return nil
}

func (fsm *namespaceStateMachine) Close() error { return nil }

func writeString(w io.Writer, s string) error {
	length := uint32(len(s))
	if err := writeUint32(w, length); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	length, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeUint32(w io.Writer, v uint32) error {
	buf := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := w.Write(buf)
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}
