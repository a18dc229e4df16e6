// Package internal holds the replicated log entry format for raftengine.
// Kept separate from raftengine itself the same way dKV keeps its
// dstore/internal package separate from dstore.
package internal

import (
	"bytes"
	"encoding/gob"
)

// CommandType identifies which store.Engine primitive a Command applies.
type CommandType uint8

const (
	CommandTSet CommandType = iota
	CommandTDelete
	CommandTIncr
	CommandTAdd
	CommandTFlushAll
)

func (t CommandType) String() string {
	switch t {
	case CommandTSet:
		return "Set"
	case CommandTDelete:
		return "Delete"
	case CommandTIncr:
		return "Incr"
	case CommandTAdd:
		return "Add"
	case CommandTFlushAll:
		return "FlushAll"
	default:
		return "Unknown"
	}
}

// Command is a single replicated log entry. Every write primitive on
// store.Engine becomes exactly one Command applied by the state machine.
type Command struct {
	Type  CommandType
	Key   string
	Value string
	Delta int64
}

// Serialize gob-encodes the command, mirroring the encoding choice
// available via rpc/serializer.NewGOBSerializer in the RPC layer.
func (c *Command) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a Command previously produced by Serialize.
func (c *Command) Deserialize(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(c)
}

// Query is the read-only counterpart to Command, answered via the state
// machine's Lookup method instead of the replicated log.
type Query struct {
	Key string
}

// QueryResult is what Lookup returns for a Query.
type QueryResult struct {
	Value string
	Ok    bool
}
