package ring

import (
	"fmt"
	"strconv"
)

// ParamSpec describes one field of a Record, as supplied by the caller
// building a Schema. At most one ParamSpec in a schema may set LockKey.
type ParamSpec struct {
	// Name is the human-readable field name used by Set/Get callers.
	Name string
	// Immutable fields, once set to a non-empty value, can never be
	// overwritten by a later merge.
	Immutable bool
	// Mutable fields may always be overwritten, even after the record
	// has been locked by its LockKey field.
	Mutable bool
	// LockKey marks the (at most one) field whose presence flips a
	// record into locked mode. See merge.go for the exact semantics.
	LockKey bool
}

// Schema is the compiled, immutable field layout derived from a
// []ParamSpec. It is built once at Ring construction and never modified
// afterwards.
type Schema struct {
	params []ParamSpec

	// storageMap maps a human field name to its compact slot-key.
	storageMap map[string]string
	// namesBySlot is the inverse of storageMap, used by makeReadable.
	namesBySlot map[string]string

	immutableNames map[string]bool
	mutableNames   map[string]bool

	// lockSlotKey is the slot-key of the LockKey field, or "" if the
	// schema declares none.
	lockSlotKey string
}

// NewSchema compiles an ordered parameter list into a Schema. Slot-keys
// are assigned as the 1-based index of each parameter, rendered as a
// decimal string so records stay compactly serializable.
func NewSchema(params []ParamSpec) (*Schema, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("ring: schema requires at least one field")
	}

	s := &Schema{
		params:         params,
		storageMap:     make(map[string]string, len(params)),
		namesBySlot:    make(map[string]string, len(params)),
		immutableNames: make(map[string]bool),
		mutableNames:   make(map[string]bool),
	}

	seenLock := false
	for i, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("ring: schema field %d has an empty name", i)
		}
		if _, dup := s.storageMap[p.Name]; dup {
			return nil, fmt.Errorf("ring: duplicate schema field name %q", p.Name)
		}

		slotKey := strconv.Itoa(i + 1)
		s.storageMap[p.Name] = slotKey
		s.namesBySlot[slotKey] = p.Name

		if p.Immutable {
			s.immutableNames[p.Name] = true
		}
		if p.Mutable {
			s.mutableNames[p.Name] = true
		}
		if p.LockKey {
			if seenLock {
				return nil, fmt.Errorf("ring: schema declares more than one lockKey field")
			}
			seenLock = true
			s.lockSlotKey = slotKey
		}
	}

	return s, nil
}

// emptyRecord returns the canonical, empty starting point for a fresh id.
func (s *Schema) emptyRecord() Record {
	return Record{}
}
