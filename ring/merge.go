package ring

// merge combines a prior compact record with an incoming human-keyed
// field set according to the lock/immutable/mutable policy in spec.md
// §4.3, and returns the resulting record.
//
// The locked snapshot is taken once, before the loop, and never
// re-read even if this same call is the one that sets the lock field —
// a field that introduces the lock does not itself lock the rest of
// the fields written in the same call. This is spec.md's first Open
// Question, resolved to preserve the source's exact (surprising)
// behavior: locking only takes effect starting with the *next* call.
func merge(schema *Schema, current Record, incoming map[string]string) Record {
	if current == nil {
		current = Record{}
	}

	_, locked := current[schema.lockSlotKey]
	if schema.lockSlotKey == "" {
		locked = false
	}

	for name, value := range incoming {
		slotKey, known := schema.storageMap[name]
		if !known {
			continue // field not in schema
		}
		if value == "" {
			continue // empty string is the "unset" sentinel
		}

		_, slotOccupied := current[slotKey]

		canWrite := !slotOccupied
		if !canWrite {
			notImmutable := !schema.immutableNames[name]
			unlockedOrMutable := !locked || schema.mutableNames[name]
			canWrite = notImmutable && unlockedOrMutable
		}

		if canWrite {
			current[slotKey] = value
		}
	}

	return current
}
