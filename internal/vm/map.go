package vm

import "unsafe"

var (
	mapSize      = int(unsafe.Sizeof(ObjMap{}))
	mapEntrySize = int(unsafe.Sizeof(MapEntry{}))
)

// NewMap creates an empty map. The entry array is not allocated until the
// first insert.
func (vm *VM) NewMap() *ObjMap {
	vm.allocate(mapSize)
	m := &ObjMap{}
	vm.initObj(m, KindMap, vm.MapClass)
	return m
}

// addEntry inserts key and value into entries using open addressing with
// linear probing. Returns true if this is the first time key was added.
// The caller guarantees the array has open slots, so the probe terminates.
func addEntry(entries []MapEntry, key, value Value) bool {
	index := int(HashValue(key) % uint32(len(entries)))

	for {
		entry := &entries[index]

		if entry.Key.IsUndefined() {
			// An open slot means the key is not in the table. Don't
			// stop at a tombstone, though: the key may still occur
			// after it.
			if entry.Value.IsFalse() {
				entry.Key = key
				entry.Value = value
				return true
			}
		} else if ValuesEqual(entry.Key, key) {
			// The key already exists; just replace the value.
			entry.Value = value
			return false
		}

		index = (index + 1) % len(entries)
	}
}

// resizeMap rebuilds the map's entry array at the given capacity,
// rehashing the live entries and dropping tombstones.
func (vm *VM) resizeMap(m *ObjMap, capacity int) {
	vm.allocateArray(mapEntrySize, capacity)
	entries := make([]MapEntry, capacity)
	for i := range entries {
		entries[i].Key = UndefinedVal
		entries[i].Value = FalseVal
	}

	for i := range m.Entries {
		entry := &m.Entries[i]
		if entry.Key.IsUndefined() {
			continue
		}
		addEntry(entries, entry.Key, entry.Value)
	}

	m.Entries = entries
}

// findEntry returns the entry for key, or nil if the map does not contain
// it. Tombstones are probed past; the search stops at the first truly
// empty slot.
func findEntry(m *ObjMap, key Value) *MapEntry {
	if len(m.Entries) == 0 {
		return nil
	}

	index := int(HashValue(key) % uint32(len(m.Entries)))

	for {
		entry := &m.Entries[index]

		if entry.Key.IsUndefined() {
			// An empty slot ends the probe; a tombstone does not.
			if entry.Value.IsFalse() {
				return nil
			}
		} else if ValuesEqual(entry.Key, key) {
			return entry
		}

		index = (index + 1) % len(m.Entries)
	}
}

// MapGet returns the value for key, or undefined if the map does not
// contain it.
func MapGet(m *ObjMap, key Value) Value {
	if entry := findEntry(m, key); entry != nil {
		return entry.Value
	}
	return UndefinedVal
}

// MapSet associates key with value, replacing any existing association.
func (vm *VM) MapSet(m *ObjMap, key, value Value) {
	// If the map is getting too full, make room first.
	if m.Count+1 > m.Capacity()*MapLoadPercent/100 {
		capacity := m.Capacity() * GrowFactor
		if capacity < MinCapacity {
			capacity = MinCapacity
		}
		vm.resizeMap(m, capacity)
	}

	if addEntry(m.Entries, key, value) {
		m.Count++
	}
}

// MapClear removes every entry and releases the entry array.
func (vm *VM) MapClear(m *ObjMap) {
	vm.Reallocate(0, 0)
	m.Entries = nil
	m.Count = 0
}

// MapRemoveKey removes key and returns its value, or null if the map did
// not contain it.
func (vm *VM) MapRemoveKey(m *ObjMap, key Value) Value {
	entry := findEntry(m, key)
	if entry == nil {
		return NullVal
	}

	// Turn the slot into a tombstone so probes for keys that collided
	// with this one keep going past it.
	value := entry.Value
	entry.Key = UndefinedVal
	entry.Value = TrueVal

	if value.IsObj() {
		vm.PushRoot(value.AsObj())
	}

	m.Count--

	if m.Count == 0 {
		// Removed the last entry; drop the array entirely.
		vm.MapClear(m)
	} else if m.Capacity() > MinCapacity &&
		m.Count < m.Capacity()/GrowFactor*MapLoadPercent/100 {
		// The map is getting empty; shrink the entry array back down.
		capacity := m.Capacity() / GrowFactor
		if capacity < MinCapacity {
			capacity = MinCapacity
		}
		vm.resizeMap(m, capacity)
	}

	if value.IsObj() {
		vm.PopRoot()
	}
	return value
}
