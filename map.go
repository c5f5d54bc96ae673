// Copyright 2025 The Flatmap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flatmap implements an open-addressing hash map that stores every
// entry directly in a flat slot array, resolving collisions with triangular
// probing rather than chaining. It is intended for workloads where the
// allocation and pointer-chasing costs of a general-purpose hash table are
// unacceptable: every operation is allocation-free except at resize
// boundaries, and failed probe candidates touch only a dense 4-byte-per-slot
// hash array.
//
// # Layout
//
// A Map's storage is two parallel arrays of identical power-of-two length:
// a uint32 hash array and a key/value entry array. Slot state is encoded in
// the hash array using two reserved bit patterns (0xFFFFFFFF for an unused
// slot, 0xFFFFFFFE for a deletion tombstone); key hashes are masked into a
// 31-bit range so they can never collide with either sentinel. Probing scans
// only the hash array and touches key/value memory after a full 31-bit hash
// match, which keeps the bytes-per-failed-candidate low at the cost of one
// extra indirection on a hit. A colocated record layout would win at very
// low load factors where the first probe usually hits; the separated layout
// was chosen because the table runs at up to 7/8 load.
//
// # Probing
//
// The probe sequence for a key starts at hash&(capacity-1) and advances by
// accumulating triangular increments (offsets 1, 3, 6, 10, ...). For
// power-of-two capacities this sequence is a permutation of all slots, so a
// probe that has not terminated within capacity steps proves the table's
// invariants are corrupted (for example by a hash function that is not
// stable across calls) and panics. Lookup terminates at the first unused
// slot; tombstones are skipped, never terminal. Insertion remembers the
// first tombstone it passes and keeps scanning until it either finds the
// key (upsert) or an unused slot; only then may the tombstone be reused.
// Insertion must not stop early at a tombstone: the key could have been
// placed beyond it while the tombstone's slot was still occupied, and
// stopping would duplicate the key.
//
// # Deletion and growth
//
// Deleted entries become tombstones so probe sequences passing through them
// remain correct. Tombstones are reclaimed only when the whole slot array is
// rebuilt: on growth (doubling, triggered when live+tombstone usage crosses
// the growth threshold), on explicit Shrink, and proactively on Delete when
// tombstone density threatens probe-length blowup.
//
// A Map is NOT goroutine-safe.
package flatmap

import (
	"fmt"
	"strings"
)

const (
	// Reserved hash bit patterns encoding slot state. Key hashes are
	// masked to maxSlotHash so neither pattern can be produced by a real
	// key. Values between maxSlotHash and slotDeleted never occur.
	slotUnused  uint32 = 0xFFFFFFFF
	slotDeleted uint32 = 0xFFFFFFFE
	maxSlotHash uint32 = 0x7FFFFFFF

	// defaultMinCapacity is the default capacity floor. The capacity of a
	// Map never drops below its floor, including across Shrink and
	// delete-triggered rehashes.
	defaultMinCapacity = 8

	// Default maximum load factor. Growth triggers when
	// used >= capacity*growthNum/growthDen, counting tombstones as used.
	defaultGrowthNum = 7
	defaultGrowthDen = 8
)

// entry holds a key and value. Entries are meaningful only where the
// parallel hash array marks the slot occupied.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// Map is an unordered map from keys to values built on open addressing with
// triangular probing. By default a Map[K,V] hashes keys with the same
// runtime hash facility as Go's builtin map[K]V and compares them with ==;
// both can be replaced via WithStrategy. The zero value is not usable; use
// New or NewFrom.
type Map[K comparable, V any] struct {
	// strategy supplies hash and equality semantics for keys. Stateless
	// strategies may be shared across Maps; NewFrom inherits the source's
	// instance unless overridden.
	strategy Strategy[K]
	// hashes is capacity in length and encodes per-slot state: slotUnused,
	// slotDeleted, or the entry's 31-bit hash.
	hashes []uint32
	// entries is capacity in length, parallel to hashes.
	entries []entry[K, V]
	// capacity is always a power of two >= minCapacity; mask is
	// capacity-1, used to reduce probe offsets.
	capacity int
	mask     uint32
	// live is the number of occupied slots; tombstones the number of
	// deleted slots; used their sum. live <= used <= capacity.
	live       int
	used       int
	tombstones int
	// growthThreshold is capacity*growthNum/growthDen, recomputed whenever
	// storage is rebuilt.
	growthThreshold int
	minCapacity     int
	growthNum       int
	growthDen       int
}

// New constructs a Map with capacity equal to the smallest power of two
// that is >= initialCapacity and >= the capacity floor (8 by default, see
// WithMinCapacity). Zero and negative initialCapacity request the floor.
func New[K comparable, V any](initialCapacity int, options ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		minCapacity: defaultMinCapacity,
		growthNum:   defaultGrowthNum,
		growthDen:   defaultGrowthDen,
	}
	for _, op := range options {
		op.apply(m)
	}
	if m.strategy == nil {
		m.strategy = newRuntimeStrategy[K]()
	}
	m.init(nextPowerOfTwo(initialCapacity, m.minCapacity))
	m.checkInvariants()
	return m
}

// NewFrom constructs a Map holding the same entries as src. When no
// WithStrategy option is supplied the new Map shares src's strategy
// instance and storage is duplicated verbatim: slot placement computed
// under identical hash/equality semantics remains valid. A different
// strategy forces every live entry to be re-probed and placed under the new
// semantics; placement is never transferable across differing strategies.
func NewFrom[K comparable, V any](src *Map[K, V], options ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		minCapacity: src.minCapacity,
		growthNum:   src.growthNum,
		growthDen:   src.growthDen,
	}
	for _, op := range options {
		op.apply(m)
	}

	if m.strategy == nil {
		m.strategy = src.strategy
		m.hashes = append([]uint32(nil), src.hashes...)
		m.entries = append([]entry[K, V](nil), src.entries...)
		m.capacity = src.capacity
		m.mask = src.mask
		m.live = src.live
		m.used = src.used
		m.tombstones = src.tombstones
		m.growthThreshold = m.capacity * m.growthNum / m.growthDen
		m.checkInvariants()
		return m
	}

	// Insert through the full upsert path: distinct source keys may
	// collapse into one under the new equality semantics.
	m.init(nextPowerOfTwo(src.capacity, m.minCapacity))
	src.All(func(key K, value V) bool {
		m.Put(key, value)
		return true
	})
	m.checkInvariants()
	return m
}

// init replaces storage with freshly zeroed arrays of the given power-of-two
// capacity and resets all counts.
func (m *Map[K, V]) init(capacity int) {
	m.hashes = make([]uint32, capacity)
	for i := range m.hashes {
		m.hashes[i] = slotUnused
	}
	m.entries = make([]entry[K, V], capacity)
	m.capacity = capacity
	m.mask = uint32(capacity - 1)
	m.live = 0
	m.used = 0
	m.tombstones = 0
	m.growthThreshold = capacity * m.growthNum / m.growthDen
}

// keyHash computes the strategy hash masked into the 31-bit non-sentinel
// domain.
func (m *Map[K, V]) keyHash(key K) uint32 {
	return m.strategy.Hash(key) & maxSlotHash
}

// find returns the slot index holding key, or -1 if key is absent. The
// probe walks the triangular sequence for h, skipping tombstones, and
// terminates at the first unused slot.
func (m *Map[K, V]) find(h uint32, key K) int {
	bucket := h & m.mask
	for n := uint32(1); ; n++ {
		sh := m.hashes[bucket]
		if sh == h && m.strategy.Equal(m.entries[bucket].key, key) {
			return int(bucket)
		}
		if sh == slotUnused {
			return -1
		}
		if n > uint32(m.capacity) {
			panic(fmt.Sprintf("flatmap: probe sequence for hash %#08x exceeded capacity %d; hash/equality strategy is inconsistent",
				h, m.capacity))
		}
		bucket = (bucket + n) & m.mask
	}
}

// findInsert returns the slot index at which key lives or should be placed,
// and whether key is already present. For an absent key the index is the
// first tombstone passed on the probe sequence if there was one, otherwise
// the terminating unused slot.
func (m *Map[K, V]) findInsert(h uint32, key K) (int, bool) {
	bucket := h & m.mask
	reuse := -1
	for n := uint32(1); ; n++ {
		switch sh := m.hashes[bucket]; {
		case sh == h && m.strategy.Equal(m.entries[bucket].key, key):
			return int(bucket), true
		case sh == slotUnused:
			if reuse >= 0 {
				return reuse, false
			}
			return int(bucket), false
		case sh == slotDeleted && reuse < 0:
			reuse = int(bucket)
		}
		if n > uint32(m.capacity) {
			panic(fmt.Sprintf("flatmap: probe sequence for hash %#08x exceeded capacity %d; hash/equality strategy is inconsistent",
				h, m.capacity))
		}
		bucket = (bucket + n) & m.mask
	}
}

// insertAt writes a new entry into slot i, which must be unused or a
// tombstone.
func (m *Map[K, V]) insertAt(i int, h uint32, key K, value V) {
	if m.hashes[i] == slotDeleted {
		m.tombstones--
	} else {
		m.used++
	}
	m.hashes[i] = h
	m.entries[i] = entry[K, V]{key: key, value: value}
	m.live++
}

// Put inserts an entry into the map, overwriting the value if an entry with
// the same key already exists. Put never fails.
func (m *Map[K, V]) Put(key K, value V) {
	if m.used >= m.growthThreshold {
		m.rehash(m.rehashCapacity(2 * m.capacity))
	}
	h := m.keyHash(key)
	i, found := m.findInsert(h, key)
	if found {
		m.entries[i].value = value
		m.checkInvariants()
		return
	}
	m.insertAt(i, h, key, value)
	m.checkInvariants()
}

// Add inserts an entry into the map and returns ErrDuplicateKey if an entry
// with the same key already exists. The duplicate check happens before any
// state change, so a failed Add leaves the map untouched.
func (m *Map[K, V]) Add(key K, value V) error {
	h := m.keyHash(key)
	i, found := m.findInsert(h, key)
	if found {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, key)
	}
	if m.used >= m.growthThreshold {
		m.rehash(m.rehashCapacity(2 * m.capacity))
		i, _ = m.findInsert(h, key)
	}
	m.insertAt(i, h, key, value)
	m.checkInvariants()
	return nil
}

// Get retrieves the value for key, returning ok=false if key is absent.
// Get performs no mutation and no allocation.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	i := m.find(m.keyHash(key), key)
	if i < 0 {
		return value, false
	}
	return m.entries[i].value, true
}

// Lookup retrieves the value for key, returning ErrKeyNotFound if key is
// absent.
func (m *Map[K, V]) Lookup(key K) (V, error) {
	value, ok := m.Get(key)
	if !ok {
		return value, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return value, nil
}

// Contains reports whether key is present. Same cost as Get.
func (m *Map[K, V]) Contains(key K) bool {
	return m.find(m.keyHash(key), key) >= 0
}

// Delete removes the entry for key, reporting whether an entry was present.
// The slot becomes a tombstone. If afterwards tombstone density threatens
// probe-length blowup (tombstones*1.5 > capacity-used), the map proactively
// rehashes into a capacity sized for the live count, bounding the amortized
// cost of delete-heavy workloads.
func (m *Map[K, V]) Delete(key K) bool {
	i := m.find(m.keyHash(key), key)
	if i < 0 {
		return false
	}
	m.hashes[i] = slotDeleted
	m.entries[i] = entry[K, V]{}
	m.live--
	m.tombstones++
	if 3*m.tombstones > 2*(m.capacity-m.used) {
		m.rehash(m.rehashCapacity(2 * m.live))
	}
	m.checkInvariants()
	return true
}

// Grow ensures the capacity is at least the smallest power of two >= n,
// rebuilding storage if it is not. Growing past the current capacity drops
// all tombstones. Grow never reduces capacity.
func (m *Map[K, V]) Grow(n int) {
	target := m.rehashCapacity(n)
	if target <= m.capacity {
		return
	}
	m.rehash(target)
}

// Shrink rebuilds storage at the smallest power of two >= target that keeps
// the live count below the growth threshold, so shrinking to exactly the
// live count lands one doubling higher than target. A target <= 0 shrinks to
// fit the current live count. An explicit target below the live count or
// below the capacity floor fails with ErrInvalidArgument and performs no
// mutation.
func (m *Map[K, V]) Shrink(target int) error {
	if target <= 0 {
		m.rehash(m.rehashCapacity(m.live))
		return nil
	}
	if target < m.live {
		return fmt.Errorf("%w: shrink target %d below live count %d", ErrInvalidArgument, target, m.live)
	}
	if target < m.minCapacity {
		return fmt.Errorf("%w: shrink target %d below capacity floor %d", ErrInvalidArgument, target, m.minCapacity)
	}
	m.rehash(m.rehashCapacity(target))
	return nil
}

// Clear removes all entries, resetting every slot to unused while retaining
// the current capacity and allocation.
func (m *Map[K, V]) Clear() {
	for i := range m.hashes {
		m.hashes[i] = slotUnused
	}
	clear(m.entries)
	m.live = 0
	m.used = 0
	m.tombstones = 0
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map,
// scanning slots in index order. If yield returns false, iteration stops.
// The arrays are snapshotted up front so a rehash performed by yield does
// not fault the scan, but structural mutation during iteration is otherwise
// undefined behavior: callers needing a stable view must copy entries out
// first.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	hashes, entries := m.hashes, m.entries
	for i, h := range hashes {
		if h <= maxSlotHash {
			if !yield(entries[i].key, entries[i].value) {
				return
			}
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.live
}

// Cap returns the current slot capacity.
func (m *Map[K, V]) Cap() int {
	return m.capacity
}

// IsEmpty reports whether the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.live == 0
}

// Strategy returns the map's hash/equality strategy.
func (m *Map[K, V]) Strategy() Strategy[K] {
	return m.strategy
}

// rehashCapacity returns the smallest power-of-two capacity >= target that
// keeps the live count strictly below the growth threshold. Every rebuild
// must leave unused slots on each probe sequence: a miss search terminates
// only at an unused slot, so a full table would turn lookups of absent keys
// into probe-bound panics.
func (m *Map[K, V]) rehashCapacity(target int) int {
	capacity := nextPowerOfTwo(target, m.minCapacity)
	for m.live >= capacity*m.growthNum/m.growthDen {
		capacity *= 2
	}
	return capacity
}

// rehash rebuilds storage at newCapacity, reinserting live entries and
// discarding tombstones. Growth, Shrink, and the delete-triggered rehash
// are the only mechanisms that reclaim tombstone space.
func (m *Map[K, V]) rehash(newCapacity int) {
	oldHashes, oldEntries := m.hashes, m.entries
	live := m.live
	m.init(newCapacity)
	for i, h := range oldHashes {
		if h <= maxSlotHash {
			m.uncheckedPut(h, oldEntries[i].key, oldEntries[i].value)
		}
	}
	m.live = live
	m.used = live
	m.checkInvariants()
}

// uncheckedPut places an entry known not to be in the table into the first
// unused slot on its probe sequence. Callers maintain the counts.
func (m *Map[K, V]) uncheckedPut(h uint32, key K, value V) {
	bucket := h & m.mask
	for n := uint32(1); ; n++ {
		if m.hashes[bucket] == slotUnused {
			m.hashes[bucket] = h
			m.entries[bucket] = entry[K, V]{key: key, value: value}
			return
		}
		if n > uint32(m.capacity) {
			panic(fmt.Sprintf("flatmap: probe sequence for hash %#08x exceeded capacity %d during rehash",
				h, m.capacity))
		}
		bucket = (bucket + n) & m.mask
	}
}

// nextPowerOfTwo returns floor for v <= floor, otherwise the smallest power
// of two >= v, computed by bit folding. floor must be a power of two.
func nextPowerOfTwo(v, floor int) int {
	if v <= floor {
		return floor
	}
	n := uint32(v - 1)
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return int(n + 1)
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if m.capacity < m.minCapacity || m.capacity&(m.capacity-1) != 0 {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two >= floor %d\n%s",
				m.capacity, m.minCapacity, m.debugString()))
		}
		if m.growthThreshold != m.capacity*m.growthNum/m.growthDen {
			panic(fmt.Sprintf("invariant failed: growth threshold %d, expected %d\n%s",
				m.growthThreshold, m.capacity*m.growthNum/m.growthDen, m.debugString()))
		}
		if m.used >= m.capacity {
			panic(fmt.Sprintf("invariant failed: used %d leaves no unused slot at capacity %d\n%s",
				m.used, m.capacity, m.debugString()))
		}

		// For every occupied slot, verify the stored hash is in the
		// non-sentinel domain and the key is reachable via Get. Count the
		// live and deleted slots.
		var live, tombstones int
		for i, h := range m.hashes {
			switch {
			case h == slotUnused:
			case h == slotDeleted:
				tombstones++
			case h <= maxSlotHash:
				live++
				if h != m.keyHash(m.entries[i].key) {
					panic(fmt.Sprintf("invariant failed: slot %d stores hash %#08x, key hashes to %#08x\n%s",
						i, h, m.keyHash(m.entries[i].key), m.debugString()))
				}
				if _, ok := m.Get(m.entries[i].key); !ok {
					panic(fmt.Sprintf("invariant failed: slot %d key %v not found via Get\n%s",
						i, m.entries[i].key, m.debugString()))
				}
			default:
				panic(fmt.Sprintf("invariant failed: slot %d holds hash %#08x outside the 31-bit domain\n%s",
					i, h, m.debugString()))
			}
		}

		if live != m.live || tombstones != m.tombstones || m.used != m.live+m.tombstones {
			panic(fmt.Sprintf("invariant failed: counted live=%d tombstones=%d, but live=%d used=%d tombstones=%d\n%s",
				live, tombstones, m.live, m.used, m.tombstones, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d live=%d used=%d tombstones=%d growth-threshold=%d\n",
		m.capacity, m.live, m.used, m.tombstones, m.growthThreshold)
	for i, h := range m.hashes {
		switch {
		case h == slotUnused:
			fmt.Fprintf(&buf, "  %4d: unused\n", i)
		case h == slotDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [hash=%#08x home=%d]\n",
				i, m.entries[i].key, h, h&m.mask)
		}
	}
	return buf.String()
}
