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

package flatmap

import "fmt"

// KeysView is a read-only view over a Map's keys. It is a cheap handle onto
// the live Map: enumeration reflects the Map's current contents, and like
// All it is undefined under concurrent structural mutation.
type KeysView[K comparable, V any] struct {
	m *Map[K, V]
}

// Keys returns a read-only view over the map's keys.
func (m *Map[K, V]) Keys() KeysView[K, V] {
	return KeysView[K, V]{m: m}
}

// Count returns the number of keys, equal to the Map's Len.
func (v KeysView[K, V]) Count() int {
	return v.m.live
}

// All calls yield for each key. If yield returns false, iteration stops.
func (v KeysView[K, V]) All(yield func(key K) bool) {
	v.m.All(func(key K, _ V) bool {
		return yield(key)
	})
}

// CopyTo copies all keys into dst starting at offset and returns the number
// copied. A nil buffer, an out-of-range offset, or fewer than Count()
// remaining elements fail with ErrInvalidArgument.
func (v KeysView[K, V]) CopyTo(dst []K, offset int) (int, error) {
	if err := checkCopyArgs(dst == nil, len(dst), offset, v.m.live); err != nil {
		return 0, err
	}
	i := offset
	v.m.All(func(key K, _ V) bool {
		dst[i] = key
		i++
		return true
	})
	return i - offset, nil
}

// ValuesView is a read-only view over a Map's values, with the same
// lifetime and mutation caveats as KeysView.
type ValuesView[K comparable, V any] struct {
	m *Map[K, V]
}

// Values returns a read-only view over the map's values.
func (m *Map[K, V]) Values() ValuesView[K, V] {
	return ValuesView[K, V]{m: m}
}

// Count returns the number of values, equal to the Map's Len.
func (v ValuesView[K, V]) Count() int {
	return v.m.live
}

// All calls yield for each value. If yield returns false, iteration stops.
func (v ValuesView[K, V]) All(yield func(value V) bool) {
	v.m.All(func(_ K, value V) bool {
		return yield(value)
	})
}

// CopyTo copies all values into dst starting at offset and returns the
// number copied. A nil buffer, an out-of-range offset, or fewer than
// Count() remaining elements fail with ErrInvalidArgument.
func (v ValuesView[K, V]) CopyTo(dst []V, offset int) (int, error) {
	if err := checkCopyArgs(dst == nil, len(dst), offset, v.m.live); err != nil {
		return 0, err
	}
	i := offset
	v.m.All(func(_ K, value V) bool {
		dst[i] = value
		i++
		return true
	})
	return i - offset, nil
}

func checkCopyArgs(nilBuf bool, bufLen, offset, count int) error {
	if nilBuf {
		return fmt.Errorf("%w: nil buffer", ErrInvalidArgument)
	}
	if offset < 0 || offset > bufLen {
		return fmt.Errorf("%w: offset %d out of range for buffer of length %d", ErrInvalidArgument, offset, bufLen)
	}
	if bufLen-offset < count {
		return fmt.Errorf("%w: buffer has room for %d of %d elements", ErrInvalidArgument, bufLen-offset, count)
	}
	return nil
}

// ContainsValue reports whether any entry in m holds the given value. It
// performs a linear scan over every slot, comparing stored values with ==,
// and costs O(capacity); it is provided for completeness only.
func ContainsValue[K, V comparable](m *Map[K, V], value V) bool {
	for i, h := range m.hashes {
		if h <= maxSlotHash && m.entries[i].value == value {
			return true
		}
	}
	return false
}
