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

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/maphash"
)

// Strategy supplies the hash and equality semantics for a Map's keys. Hash
// must be stable across calls for equal keys and Equal must be a valid
// equivalence relation; a strategy violating either corrupts the table's
// probe invariants, which the Map treats as fatal. The Map masks hashes
// into a 31-bit range internally, so strategies may use all 32 bits.
//
// Strategies are expected to be stateless (or immutable after
// construction): a single instance may then back any number of Maps, and
// NewFrom relies on instance sharing to duplicate storage verbatim. A
// stateful strategy must not be shared across Maps.
//
// Strategy is an interface rather than a type parameter so that a Map can
// be re-keyed at runtime (NewFrom with a different strategy); the cost is a
// dynamic dispatch in the probe loop.
type Strategy[K comparable] interface {
	Hash(key K) uint32
	Equal(a, b K) bool
}

// runtimeStrategy is the default Strategy: it hashes with the same runtime
// hash facility as Go's builtin map[K]V and compares keys with ==. The
// random seed is fixed at construction, so the instance is immutable and
// shareable.
type runtimeStrategy[K comparable] struct {
	hasher maphash.Hasher[K]
}

func newRuntimeStrategy[K comparable]() *runtimeStrategy[K] {
	return &runtimeStrategy[K]{hasher: maphash.NewHasher[K]()}
}

func (s *runtimeStrategy[K]) Hash(key K) uint32 {
	h := s.hasher.Hash(key)
	return uint32(h>>32) ^ uint32(h)
}

func (s *runtimeStrategy[K]) Equal(a, b K) bool {
	return a == b
}

// StringXXHash is a Strategy for string keys backed by xxHash64. Unlike the
// default strategy it is seedless: the same key hashes to the same value in
// every process, which makes slot layouts reproducible. It is stateless;
// the zero value is ready to use and may be shared freely.
type StringXXHash struct{}

func (StringXXHash) Hash(key string) uint32 {
	h := xxhash.Sum64String(key)
	return uint32(h>>32) ^ uint32(h)
}

func (StringXXHash) Equal(a, b string) bool {
	return a == b
}
