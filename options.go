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

// Option provides an interface to do work on Map while it is being created.
type Option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type strategyOption[K comparable, V any] struct {
	strategy Strategy[K]
}

func (op strategyOption[K, V]) apply(m *Map[K, V]) {
	m.strategy = op.strategy
}

// WithStrategy is an option to specify the hash/equality strategy to use
// for a Map[K,V] in place of the runtime default.
func WithStrategy[K comparable, V any](strategy Strategy[K]) Option[K, V] {
	return strategyOption[K, V]{strategy}
}

type minCapacityOption[K comparable, V any] struct {
	n int
}

func (op minCapacityOption[K, V]) apply(m *Map[K, V]) {
	m.minCapacity = nextPowerOfTwo(op.n, 2)
}

// WithMinCapacity is an option to set the Map's capacity floor: the
// capacity never drops below the smallest power of two >= n (minimum 2),
// including across Shrink and delete-triggered rehashes.
func WithMinCapacity[K comparable, V any](n int) Option[K, V] {
	return minCapacityOption[K, V]{n}
}

type maxLoadOption[K comparable, V any] struct {
	num, den int
}

func (op maxLoadOption[K, V]) apply(m *Map[K, V]) {
	if op.num <= 0 || op.den <= 0 || op.num >= op.den {
		panic(fmt.Sprintf("flatmap: invalid max load factor %d/%d", op.num, op.den))
	}
	m.growthNum = op.num
	m.growthDen = op.den
}

// WithMaxLoad is an option to set the growth threshold ratio num/den
// (default 7/8). Growth triggers when live+tombstone usage reaches
// capacity*num/den. The ratio must lie strictly between 0 and 1: a table
// allowed to fill completely would leave miss probes with no unused slot to
// terminate at.
func WithMaxLoad[K comparable, V any](num, den int) Option[K, V] {
	return maxLoadOption[K, V]{num, den}
}
