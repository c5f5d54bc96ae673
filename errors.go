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

import "errors"

// All non-fatal failures are reported synchronously at the call that caused
// them, wrapped around one of these sentinels (match with errors.Is). None
// are retried internally. Corrupted table invariants (a probe sequence
// exceeding capacity) are not errors but panics: they indicate an
// inconsistent hash/equality strategy and are not caller-recoverable.
var (
	// ErrDuplicateKey is returned by Add for a key already present.
	ErrDuplicateKey = errors.New("flatmap: duplicate key")

	// ErrKeyNotFound is returned by Lookup for a missing key.
	ErrKeyNotFound = errors.New("flatmap: key not found")

	// ErrInvalidArgument is returned for malformed copy-buffer arguments
	// and for Shrink targets below the live count or the capacity floor.
	ErrInvalidArgument = errors.New("flatmap: invalid argument")
)
