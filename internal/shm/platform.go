/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package shm contains the platform-specific mapping pipeline behind pkg/shm.
//
// A mapping is built in four steps: classify the location, acquire the
// backing store (resolving and growing its size), establish the view and
// hand the result to the caller as a MappedRegion that owns every native
// resource involved. The unix and windows variants live in build-tagged
// files and implement the same acquire/establish/release contract.
package shm

// Kind is the class of backing store a location designates.
type Kind int

const (
	// KindRegularFile is an ordinary filesystem path.
	KindRegularFile Kind = iota
	// KindSharedMemory is a named shared-memory segment under ShmRoot.
	KindSharedMemory
)

func (k Kind) String() string {
	switch k {
	case KindRegularFile:
		return "file"
	case KindSharedMemory:
		return "shm"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Grower extends a backing store from current to target bytes. truncate
// performs the native resize; a Grower may refuse, retry or decorate it.
type Grower func(kind Kind, current, target int64, truncate func(int64) error) error

// MapOptions defines options for mapping a backing store.
type MapOptions struct {
	// Location is a filesystem path or ShmRoot followed by a segment name.
	Location string
	// Length is the requested mapping size. Zero or negative maps the
	// current size of the store.
	Length int64
	// Mode is the permission used when the store has to be created.
	Mode uint32
	// Grow, when set, replaces the bare truncate used to extend a store.
	Grow Grower
}

func (o *MapOptions) mode() uint32 {
	if o.Mode == 0 {
		return 0o600
	}
	return o.Mode
}

func (o *MapOptions) grower(kind Kind) func(current, target int64, truncate func(int64) error) error {
	return func(current, target int64, truncate func(int64) error) error {
		if o.Grow == nil {
			return truncate(target)
		}
		return o.Grow(kind, current, target, truncate)
	}
}

// platform is the per-OS half of the pipeline. acquire opens the store and
// returns the length to map; zero means the length must be discovered from
// the established view. establish maps the view and returns its length.
type platform interface {
	acquire(kind Kind, name string, opts *MapOptions) (*resources, ResolvedSize, error)
	establish(res *resources, length int64) (int64, error)
}

type native struct{}

var sys platform = native{}
