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

package shm

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	internalshm "github.com/srediag/shmmap/internal/shm"
)

// Release triggers, as recorded in the journal and metrics.
const (
	triggerClose     = "close"
	triggerCollected = "collected"
	triggerMapper    = "mapper"
)

// Region is one live mapping of a file or shared-memory segment.
//
// The mapping is released exactly once: by Close, by the owning Mapper's
// Close, or when the garbage collector finds the Region unreachable. Slices
// returned by Bytes and View point into the mapping and do not keep the
// Region alive; hold the *Region for as long as they are used.
type Region struct {
	b       *binding
	cleanup runtime.Cleanup
}

// binding owns the mapping on behalf of a Region. It must never point back
// at its Region, otherwise the cleanup would keep the Region reachable.
type binding struct {
	mapping  *internalshm.MappedRegion
	mapper   *Mapper
	id       string
	size     int64
	origin   string
	mappedAt time.Time
	done     atomic.Bool
}

// release runs the native teardown once and reports it to the mapper.
func (b *binding) release(trigger string) error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	err := b.mapping.Release()
	b.mapper.released(b, trigger, err)
	return err
}

func newRegion(b *binding) *Region {
	r := &Region{b: b}
	r.cleanup = runtime.AddCleanup(r, func(b *binding) {
		_ = b.release(triggerCollected)
	}, b)
	return r
}

// Bytes returns the mapped memory, or nil after the region is released.
func (r *Region) Bytes() []byte {
	return r.b.mapping.Bytes()
}

// Len returns the mapped length in bytes.
func (r *Region) Len() int {
	return r.b.mapping.Len()
}

// Location returns the location the region was mapped from.
func (r *Region) Location() string {
	return r.b.mapping.Location
}

// Name returns the segment name for shared memory, or the path for files.
func (r *Region) Name() string {
	return r.b.mapping.Name
}

// Kind returns the kind of backing store.
func (r *Region) Kind() Kind {
	return r.b.mapping.Kind
}

// Grown reports whether the backing store was extended for this mapping.
func (r *Region) Grown() bool {
	return r.b.mapping.Grown
}

// GrowErr returns why a requested growth fell back to the store's existing
// size, or nil.
func (r *Region) GrowErr() error {
	return r.b.mapping.GrowErr
}

// ID returns the identifier the owning Mapper tracks the region under.
func (r *Region) ID() string {
	return r.b.id
}

// Sync flushes modified pages to the backing store.
func (r *Region) Sync() error {
	err := r.b.mapping.Sync()
	runtime.KeepAlive(r)
	return err
}

// Closed reports whether the mapping has been released.
func (r *Region) Closed() bool {
	return r.b.done.Load()
}

// Close releases the mapping. Calls after the first return nil.
func (r *Region) Close() error {
	r.cleanup.Stop()
	return r.b.release(triggerClose)
}

// View reinterprets the region as a slice of T holding Len()/sizeof(T)
// elements. T must not contain Go pointers. The slice shares the region's
// lifetime rules and is nil once the region is released.
func View[T any](r *Region) []T {
	data := r.Bytes()
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || len(data) < size {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), len(data)/size)
}

// MapView maps location with the default mapper and returns the region
// together with a typed view over it.
func MapView[T any](location string, length int64) (*Region, []T, error) {
	r, err := Map(location, length)
	if err != nil {
		return nil, nil, err
	}
	return r, View[T](r), nil
}
