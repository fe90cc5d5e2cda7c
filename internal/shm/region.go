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
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// MappedRegion is a live mapping together with the native resources that
// back it. It is the only owner of those resources; Release tears them down
// once and later calls are no-ops.
type MappedRegion struct {
	Location string
	Name     string
	Kind     Kind
	// Grown reports whether the store was extended for this mapping.
	Grown bool
	// GrowErr is the failure that made a requested growth fall back to the
	// store's existing size.
	GrowErr error

	// mu is held shared while the view is read and exclusively while it
	// is torn down.
	mu       sync.RWMutex
	res      *resources
	released atomic.Bool
}

// Bytes returns the mapped memory, or nil once the region is released.
// The slice must not be used after Release.
func (r *MappedRegion) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.released.Load() {
		return nil
	}
	return r.res.bytes()
}

// Len returns the mapped length in bytes.
func (r *MappedRegion) Len() int {
	return len(r.Bytes())
}

// Sync flushes modified pages to the backing store.
func (r *MappedRegion) Sync() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.released.Load() {
		return &Error{Stage: StageRelease, Op: "sync", Path: r.Location, Err: ErrNotMapped}
	}
	return r.res.sync()
}

// Released reports whether Release has run.
func (r *MappedRegion) Released() bool {
	return r.released.Load()
}

// Release unmaps the view, then closes the mapping object and the store
// handle. Every step runs even if an earlier one fails.
func (r *MappedRegion) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	return r.res.release()
}

// MapRegion maps the store named by opts.Location.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Stage: StageValidate, Op: "map", Path: opts.Location, Err: err}
	}
	return mapRegion(sys, &opts)
}

func mapRegion(p platform, opts *MapOptions) (*MappedRegion, error) {
	if opts.Location == "" {
		return nil, &Error{Stage: StageClassify, Op: "classify", Err: ErrInvalidName}
	}
	kind, name := Classify(opts.Location)

	res, size, err := p.acquire(kind, name, opts)
	if err != nil {
		return nil, err
	}

	length, err := p.establish(res, size.Length)
	if err == nil && length <= 0 {
		err = &Error{Stage: StageSize, Op: "resolve", Path: opts.Location, Err: ErrSizing}
	}
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Path == "" {
			e.Path = opts.Location
		}
		if rerr := res.release(); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}

	return &MappedRegion{
		Location: opts.Location,
		Name:     name,
		Kind:     kind,
		Grown:    size.Grown,
		GrowErr:  size.GrowErr,
		res:      res,
	}, nil
}
