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
	"errors"

	internalshm "github.com/srediag/shmmap/internal/shm"
)

// Error is a failure of one mapping stage; see Stage. Code holds the errno
// or Win32 error code when the OS reported the failure.
type Error = internalshm.Error

// Stage identifies where in the mapping pipeline an Error happened.
type Stage = internalshm.Stage

const (
	StageValidate  = internalshm.StageValidate
	StageClassify  = internalshm.StageClassify
	StageSize      = internalshm.StageSize
	StageAcquire   = internalshm.StageAcquire
	StageEstablish = internalshm.StageEstablish
	StageRelease   = internalshm.StageRelease
)

// Kind is the class of backing store behind a Region.
type Kind = internalshm.Kind

const (
	KindRegularFile  = internalshm.KindRegularFile
	KindSharedMemory = internalshm.KindSharedMemory
)

// ShmRoot is the location prefix that designates a shared-memory segment.
const ShmRoot = internalshm.ShmRoot

var (
	// ErrSizing is returned when no positive mapping length can be resolved.
	ErrSizing = internalshm.ErrSizing
	// ErrInvalidName is returned for an unusable segment name.
	ErrInvalidName = internalshm.ErrInvalidName
	// ErrUnsupported is returned when the platform lacks an operation.
	ErrUnsupported = internalshm.ErrUnsupported
	// ErrNotMapped is returned by operations on a released region.
	ErrNotMapped = internalshm.ErrNotMapped

	// ErrInvalidLocation is returned for an empty location.
	ErrInvalidLocation = errors.New("location must not be empty")
	// ErrMapperClosed is returned by Map after Mapper.Close.
	ErrMapperClosed = errors.New("mapper is closed")
	// ErrNoSpace is returned when the shared-memory filesystem cannot hold
	// a requested growth.
	ErrNoSpace = errors.New("not enough space left on shared memory filesystem")
)

// StageOf returns the stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	return internalshm.StageOf(err)
}

// Classify reports the backing-store kind and name for location without
// touching the filesystem.
func Classify(location string) (Kind, string) {
	return internalshm.Classify(location)
}

// UnlinkSegment removes a named shared-memory segment. Existing mappings
// stay valid. It is unsupported where segments are not filesystem objects.
func UnlinkSegment(name string) error {
	return internalshm.UnlinkSegment(name)
}

// Stages lists every pipeline stage in order.
func Stages() []Stage {
	return internalshm.Stages()
}
