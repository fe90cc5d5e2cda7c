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

//go:build unix

package shm

import (
	"errors"
	"math"

	"golang.org/x/sys/unix"
)

// resources is the POSIX resource set: one descriptor and the view over it.
type resources struct {
	fd   int
	data []byte
}

func (r *resources) bytes() []byte {
	return r.data
}

func (r *resources) sync() error {
	if r.data == nil {
		return &Error{Stage: StageRelease, Op: "msync", Err: ErrNotMapped}
	}
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return newError(StageRelease, "msync", "", err)
	}
	return nil
}

func (r *resources) release() error {
	var errs []error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			errs = append(errs, newError(StageRelease, "munmap", "", err))
		}
		r.data = nil
	}
	if r.fd >= 0 {
		if err := unix.Close(r.fd); err != nil {
			errs = append(errs, newError(StageRelease, "close", "", err))
		}
		r.fd = -1
	}
	return errors.Join(errs...)
}

func (native) acquire(kind Kind, name string, opts *MapOptions) (*resources, ResolvedSize, error) {
	var (
		fd  int
		err error
		op  = "open"
	)
	if kind == KindSharedMemory {
		op = "shm_open"
		// Without a length only an existing segment is useful.
		fd, err = openSegment(name, opts.Length > 0, opts.mode())
	} else {
		fd, err = unix.Open(name, unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, opts.mode())
	}
	if err != nil {
		return nil, ResolvedSize{}, newError(StageAcquire, op, opts.Location, err)
	}
	res := &resources{fd: fd}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = res.release()
		return nil, ResolvedSize{}, newError(StageAcquire, "fstat", opts.Location, err)
	}

	grow := opts.grower(kind)
	size, err := ResolveSize(opts.Length, st.Size, func(target int64) error {
		return grow(st.Size, target, func(n int64) error {
			return unix.Ftruncate(fd, n)
		})
	})
	if err != nil {
		_ = res.release()
		if e, ok := err.(*Error); ok {
			e.Path = opts.Location
		}
		return nil, size, err
	}
	return res, size, nil
}

func (native) establish(res *resources, length int64) (int64, error) {
	if length <= 0 || length > math.MaxInt {
		return 0, &Error{Stage: StageSize, Op: "mmap", Err: ErrSizing}
	}
	data, err := unix.Mmap(res.fd, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return 0, newError(StageEstablish, "mmap", "", err)
	}
	res.data = data
	return int64(len(data)), nil
}
