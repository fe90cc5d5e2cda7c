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

//go:build windows

package shm

import (
	"errors"
	"math"
	"unsafe"

	"golang.org/x/sys/windows"
)

const viewAccess = windows.FILE_MAP_READ | windows.FILE_MAP_WRITE

// resources is the Windows resource set. file is InvalidHandle for
// pagefile-backed segments; mapping is the file-mapping object.
type resources struct {
	file    windows.Handle
	mapping windows.Handle
	addr    uintptr
	data    []byte
}

func newResources() *resources {
	return &resources{file: windows.InvalidHandle}
}

func (r *resources) bytes() []byte {
	return r.data
}

func (r *resources) sync() error {
	if r.addr == 0 {
		return &Error{Stage: StageRelease, Op: "FlushViewOfFile", Err: ErrNotMapped}
	}
	if err := windows.FlushViewOfFile(r.addr, uintptr(len(r.data))); err != nil {
		return newError(StageRelease, "FlushViewOfFile", "", err)
	}
	if r.file != windows.InvalidHandle {
		if err := windows.FlushFileBuffers(r.file); err != nil {
			return newError(StageRelease, "FlushFileBuffers", "", err)
		}
	}
	return nil
}

func (r *resources) release() error {
	var errs []error
	if r.addr != 0 {
		if err := windows.UnmapViewOfFile(r.addr); err != nil {
			errs = append(errs, newError(StageRelease, "UnmapViewOfFile", "", err))
		}
		r.addr = 0
		r.data = nil
	}
	if r.mapping != 0 {
		if err := windows.CloseHandle(r.mapping); err != nil {
			errs = append(errs, newError(StageRelease, "CloseHandle(mapping)", "", err))
		}
		r.mapping = 0
	}
	if r.file != windows.InvalidHandle {
		if err := windows.CloseHandle(r.file); err != nil {
			errs = append(errs, newError(StageRelease, "CloseHandle(file)", "", err))
		}
		r.file = windows.InvalidHandle
	}
	return errors.Join(errs...)
}

func (native) acquire(kind Kind, name string, opts *MapOptions) (*resources, ResolvedSize, error) {
	if kind == KindSharedMemory {
		return acquireSegment(name, opts)
	}
	return acquireFile(name, opts)
}

func acquireFile(path string, opts *MapOptions) (*resources, ResolvedSize, error) {
	wpath, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, ResolvedSize{}, newError(StageAcquire, "CreateFile", opts.Location, err)
	}
	res := newResources()
	res.file, err = windows.CreateFile(
		wpath,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_ALWAYS,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		res.file = windows.InvalidHandle
		return nil, ResolvedSize{}, newError(StageAcquire, "CreateFile", opts.Location, err)
	}

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(res.file, &info); err != nil {
		_ = res.release()
		return nil, ResolvedSize{}, newError(StageAcquire, "GetFileInformationByHandle", opts.Location, err)
	}
	current := int64(info.FileSizeHigh)<<32 | int64(info.FileSizeLow)

	grow := opts.grower(KindRegularFile)
	size, err := ResolveSize(opts.Length, current, func(target int64) error {
		return grow(current, target, func(n int64) error {
			return windows.Ftruncate(res.file, n)
		})
	})
	if err != nil {
		_ = res.release()
		if e, ok := err.(*Error); ok {
			e.Path = opts.Location
		}
		return nil, size, err
	}

	hi, lo := splitLength(size.Length)
	res.mapping, err = windows.CreateFileMapping(res.file, nil, windows.PAGE_READWRITE, hi, lo, nil)
	if err != nil {
		res.mapping = 0
		_ = res.release()
		return nil, size, newError(StageAcquire, "CreateFileMapping", opts.Location, err)
	}
	return res, size, nil
}

func acquireSegment(name string, opts *MapOptions) (*resources, ResolvedSize, error) {
	if err := ValidateName(name); err != nil {
		return nil, ResolvedSize{}, newError(StageAcquire, "CreateFileMapping", opts.Location, err)
	}
	wname, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, ResolvedSize{}, newError(StageAcquire, "CreateFileMapping", opts.Location, err)
	}
	res := newResources()

	if opts.Length <= 0 {
		// Pagefile-backed objects carry no size metadata; establish
		// discovers it from the view.
		res.mapping, err = openFileMapping(viewAccess, wname)
		if err != nil {
			return nil, ResolvedSize{}, newError(StageAcquire, "OpenFileMapping", opts.Location, err)
		}
		return res, ResolvedSize{}, nil
	}

	hi, lo := splitLength(opts.Length)
	res.mapping, err = windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, hi, lo, wname)
	existed := res.mapping != 0 && errors.Is(err, windows.ERROR_ALREADY_EXISTS)
	if existed {
		err = nil
	}
	if err != nil {
		res.mapping = 0
		return nil, ResolvedSize{}, newError(StageAcquire, "CreateFileMapping", opts.Location, err)
	}
	if !existed {
		return res, ResolvedSize{Length: opts.Length, Grown: true}, nil
	}

	// A pagefile-backed object keeps the size it was created with.
	current, err := segmentSize(res.mapping)
	if err != nil {
		_ = res.release()
		return nil, ResolvedSize{}, newError(StageAcquire, "VirtualQuery", opts.Location, err)
	}
	size, err := ResolveSize(opts.Length, current, func(int64) error {
		return ErrUnsupported
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

// segmentSize maps a throwaway view of mapping to read its committed size.
func segmentSize(mapping windows.Handle) (int64, error) {
	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ, 0, 0, 0)
	if err != nil {
		return 0, err
	}
	defer func() { _ = windows.UnmapViewOfFile(addr) }()
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return 0, err
	}
	return int64(mbi.RegionSize), nil
}

func (native) establish(res *resources, length int64) (int64, error) {
	if length < 0 || uint64(length) > math.MaxUint {
		return 0, &Error{Stage: StageSize, Op: "MapViewOfFile", Err: ErrSizing}
	}
	addr, err := windows.MapViewOfFile(res.mapping, viewAccess, 0, 0, uintptr(length))
	if err != nil {
		return 0, newError(StageEstablish, "MapViewOfFile", "", err)
	}
	res.addr = addr

	if length == 0 {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			return 0, newError(StageEstablish, "VirtualQuery", "", err)
		}
		length = int64(mbi.RegionSize)
		if length <= 0 {
			return 0, &Error{Stage: StageSize, Op: "VirtualQuery", Err: ErrSizing}
		}
	}
	res.data = unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
	return length, nil
}

func splitLength(n int64) (hi, lo uint32) {
	return uint32(uint64(n) >> 32), uint32(uint64(n) & 0xffffffff)
}

var (
	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procOpenFileMappingW = modkernel32.NewProc("OpenFileMappingW")
)

// openFileMapping wraps OpenFileMappingW, which x/sys/windows does not export.
func openFileMapping(access uint32, name *uint16) (windows.Handle, error) {
	if err := procOpenFileMappingW.Find(); err != nil {
		return 0, err
	}
	r0, _, e1 := procOpenFileMappingW.Call(uintptr(access), 0, uintptr(unsafe.Pointer(name)))
	if r0 == 0 {
		if errno, ok := e1.(windows.Errno); ok && errno != 0 {
			return 0, errno
		}
		return 0, windows.ERROR_INVALID_HANDLE
	}
	return windows.Handle(r0), nil
}
