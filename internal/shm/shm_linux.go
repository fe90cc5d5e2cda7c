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
//go:build linux

package shm

import (
	"golang.org/x/sys/unix"
)

// openSegment opens a POSIX shared-memory object the way shm_open(3) does
// on Linux: as a file on the tmpfs mounted at ShmRoot.
func openSegment(name string, create bool, mode uint32) (int, error) {
	if err := ValidateName(name); err != nil {
		return -1, err
	}
	flags := unix.O_RDWR | unix.O_CLOEXEC | unix.O_NOFOLLOW | unix.O_NONBLOCK
	if create {
		flags |= unix.O_CREAT
	}
	return unix.Open(ShmRoot+name, flags, mode)
}

// UnlinkSegment removes a named segment; mappings already made stay valid.
func UnlinkSegment(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return unix.Unlink(ShmRoot + name)
}
