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
	"strings"
)

// ShmRoot is the location prefix that designates a shared-memory segment.
const ShmRoot = "/dev/shm/"

// maxNameLen mirrors NAME_MAX for segment names.
const maxNameLen = 255

// Classify reports whether location names a shared-memory segment or a
// regular file. A location is shared memory iff it starts with ShmRoot and
// the remainder holds no further '/'; the returned name is that remainder.
// Any other location is a regular file named by the location itself.
func Classify(location string) (Kind, string) {
	if rest, ok := strings.CutPrefix(location, ShmRoot); ok && !strings.Contains(rest, "/") {
		return KindSharedMemory, rest
	}
	return KindRegularFile, location
}

// ValidateName checks a segment name produced by Classify.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case len(name) > maxNameLen:
		return ErrInvalidName
	case strings.IndexByte(name, 0) >= 0:
		return ErrInvalidName
	}
	return nil
}
