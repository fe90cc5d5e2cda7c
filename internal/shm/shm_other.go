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
//go:build unix && !linux

package shm

// openSegment is unavailable without a shared-memory filesystem at ShmRoot.
func openSegment(name string, create bool, mode uint32) (int, error) {
	if err := ValidateName(name); err != nil {
		return -1, err
	}
	return -1, ErrUnsupported
}

// UnlinkSegment is unavailable without a shared-memory filesystem at ShmRoot.
func UnlinkSegment(name string) error {
	return ErrUnsupported
}
