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

import "fmt"

// ResolvedSize is the outcome of sizing a mapping against its store.
type ResolvedSize struct {
	// Length is the number of bytes to map.
	Length int64
	// Grown is set when the store was extended to Length.
	Grown bool
	// GrowErr holds the failure that made a growth fall back to the
	// store's existing size.
	GrowErr error
}

// ResolveSize computes the effective mapping length.
//
// A requested length <= 0 maps the whole store. A requested length within
// the store maps a prefix view and never shrinks the store. A larger request
// calls grow; when growing fails the store's current size is used instead.
// The result is never zero: a non-positive length is a sizing error.
func ResolveSize(requested, current int64, grow func(target int64) error) (ResolvedSize, error) {
	var rs ResolvedSize
	switch {
	case requested <= 0:
		rs.Length = current
	case requested <= current:
		rs.Length = requested
	default:
		var err error
		if grow == nil {
			err = ErrUnsupported
		} else {
			err = grow(requested)
		}
		if err != nil {
			rs.Length = current
			rs.GrowErr = err
		} else {
			rs.Length = requested
			rs.Grown = true
		}
	}
	if rs.Length <= 0 {
		if rs.GrowErr != nil {
			return rs, &Error{Stage: StageSize, Op: "resolve", Err: fmt.Errorf("%w (grow: %v)", ErrSizing, rs.GrowErr)}
		}
		return rs, &Error{Stage: StageSize, Op: "resolve", Err: ErrSizing}
	}
	return rs, nil
}
