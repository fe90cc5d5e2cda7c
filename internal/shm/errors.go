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
	"strconv"
	"strings"
	"syscall"
)

// Stage identifies the pipeline step an Error came from.
type Stage int

const (
	StageValidate Stage = iota
	StageClassify
	StageSize
	StageAcquire
	StageEstablish
	StageRelease
)

var stageNames = [...]string{
	StageValidate:  "validate",
	StageClassify:  "classify",
	StageSize:      "size",
	StageAcquire:   "acquire",
	StageEstablish: "establish",
	StageRelease:   "release",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
	return stageNames[s]
}

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageValidate, StageClassify, StageSize, StageAcquire, StageEstablish, StageRelease}
}

var (
	// ErrSizing is returned when the resolved mapping length is not positive.
	ErrSizing = errors.New("mapping length must be positive")
	// ErrInvalidName is returned for an unusable shared-memory segment name.
	ErrInvalidName = errors.New("invalid shared memory name")
	// ErrUnsupported is returned when the platform cannot provide an operation.
	ErrUnsupported = errors.New("operation not supported on this platform")
	// ErrNotMapped is returned by operations on a released mapping.
	ErrNotMapped = errors.New("region is not mapped")
)

// Error is a failure of one pipeline stage. Code carries the platform error
// number (errno or Win32 error) when the failure came from the OS.
type Error struct {
	Stage Stage
	Op    string
	Path  string
	Code  int
	Err   error
}

func newError(stage Stage, op, path string, err error) *Error {
	return &Error{Stage: stage, Op: op, Path: path, Code: errorCode(err), Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("shm: ")
	b.WriteString(e.Stage.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		b.WriteByte(' ')
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Code != 0 {
		b.WriteString(" (code=")
		b.WriteString(strconv.Itoa(e.Code))
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err, if err wraps an *Error.
func StageOf(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return 0, false
}

func errorCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
