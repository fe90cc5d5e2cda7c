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
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSizeUsesCurrentSize(t *testing.T) {
	called := false
	grow := func(int64) error { called = true; return nil }

	for _, requested := range []int64{0, -1, -4096} {
		rs, err := ResolveSize(requested, 8192, grow)
		require.NoError(t, err)
		assert.Equal(t, int64(8192), rs.Length)
		assert.False(t, rs.Grown)
	}
	assert.False(t, called)
}

func TestResolveSizeViewDoesNotShrink(t *testing.T) {
	rs, err := ResolveSize(100, 8192, func(int64) error {
		t.Fatal("grow must not be called for a smaller view")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), rs.Length)
	assert.False(t, rs.Grown)

	rs, err = ResolveSize(8192, 8192, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), rs.Length)
}

func TestResolveSizeGrows(t *testing.T) {
	var target int64
	rs, err := ResolveSize(1<<20, 4096, func(n int64) error { target = n; return nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), target)
	assert.Equal(t, int64(1<<20), rs.Length)
	assert.True(t, rs.Grown)
	assert.NoError(t, rs.GrowErr)
}

func TestResolveSizeGrowFailureFallsBack(t *testing.T) {
	rs, err := ResolveSize(1<<20, 4096, func(int64) error { return syscall.EFBIG })
	require.NoError(t, err)
	assert.Equal(t, int64(4096), rs.Length)
	assert.False(t, rs.Grown)
	assert.ErrorIs(t, rs.GrowErr, syscall.EFBIG)

	rs, err = ResolveSize(1<<20, 4096, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), rs.Length)
	assert.ErrorIs(t, rs.GrowErr, ErrUnsupported)
}

func TestResolveSizeNeverZero(t *testing.T) {
	_, err := ResolveSize(0, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizing)
	stage, ok := StageOf(err)
	assert.True(t, ok)
	assert.Equal(t, StageSize, stage)

	_, err = ResolveSize(4096, 0, func(int64) error { return errors.New("disk full") })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizing)
	assert.Contains(t, err.Error(), "disk full")
}

func TestResolveSizeMonotonic(t *testing.T) {
	for _, current := range []int64{1, 100, 4096} {
		for _, requested := range []int64{1, 50, 4096, 10000} {
			fail, err := ResolveSize(requested, current, func(int64) error { return syscall.ENOSPC })
			require.NoError(t, err)
			assert.LessOrEqual(t, fail.Length, current)
			assert.LessOrEqual(t, fail.Length, requested)

			ok, err := ResolveSize(requested, current, func(int64) error { return nil })
			require.NoError(t, err)
			assert.LessOrEqual(t, ok.Length, requested)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := newError(StageAcquire, "open", "/tmp/x", syscall.EACCES)
	assert.Equal(t, int(syscall.EACCES), err.Code)
	assert.Contains(t, err.Error(), "shm: acquire: open /tmp/x")
	assert.Contains(t, err.Error(), "code=")
	assert.ErrorIs(t, err, syscall.EACCES)

	assert.Equal(t, "establish", StageEstablish.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
	assert.Len(t, Stages(), 6)

	_, ok := StageOf(errors.New("plain"))
	assert.False(t, ok)
}
