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
	"io"
	"math"
	"runtime"
	"syscall"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDiskUsage(t *testing.T, free uint64, err error) {
	t.Helper()
	saved := diskUsage
	diskUsage = func(path string) (*disk.UsageStat, error) {
		if err != nil {
			return nil, err
		}
		return &disk.UsageStat{Path: path, Free: free}, nil
	}
	t.Cleanup(func() { diskUsage = saved })
}

func TestCanCreateOnDevShm(t *testing.T) {
	stubDiskUsage(t, 1000, nil)
	switch runtime.GOOS {
	case "linux":
		// only paths under /dev/shm are checked
		assert.True(t, canCreateOnDevShm(math.MaxUint64, "sdffafds"))
		assert.True(t, canCreateOnDevShm(1000, "/dev/shm/xxx"))
		assert.False(t, canCreateOnDevShm(1001, "/dev/shm/yyy"))
	default:
		assert.True(t, canCreateOnDevShm(math.MaxUint64, "/dev/shm/xxx"))
	}
}

func TestCanCreateOnDevShmStatFailure(t *testing.T) {
	stubDiskUsage(t, 0, errors.New("statfs failed"))
	assert.True(t, canCreateOnDevShm(math.MaxUint64, "/dev/shm/xxx"))
}

func testGrowConfig() *Config {
	c := DefaultConfig()
	c.GrowRetryDelay = 0
	c.GrowRetries = 3
	return c
}

func TestGrowerRetriesInterrupted(t *testing.T) {
	grow := newGrower(testGrowConfig(), newLogger("", io.Discard))
	attempts := 0
	err := grow(KindRegularFile, 0, 4096, func(n int64) error {
		assert.Equal(t, int64(4096), n)
		attempts++
		if attempts < 3 {
			return syscall.EINTR
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestGrowerGivesUpAfterRetries(t *testing.T) {
	grow := newGrower(testGrowConfig(), newLogger("", io.Discard))
	attempts := 0
	err := grow(KindRegularFile, 0, 4096, func(int64) error {
		attempts++
		return syscall.EAGAIN
	})
	assert.ErrorIs(t, err, syscall.EAGAIN)
	assert.Equal(t, 4, attempts)
}

func TestGrowerDoesNotRetryPermanentErrors(t *testing.T) {
	grow := newGrower(testGrowConfig(), newLogger("", io.Discard))
	attempts := 0
	err := grow(KindRegularFile, 0, 4096, func(int64) error {
		attempts++
		return syscall.EFBIG
	})
	assert.ErrorIs(t, err, syscall.EFBIG)
	assert.Equal(t, 1, attempts)
}

func TestGrowerRefusesWithoutShmSpace(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("free space is only checked on linux")
	}
	stubDiskUsage(t, 100, nil)
	called := false
	truncate := func(int64) error {
		called = true
		return nil
	}

	grow := newGrower(testGrowConfig(), newLogger("", io.Discard))
	assert.ErrorIs(t, grow(KindSharedMemory, 0, 4096, truncate), ErrNoSpace)
	assert.False(t, called)

	// growth within the free space is allowed
	assert.NoError(t, grow(KindSharedMemory, 4000, 4096, truncate))
	assert.True(t, called)

	// files are never checked
	called = false
	assert.NoError(t, grow(KindRegularFile, 0, 4096, truncate))
	assert.True(t, called)

	c := testGrowConfig()
	c.CheckShmSpace = false
	called = false
	assert.NoError(t, newGrower(c, newLogger("", io.Discard))(KindSharedMemory, 0, 4096, truncate))
	assert.True(t, called)
}
