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
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func segmentName(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat(ShmRoot); err != nil {
		t.Skipf("%s not available: %v", ShmRoot, err)
	}
	name := fmt.Sprintf("shmmap-test-%d-%s", os.Getpid(), t.Name())
	t.Cleanup(func() { _ = UnlinkSegment(name) })
	return name
}

func TestSegmentCreateThenOpen(t *testing.T) {
	name := segmentName(t)
	ctx := context.Background()

	w, err := MapRegion(ctx, MapOptions{Location: ShmRoot + name, Length: 4096})
	require.NoError(t, err)
	assert.Equal(t, KindSharedMemory, w.Kind)
	assert.Equal(t, name, w.Name)
	assert.True(t, w.Grown)
	copy(w.Bytes(), []byte{1, 2, 3})

	r, err := MapRegion(ctx, MapOptions{Location: ShmRoot + name, Length: -1})
	require.NoError(t, err)
	assert.Equal(t, 4096, r.Len())
	assert.Equal(t, []byte{1, 2, 3}, r.Bytes()[:3])

	r.Bytes()[3] = 4
	assert.Equal(t, byte(4), w.Bytes()[3])

	require.NoError(t, w.Release())
	require.NoError(t, r.Release())
}

func TestSegmentOpenMissingFails(t *testing.T) {
	name := segmentName(t)
	_, err := MapRegion(context.Background(), MapOptions{Location: ShmRoot + name})
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.ENOENT)
	stage, _ := StageOf(err)
	assert.Equal(t, StageAcquire, stage)

	_, statErr := os.Stat(ShmRoot + name)
	assert.True(t, os.IsNotExist(statErr), "opening without a length must not create the segment")
}

func TestSegmentEmptyNameFails(t *testing.T) {
	_, err := MapRegion(context.Background(), MapOptions{Location: ShmRoot, Length: 4096})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidName)
	stage, _ := StageOf(err)
	assert.Equal(t, StageAcquire, stage)
}

func TestSegmentGrowsOnLargerRequest(t *testing.T) {
	name := segmentName(t)
	ctx := context.Background()

	small, err := MapRegion(ctx, MapOptions{Location: ShmRoot + name, Length: 4096})
	require.NoError(t, err)
	require.NoError(t, small.Release())

	big, err := MapRegion(ctx, MapOptions{Location: ShmRoot + name, Length: 8192})
	require.NoError(t, err)
	defer big.Release() //nolint:errcheck
	assert.True(t, big.Grown)
	assert.Equal(t, 8192, big.Len())

	fi, err := os.Stat(ShmRoot + name)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), fi.Size())
}

func TestUnlinkSegmentKeepsMapping(t *testing.T) {
	name := segmentName(t)
	r, err := MapRegion(context.Background(), MapOptions{Location: ShmRoot + name, Length: 4096})
	require.NoError(t, err)
	require.NoError(t, UnlinkSegment(name))

	r.Bytes()[0] = 42
	assert.Equal(t, byte(42), r.Bytes()[0])
	require.NoError(t, r.Release())

	assert.ErrorIs(t, UnlinkSegment(""), ErrInvalidName)
}
