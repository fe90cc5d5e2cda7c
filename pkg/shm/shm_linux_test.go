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
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const childSegmentEnv = "SHMMAP_TEST_CHILD_SEGMENT"

func testSegment(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat(ShmRoot); err != nil {
		t.Skipf("%s not available: %v", ShmRoot, err)
	}
	name := fmt.Sprintf("shmmap-pkg-%d-%s", os.Getpid(), t.Name())
	t.Cleanup(func() { _ = UnlinkSegment(name) })
	return name
}

// TestCrossProcessVisibility writes into a segment and re-executes the test
// binary, which maps the segment by name with no length and checks the bytes.
func TestCrossProcessVisibility(t *testing.T) {
	if name := os.Getenv(childSegmentEnv); name != "" {
		r, err := Map(ShmRoot+name, -1)
		if err != nil {
			t.Fatalf("child map: %v", err)
		}
		defer r.Close()
		if got := r.Bytes()[:3]; got[0] != 1 || got[1] != 2 || got[2] != 3 {
			t.Fatalf("child read %v, want [1 2 3]", got)
		}
		r.Bytes()[3] = 4
		return
	}

	name := testSegment(t)
	r, err := Map(ShmRoot+name, 4096)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, KindSharedMemory, r.Kind())
	assert.Equal(t, name, r.Name())
	copy(r.Bytes(), []byte{1, 2, 3})

	cmd := exec.Command(os.Args[0], "-test.run=^TestCrossProcessVisibility$", "-test.count=1")
	cmd.Env = append(os.Environ(), childSegmentEnv+"="+name)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	assert.Equal(t, byte(4), r.Bytes()[3])
}

func TestSegmentWithoutLengthMustExist(t *testing.T) {
	name := testSegment(t)
	m, err := NewMapper(nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Map(context.Background(), ShmRoot+name, 0)
	require.Error(t, err)
	stage, _ := StageOf(err)
	assert.Equal(t, StageAcquire, stage)
	assert.Equal(t, uint64(1), m.Stats().Failures[StageAcquire])
}

func TestSegmentLocationIsNotMadeAbsolute(t *testing.T) {
	loc, length, err := normalize(ShmRoot+"seg", 0)
	require.NoError(t, err)
	assert.Equal(t, ShmRoot+"seg", loc)
	assert.Equal(t, int64(-1), length)

	// A nested path under the root is a file and stays as given.
	loc, length, err = normalize(ShmRoot+"dir/file", 10)
	require.NoError(t, err)
	assert.Equal(t, ShmRoot+"dir/file", loc)
	assert.Equal(t, int64(10), length)
}

func TestSegmentGrowthRefusedWithoutSpace(t *testing.T) {
	name := testSegment(t)
	stubDiskUsage(t, 0, nil)

	c := DefaultConfig()
	c.CheckShmSpace = true
	m, err := NewMapper(c)
	require.NoError(t, err)
	defer m.Close()

	// A new segment has nothing to fall back to.
	_, err = m.Map(context.Background(), ShmRoot+name, 4096)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizing)
	assert.Contains(t, err.Error(), ErrNoSpace.Error())

	// The segment was created before sizing and stays behind empty.
	fi, err := os.Stat(ShmRoot + name)
	require.NoError(t, err)
	assert.Zero(t, fi.Size())
	require.NoError(t, UnlinkSegment(name))
	_, err = os.Stat(ShmRoot + name)
	assert.True(t, os.IsNotExist(err))
}
