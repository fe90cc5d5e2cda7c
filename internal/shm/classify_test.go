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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		location string
		kind     Kind
		name     string
	}{
		{"/dev/shm/xx", KindSharedMemory, "xx"},
		{"/dev/shm/my-segment.1", KindSharedMemory, "my-segment.1"},
		{"/dev/shm/", KindSharedMemory, ""},
		{"/dev/shm/a/b", KindRegularFile, "/dev/shm/a/b"},
		{"/dev/shm/a/", KindRegularFile, "/dev/shm/a/"},
		{"/dev/shm//a", KindRegularFile, "/dev/shm//a"},
		{"/dev/shm", KindRegularFile, "/dev/shm"},
		{"/dev/shmx/a", KindRegularFile, "/dev/shmx/a"},
		{"dev/shm/a", KindRegularFile, "dev/shm/a"},
		{"/tmp/dev/shm/a", KindRegularFile, "/tmp/dev/shm/a"},
		{"/tmp/data.bin", KindRegularFile, "/tmp/data.bin"},
		{"relative.bin", KindRegularFile, "relative.bin"},
		{"", KindRegularFile, ""},
		{`/dev/shm/Local\seg`, KindSharedMemory, `Local\seg`},
	}
	for _, c := range cases {
		kind, name := Classify(c.location)
		assert.Equal(t, c.kind, kind, "kind of %q", c.location)
		assert.Equal(t, c.name, name, "name of %q", c.location)
	}
}

func TestClassifyIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		kind, name := Classify("/dev/shm/repeat")
		assert.Equal(t, KindSharedMemory, kind)
		assert.Equal(t, "repeat", name)
	}
}

func TestValidateName(t *testing.T) {
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("."), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(".."), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("a\x00b"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(strings.Repeat("n", maxNameLen+1)), ErrInvalidName)
	assert.NoError(t, ValidateName(strings.Repeat("n", maxNameLen)))
	assert.NoError(t, ValidateName("segment"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "file", KindRegularFile.String())
	assert.Equal(t, "shm", KindSharedMemory.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
