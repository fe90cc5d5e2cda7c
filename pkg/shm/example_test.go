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

package shm_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/srediag/shmmap/pkg/shm"
)

func ExampleMap() {
	dir, err := os.MkdirTemp("", "shmmap-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	r, err := shm.Map(filepath.Join(dir, "data.bin"), 4096)
	if err != nil {
		fmt.Println("map failed:", err)
		return
	}
	defer r.Close()

	copy(r.Bytes(), "hello world")
	fmt.Println(r.Kind(), r.Len(), r.Grown())
	fmt.Println(string(r.Bytes()[:11]))
	// Output:
	// file 4096 true
	// hello world
}

func ExampleView() {
	dir, err := os.MkdirTemp("", "shmmap-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	r, err := shm.Map(filepath.Join(dir, "counters.bin"), 64)
	if err != nil {
		fmt.Println("map failed:", err)
		return
	}
	defer r.Close()

	counters := shm.View[uint64](r)
	counters[0] = 42
	fmt.Println(len(counters), shm.View[uint64](r)[0])
	// Output: 8 42
}

func ExampleMapper_MapAll() {
	dir, err := os.MkdirTemp("", "shmmap-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	m, err := shm.NewMapper(nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer m.Close()

	regions, err := m.MapAll(context.Background(), []shm.Request{
		{Location: filepath.Join(dir, "a.bin"), Length: 100},
		{Location: filepath.Join(dir, "b.bin"), Length: 200},
	})
	if err != nil {
		fmt.Println("map failed:", err)
		return
	}
	for _, r := range regions {
		fmt.Println(filepath.Base(r.Location()), r.Len())
	}
	fmt.Println("live:", len(m.Live()))
	// Output:
	// a.bin 100
	// b.bin 200
	// live: 2
}
