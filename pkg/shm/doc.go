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

// Package shm maps regular files and named shared-memory segments into
// memory and releases each mapping exactly once.
//
// A location under ShmRoot ("/dev/shm/") with no further separator names a
// shared-memory segment; any other location is a file path, created if it
// does not exist. The mapping is read/write and shared, so writes are seen
// by every other mapping of the same store, in this process or another.
//
// Example usage:
//
//	r, err := shm.Map("/dev/shm/metrics", 1<<20)
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	copy(r.Bytes(), payload)
//
// A Region is released by Close, by its Mapper's Close, or by the garbage
// collector once the Region is unreachable. The byte slices returned by
// Bytes and View do not keep the Region alive: keep the *Region reachable
// for as long as they are used.
//
// Mappers are instrumented with OpenTelemetry metrics and tracing, export a
// prometheus Collector and register healthcheck probes. Platform-specific
// code lives in internal/shm.
package shm
