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
	"fmt"
	"runtime"
	"time"

	"github.com/heptiolabs/healthcheck"
)

const healthCheckTimeout = time.Second

// HealthChecks registers the mapper's checks on h.
//
// Readiness fails once the mapper is closed or, on linux, when the
// filesystem at ShmRoot has no free space. Liveness fails after any
// release reported an error, since the process may be leaking handles.
func (m *Mapper) HealthChecks(h healthcheck.Handler) {
	h.AddReadinessCheck("shmmap-open", func() error {
		if m.closed.Load() {
			return ErrMapperClosed
		}
		return nil
	})
	if runtime.GOOS == "linux" {
		h.AddReadinessCheck("shmmap-shm-space", healthcheck.Timeout(shmSpaceCheck, healthCheckTimeout))
	}
	h.AddLivenessCheck("shmmap-release", func() error {
		if n := m.stats.releaseFailures.Load(); n > 0 {
			return fmt.Errorf("%d region releases failed", n)
		}
		return nil
	})
}

func shmSpaceCheck() error {
	stat, err := diskUsage(ShmRoot)
	if err != nil {
		return fmt.Errorf("stat %s: %w", ShmRoot, err)
	}
	if stat.Free == 0 {
		return ErrNoSpace
	}
	return nil
}
