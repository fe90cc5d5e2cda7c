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
	"runtime"
	"strings"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v3/disk"

	internalshm "github.com/srediag/shmmap/internal/shm"
)

// diskUsage is replaced in tests.
var diskUsage = disk.Usage

// canCreateOnDevShm reports whether size more bytes fit on the filesystem
// holding path. Only paths under ShmRoot on linux are checked.
func canCreateOnDevShm(size uint64, path string) bool {
	if runtime.GOOS != "linux" || !strings.HasPrefix(path, ShmRoot) {
		return true
	}
	stat, err := diskUsage(ShmRoot)
	if err != nil {
		internalLogger.warnf("could not stat %s: %v", ShmRoot, err)
		return true
	}
	return size <= stat.Free
}

// retryable reports whether a truncate failure is transient.
func retryable(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}

// newGrower builds the Grower used by a mapper: a free-space check for
// shared-memory segments followed by a truncate retried on EINTR/EAGAIN.
func newGrower(cfg *Config, log *logger) internalshm.Grower {
	return func(kind Kind, current, target int64, truncate func(int64) error) error {
		if kind == KindSharedMemory && cfg.CheckShmSpace {
			if !canCreateOnDevShm(uint64(target-current), ShmRoot) {
				return ErrNoSpace
			}
		}

		attempts := 0
		op := func() error {
			attempts++
			err := truncate(target)
			if err == nil {
				return nil
			}
			if retryable(err) {
				log.debugf("grow %d -> %d attempt %d: %v", current, target, attempts, err)
				return err
			}
			return backoff.Permanent(err)
		}
		b := backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.GrowRetryDelay), cfg.GrowRetries)
		return backoff.Retry(op, b)
	}
}
