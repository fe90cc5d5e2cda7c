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
	"io"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultFileMode       = os.FileMode(0o600)
	defaultGrowRetries    = 3
	defaultGrowRetryDelay = time.Millisecond
	defaultJournalSize    = 256
	defaultReleaseWorkers = 8
	instrumentationName   = "github.com/srediag/shmmap/pkg/shm"
)

// Config is used to tune a Mapper.
type Config struct {
	// FileMode is the permission used when a file or segment is created.
	FileMode os.FileMode

	// CheckShmSpace refuses to grow a shared-memory segment beyond the free
	// space of the filesystem at ShmRoot. A refused growth falls back to the
	// segment's existing size like any other growth failure.
	CheckShmSpace bool

	// GrowRetries is how many times an interrupted grow is retried.
	GrowRetries uint64

	// GrowRetryDelay is the pause between grow retries.
	GrowRetryDelay time.Duration

	// JournalSize is the number of lifecycle events kept, a power of two.
	JournalSize uint64

	// ReleaseWorkers bounds the goroutines used by Mapper.Close.
	ReleaseWorkers int

	// LogOutput receives the mapper's log lines; nil means stdout.
	LogOutput io.Writer

	// Meter and Tracer receive OpenTelemetry signals; nil means no-op.
	Meter  metric.Meter
	Tracer trace.Tracer

	// Registerer, when set, gets the mapper's prometheus collector.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the default configuration, with environment
// overrides SHMMAP_CHECK_SPACE and SHMMAP_GROW_RETRIES applied.
func DefaultConfig() *Config {
	c := &Config{
		FileMode:       defaultFileMode,
		CheckShmSpace:  true,
		GrowRetries:    defaultGrowRetries,
		GrowRetryDelay: defaultGrowRetryDelay,
		JournalSize:    defaultJournalSize,
		ReleaseWorkers: defaultReleaseWorkers,
	}
	if v := os.Getenv("SHMMAP_CHECK_SPACE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.CheckShmSpace = b
		}
	}
	if v := os.Getenv("SHMMAP_GROW_RETRIES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.GrowRetries = n
		}
	}
	return c
}

// VerifyConfig is used to verify the sanity of configuration
func VerifyConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config must not be nil")
	}
	if config.FileMode&os.ModePerm == 0 || config.FileMode&^os.ModePerm != 0 {
		return fmt.Errorf("FileMode must be a non-zero permission, got %v", config.FileMode)
	}
	if config.JournalSize == 0 || config.JournalSize&(config.JournalSize-1) != 0 {
		return fmt.Errorf("JournalSize must be a power of two, got %d", config.JournalSize)
	}
	if config.ReleaseWorkers <= 0 {
		return fmt.Errorf("ReleaseWorkers must be positive, got %d", config.ReleaseWorkers)
	}
	if config.GrowRetryDelay < 0 {
		return fmt.Errorf("GrowRetryDelay must not be negative, got %v", config.GrowRetryDelay)
	}
	return nil
}

func (c *Config) meter() metric.Meter {
	if c.Meter != nil {
		return c.Meter
	}
	return metricnoop.NewMeterProvider().Meter(instrumentationName)
}

func (c *Config) tracer() trace.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return tracenoop.NewTracerProvider().Tracer(instrumentationName)
}
