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
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Stats is a point-in-time summary of a Mapper.
type Stats struct {
	Live            int
	MappedBytes     int64
	Maps            uint64
	Releases        map[string]uint64
	ReleaseFailures uint64
	Failures        map[Stage]uint64
	JournalDropped  uint64
}

type counters struct {
	maps            atomic.Uint64
	mappedBytes     atomic.Int64
	releaseFailures atomic.Uint64
	releases        map[string]*atomic.Uint64
	failures        map[Stage]*atomic.Uint64
}

func newCounters() *counters {
	c := &counters{
		releases: map[string]*atomic.Uint64{
			triggerClose:     {},
			triggerCollected: {},
			triggerMapper:    {},
		},
		failures: make(map[Stage]*atomic.Uint64),
	}
	for _, s := range Stages() {
		c.failures[s] = &atomic.Uint64{}
	}
	return c
}

// instruments are the OpenTelemetry side of the mapper's counters.
type instruments struct {
	maps        metric.Int64Counter
	failures    metric.Int64Counter
	releases    metric.Int64Counter
	mappedBytes metric.Int64UpDownCounter
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		ins instruments
		err error
	)
	if ins.maps, err = m.Int64Counter("shmmap.maps",
		metric.WithDescription("Successful mappings.")); err != nil {
		return nil, fmt.Errorf("create maps counter: %w", err)
	}
	if ins.failures, err = m.Int64Counter("shmmap.failures",
		metric.WithDescription("Failed mappings by stage.")); err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}
	if ins.releases, err = m.Int64Counter("shmmap.releases",
		metric.WithDescription("Released mappings by trigger.")); err != nil {
		return nil, fmt.Errorf("create releases counter: %w", err)
	}
	if ins.mappedBytes, err = m.Int64UpDownCounter("shmmap.mapped_bytes",
		metric.WithDescription("Bytes currently mapped."),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("create mapped bytes counter: %w", err)
	}
	return &ins, nil
}

func (ins *instruments) mapped(ctx context.Context, kind Kind, size int64) {
	attrs := metric.WithAttributes(attribute.String("kind", kind.String()))
	ins.maps.Add(ctx, 1, attrs)
	ins.mappedBytes.Add(ctx, size, attrs)
}

func (ins *instruments) failed(ctx context.Context, kind Kind, stage Stage) {
	ins.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.String("stage", stage.String()),
	))
}

func (ins *instruments) released(ctx context.Context, kind Kind, size int64, trigger string, failed bool) {
	ins.releases.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.String("trigger", trigger),
		attribute.Bool("error", failed),
	))
	ins.mappedBytes.Add(ctx, -size, metric.WithAttributes(attribute.String("kind", kind.String())))
}

// Collector exports a Mapper's counters to prometheus.
type Collector struct {
	m *Mapper

	live            *prometheus.Desc
	mappedBytes     *prometheus.Desc
	maps            *prometheus.Desc
	releases        *prometheus.Desc
	releaseFailures *prometheus.Desc
	failures        *prometheus.Desc
}

// NewCollector returns a prometheus collector for m.
func NewCollector(m *Mapper) *Collector {
	return &Collector{
		m:               m,
		live:            prometheus.NewDesc("shmmap_live_regions", "Regions currently mapped.", nil, nil),
		mappedBytes:     prometheus.NewDesc("shmmap_mapped_bytes", "Bytes currently mapped.", nil, nil),
		maps:            prometheus.NewDesc("shmmap_maps_total", "Successful mappings.", nil, nil),
		releases:        prometheus.NewDesc("shmmap_releases_total", "Released mappings by trigger.", []string{"trigger"}, nil),
		releaseFailures: prometheus.NewDesc("shmmap_release_failures_total", "Releases that reported an error.", nil, nil),
		failures:        prometheus.NewDesc("shmmap_failures_total", "Failed mappings by stage.", []string{"stage"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.mappedBytes
	ch <- c.maps
	ch <- c.releases
	ch <- c.releaseFailures
	ch <- c.failures
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Stats()
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live))
	ch <- prometheus.MustNewConstMetric(c.mappedBytes, prometheus.GaugeValue, float64(s.MappedBytes))
	ch <- prometheus.MustNewConstMetric(c.maps, prometheus.CounterValue, float64(s.Maps))
	for trigger, n := range s.Releases {
		ch <- prometheus.MustNewConstMetric(c.releases, prometheus.CounterValue, float64(n), trigger)
	}
	ch <- prometheus.MustNewConstMetric(c.releaseFailures, prometheus.CounterValue, float64(s.ReleaseFailures))
	for stage, n := range s.Failures {
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(n), stage.String())
	}
}
