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
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	internalshm "github.com/srediag/shmmap/internal/shm"
)

// Mapper maps files and shared-memory segments and tracks every region it
// hands out until that region is released.
type Mapper struct {
	cfg      *Config
	log      *logger
	grow     internalshm.Grower
	tracer   trace.Tracer
	ins      *instruments
	stats    *counters
	journal  *journal
	registry cmap.ConcurrentMap[string, *binding]

	// mu orders registration against Close.
	mu     sync.RWMutex
	closed atomic.Bool
}

// Request is one entry of a MapAll batch.
type Request struct {
	Location string
	Length   int64
}

// RegionInfo describes a live region.
type RegionInfo struct {
	ID       string
	Location string
	Kind     Kind
	Len      int64
	Grown    bool
	MappedAt time.Time
	// Origin is the caller that mapped the region, recorded in debug mode.
	Origin string
}

// NewMapper creates a Mapper. A nil config means DefaultConfig().
func NewMapper(cfg *Config) (*Mapper, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	ins, err := newInstruments(cfg.meter())
	if err != nil {
		return nil, err
	}
	log := newLogger("shmmap", cfg.LogOutput)
	m := &Mapper{
		cfg:      cfg,
		log:      log,
		grow:     newGrower(cfg, log),
		tracer:   cfg.tracer(),
		ins:      ins,
		stats:    newCounters(),
		journal:  newJournal(cfg.JournalSize),
		registry: cmap.New[*binding](),
	}
	if cfg.Registerer != nil {
		if err := cfg.Registerer.Register(NewCollector(m)); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

var defaultMapper = sync.OnceValues(func() (*Mapper, error) {
	return NewMapper(DefaultConfig())
})

// Default returns the process-wide mapper used by Map.
func Default() (*Mapper, error) {
	return defaultMapper()
}

// Map maps location with the default mapper. A length <= 0 maps the
// store's current size; a larger length grows the store first. See
// Mapper.Map for the full rules.
func Map(location string, length int64) (*Region, error) {
	m, err := defaultMapper()
	if err != nil {
		return nil, err
	}
	return m.Map(context.Background(), location, length)
}

// Map maps location. Locations under ShmRoot with no further separator name
// a shared-memory segment; anything else is a file path, created if absent.
//
// A length <= 0 maps the store's current size, and for a segment requires
// that it already exists. A length below the store's size maps a prefix
// view. A larger length grows the store; if growing fails the store's
// current size is mapped and Region.Grown reports false.
//
// A missing file or segment is created before it is sized. If sizing then
// fails the empty store stays behind; callers that need it gone remove
// the file or call UnlinkSegment.
func (m *Mapper) Map(ctx context.Context, location string, length int64) (*Region, error) {
	ctx, span := m.tracer.Start(ctx, "shm.Map", trace.WithAttributes(
		attribute.String("shm.location", location),
		attribute.Int64("shm.length", length),
	))
	defer span.End()

	r, err := m.mapRegion(ctx, location, length)
	if err != nil {
		if stage, ok := StageOf(err); ok {
			span.SetAttributes(attribute.String("shm.stage", stage.String()))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("shm.id", r.ID()),
		attribute.String("shm.kind", r.Kind().String()),
		attribute.Int("shm.size", r.Len()),
		attribute.Bool("shm.grown", r.Grown()),
	)
	return r, nil
}

func (m *Mapper) mapRegion(ctx context.Context, location string, length int64) (*Region, error) {
	kind, _ := internalshm.Classify(location)
	if m.closed.Load() {
		return nil, m.fail(ctx, location, kind, &Error{Stage: StageValidate, Op: "map", Path: location, Err: ErrMapperClosed})
	}
	if location == "" {
		return nil, m.fail(ctx, location, kind, &Error{Stage: StageValidate, Op: "map", Err: ErrInvalidLocation})
	}
	location, length, err := normalize(location, length)
	if err != nil {
		return nil, m.fail(ctx, location, kind, &Error{Stage: StageValidate, Op: "abs", Path: location, Err: err})
	}

	mapping, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Location: location,
		Length:   length,
		Mode:     uint32(m.cfg.FileMode.Perm()),
		Grow:     m.grow,
	})
	if err != nil {
		return nil, m.fail(ctx, location, kind, err)
	}
	if mapping.GrowErr != nil {
		m.log.warnf("%s: growth to %d bytes failed, mapped existing %d bytes: %v",
			location, length, mapping.Len(), mapping.GrowErr)
	}

	b := &binding{
		mapping:  mapping,
		mapper:   m,
		id:       uuid.NewString(),
		size:     int64(mapping.Len()),
		mappedAt: time.Now(),
	}
	if debugMode {
		b.origin = callerLocation(2)
	}

	m.mu.RLock()
	if m.closed.Load() {
		m.mu.RUnlock()
		if rerr := mapping.Release(); rerr != nil {
			m.log.warnf("%s: release after close error: %v", location, rerr)
		}
		return nil, m.fail(ctx, location, kind, &Error{Stage: StageValidate, Op: "map", Path: location, Err: ErrMapperClosed})
	}
	m.registry.Set(b.id, b)
	m.mu.RUnlock()

	m.stats.maps.Add(1)
	m.stats.mappedBytes.Add(b.size)
	m.ins.mapped(ctx, mapping.Kind, b.size)
	m.journal.record(Event{
		Type:     EventMapped,
		Time:     b.mappedAt,
		RegionID: b.id,
		Location: location,
		Kind:     mapping.Kind,
		Length:   b.size,
		Err:      mapping.GrowErr,
	})
	m.log.debugf("mapped %s id=%s len=%d grown=%v", location, b.id, b.size, mapping.Grown)
	return newRegion(b), nil
}

// normalize makes file locations absolute and folds every non-positive
// length into -1.
func normalize(location string, length int64) (string, int64, error) {
	if length <= 0 {
		length = -1
	}
	if kind, _ := internalshm.Classify(location); kind == KindSharedMemory {
		return location, length, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return location, length, err
	}
	return abs, length, nil
}

func (m *Mapper) fail(ctx context.Context, location string, kind Kind, err error) error {
	stage, ok := StageOf(err)
	if !ok {
		stage = StageValidate
	}
	m.stats.failures[stage].Add(1)
	m.ins.failed(ctx, kind, stage)
	m.journal.record(Event{
		Type:     EventFailed,
		Time:     time.Now(),
		Location: location,
		Kind:     kind,
		Err:      err,
	})
	m.log.infof("map %s failed at %s: %v", location, stage, err)
	return err
}

// released is called once per binding after its native teardown ran.
func (m *Mapper) released(b *binding, trigger string, err error) {
	m.registry.Remove(b.id)
	m.stats.mappedBytes.Add(-b.size)
	m.stats.releases[trigger].Add(1)
	m.ins.released(context.Background(), b.mapping.Kind, b.size, trigger, err != nil)
	m.journal.record(Event{
		Type:     EventReleased,
		Time:     time.Now(),
		RegionID: b.id,
		Location: b.mapping.Location,
		Kind:     b.mapping.Kind,
		Length:   b.size,
		Trigger:  trigger,
		Err:      err,
	})
	if err != nil {
		m.stats.releaseFailures.Add(1)
		m.log.warnf("release %s id=%s (%s) error: %v", b.mapping.Location, b.id, trigger, err)
		return
	}
	if b.origin != "" {
		m.log.debugf("released %s id=%s (%s), mapped at %s", b.mapping.Location, b.id, trigger, b.origin)
		return
	}
	m.log.debugf("released %s id=%s (%s)", b.mapping.Location, b.id, trigger)
}

// MapAll maps every request concurrently. Either all regions are returned
// or none: on the first failure every region already mapped is closed.
func (m *Mapper) MapAll(ctx context.Context, reqs []Request) ([]*Region, error) {
	regions := make([]*Region, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			r, err := m.Map(gctx, req.Location, req.Length)
			if err != nil {
				return fmt.Errorf("map %s: %w", req.Location, err)
			}
			regions[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range regions {
			if r == nil {
				continue
			}
			if cerr := r.Close(); cerr != nil {
				m.log.warnf("rollback %s error: %v", r.Location(), cerr)
			}
		}
		return nil, err
	}
	return regions, nil
}

// Live lists the regions not yet released, oldest first.
func (m *Mapper) Live() []RegionInfo {
	items := m.registry.Items()
	infos := make([]RegionInfo, 0, len(items))
	for _, b := range items {
		infos = append(infos, RegionInfo{
			ID:       b.id,
			Location: b.mapping.Location,
			Kind:     b.mapping.Kind,
			Len:      b.size,
			Grown:    b.mapping.Grown,
			MappedAt: b.mappedAt,
			Origin:   b.origin,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].MappedAt.Before(infos[j].MappedAt)
	})
	return infos
}

// Stats returns the mapper's counters.
func (m *Mapper) Stats() Stats {
	s := Stats{
		Live:            m.registry.Count(),
		MappedBytes:     m.stats.mappedBytes.Load(),
		Maps:            m.stats.maps.Load(),
		Releases:        make(map[string]uint64, len(m.stats.releases)),
		ReleaseFailures: m.stats.releaseFailures.Load(),
		Failures:        make(map[Stage]uint64, len(m.stats.failures)),
		JournalDropped:  m.journal.dropped.Load(),
	}
	for trigger, n := range m.stats.releases {
		s.Releases[trigger] = n.Load()
	}
	for stage, n := range m.stats.failures {
		s.Failures[stage] = n.Load()
	}
	return s
}

// Journal removes and returns the buffered lifecycle events, oldest first.
func (m *Mapper) Journal() []Event {
	return m.journal.drain()
}

// Closed reports whether Close has been called.
func (m *Mapper) Closed() bool {
	return m.closed.Load()
}

// Close releases every live region and rejects further Map calls, even
// regions their owners still reference. Those regions return nil from Bytes
// and their own Close is a no-op, but slices taken earlier from Bytes or
// View point at unmapped memory and must not be touched again.
func (m *Mapper) Close() error {
	m.mu.Lock()
	if m.closed.Swap(true) {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	items := m.registry.Items()
	if len(items) == 0 {
		return nil
	}
	pool, err := ants.NewPool(m.cfg.ReleaseWorkers)
	if err != nil {
		return fmt.Errorf("create release pool: %w", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	for _, b := range items {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := b.release(triggerMapper); err != nil {
				collect(err)
			}
		}); err != nil {
			wg.Done()
			collect(fmt.Errorf("submit release of %s: %w", b.id, err))
		}
	}
	wg.Wait()
	m.log.infof("closed mapper, released %d regions", len(items))
	return errors.Join(errs...)
}
