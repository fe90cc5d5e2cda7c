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
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

// EventType is the kind of lifecycle event recorded by a Mapper.
type EventType uint8

const (
	EventMapped EventType = iota
	EventReleased
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventMapped:
		return "mapped"
	case EventReleased:
		return "released"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", t)
	}
}

// Event is one entry of a Mapper's journal.
type Event struct {
	Type     EventType
	Time     time.Time
	RegionID string
	Location string
	Kind     Kind
	Length   int64
	// Trigger is what released the region: close, collected or mapper.
	Trigger string
	Err     error
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %s %s kind=%s len=%d", e.Time.Format(time.RFC3339Nano), e.Type, e.Location, e.Kind, e.Length)
	if e.RegionID != "" {
		s += " id=" + e.RegionID
	}
	if e.Trigger != "" {
		s += " trigger=" + e.Trigger
	}
	if e.Err != nil {
		s += " err=" + e.Err.Error()
	}
	return s
}

// journal keeps the most recent events; when full the oldest is dropped.
type journal struct {
	mu      sync.Mutex
	rb      *queue.RingBuffer
	dropped atomic.Uint64
}

func newJournal(size uint64) *journal {
	return &journal{rb: queue.NewRingBuffer(size)}
}

func (j *journal) record(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for {
		ok, err := j.rb.Offer(e)
		if err != nil || ok {
			return
		}
		// Len is non-zero under the lock, so Poll returns at once.
		if _, err := j.rb.Poll(time.Millisecond); err != nil {
			return
		}
		j.dropped.Add(1)
	}
}

// drain removes and returns every buffered event, oldest first.
func (j *journal) drain() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	events := make([]Event, 0, j.rb.Len())
	for j.rb.Len() > 0 {
		item, err := j.rb.Poll(time.Millisecond)
		if err != nil {
			break
		}
		events = append(events, item.(Event))
	}
	return events
}
