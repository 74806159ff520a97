/*
 * Copyright 2025 Carver Automation Corporation.
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

// Package events decouples status and snapshot notifications from their
// consumers: an in-process bus for the UI/notification side, plus an
// optional NATS JetStream publisher for external subscribers.
package events

import (
	"sync"

	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

// EventType tags the two outbound event kinds.
type EventType string

const (
	TypeDeviceStatusChanged EventType = "device.status_changed"
	TypeSnapshotUpdated     EventType = "device.snapshot_updated"
)

// Event is one bus delivery. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type         EventType
	DeviceID     string
	StatusChange *models.DeviceStatusEventData
	Snapshot     *models.SnapshotEventData
}

// Subscription is one subscriber's ordered event feed. A given device's
// events arrive in generation order because each subscription drains a
// single FIFO. Events still queued when the subscription closes are
// dropped, so an abandoned subscriber never pins the drain goroutine.
type Subscription struct {
	out    chan Event
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	done   chan struct{}
}

func newSubscription(buffer int) *Subscription {
	s := &Subscription{
		out:  make(chan Event, buffer),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	go s.drain()

	return s
}

// Events is the channel the subscriber receives on. It is closed shortly
// after Unsubscribe; events not yet read by then are dropped.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.queue = append(s.queue, ev)
	s.cond.Signal()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
		s.cond.Signal()
	}
}

// drain moves queued events onto the out channel in order. The queue is
// unbounded so a slow subscriber never blocks the publisher. Once the
// subscription closes the remaining queue is discarded; a subscriber that
// stopped reading must not leak this goroutine.
func (s *Subscription) drain() {
	for {
		s.mu.Lock()

		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}

		if s.closed {
			s.queue = nil
			s.mu.Unlock()
			close(s.out)

			return
		}

		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			close(s.out)

			return
		}
	}
}

// Bus is the in-process publish/subscribe channel.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: log,
	}
}

// Subscribe registers a new subscriber. buffer sizes the delivery
// channel; the internal queue behind it is unbounded.
func (b *Bus) Subscribe(buffer int) *Subscription {
	sub := newSubscription(buffer)

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe detaches a subscriber and closes its channel; events it
// never read are dropped.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()

	sub.close()
}

// Close detaches every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

// PublishStatusChange fans a device-status-changed event out to all
// subscribers.
func (b *Bus) PublishStatusChange(data models.DeviceStatusEventData) {
	b.publish(Event{
		Type:         TypeDeviceStatusChanged,
		DeviceID:     data.DeviceID,
		StatusChange: &data,
	})
}

// PublishSnapshot fans a snapshot-updated event out to all subscribers.
func (b *Bus) PublishSnapshot(data models.SnapshotEventData) {
	b.publish(Event{
		Type:     TypeSnapshotUpdated,
		DeviceID: data.DeviceID,
		Snapshot: &data,
	})
}

func (b *Bus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		sub.enqueue(ev)
	}
}
