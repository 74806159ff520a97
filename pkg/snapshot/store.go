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

package snapshot

import (
	"sync"

	"github.com/carverauto/fleetsync/pkg/models"
)

// Batch accumulates one cycle's merged snapshots before commit. It is
// not safe for concurrent use; one cycle owns one batch.
type Batch struct {
	entries map[string]*models.DeviceSnapshot
}

func NewBatch() *Batch {
	return &Batch{entries: make(map[string]*models.DeviceSnapshot)}
}

// Stage records a device's merged snapshot for this cycle.
func (b *Batch) Stage(snap models.DeviceSnapshot) {
	b.entries[snap.ClientID] = snap.Clone()
}

func (b *Batch) Len() int {
	return len(b.entries)
}

// Store holds the live reconciled snapshot per device. Writers are the
// scheduler's cycles only; readers may be event subscribers on other
// goroutines, hence the RWMutex and clone-on-read.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*models.DeviceSnapshot
}

func NewStore() *Store {
	return &Store{snapshots: make(map[string]*models.DeviceSnapshot)}
}

// Get returns a clone of one device's snapshot.
func (s *Store) Get(deviceID string) (*models.DeviceSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[deviceID]
	if !ok {
		return nil, false
	}

	return snap.Clone(), true
}

// GetOrInit returns a clone of the device's snapshot, or a fresh
// Checking snapshot when the device has never been merged.
func (s *Store) GetOrInit(deviceID string) *models.DeviceSnapshot {
	if snap, ok := s.Get(deviceID); ok {
		return snap
	}

	return &models.DeviceSnapshot{
		ClientID:     deviceID,
		BatteryState: models.BatteryIdle,
		Status:       models.StatusChecking,
	}
}

// List returns clones of every snapshot keyed by device id.
func (s *Store) List() map[string]*models.DeviceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.DeviceSnapshot, len(s.snapshots))
	for id, snap := range s.snapshots {
		out[id] = snap.Clone()
	}

	return out
}

// Commit applies one cycle's batch in a single critical section, so an
// observer sees either all of cycle N or none of it. The live snapshot's
// I/O pointer is carried over: the fast loop may have written fresh I/O
// state after the staged clone was taken, and the telemetry cycle never
// produces I/O data of its own.
func (s *Store) Commit(batch *Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, snap := range batch.entries {
		if current, ok := s.snapshots[id]; ok {
			snap.IO = current.IO
		}

		s.snapshots[id] = snap
	}
}

// ApplyGPS replaces the GPS view wholesale on a successful batch fetch:
// returned devices get the fresh fix, everyone else has no location.
// "No GPS" is a distinct condition from "stale GPS" by contract.
func (s *Store) ApplyGPS(locations map[string]models.GPSLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, snap := range s.snapshots {
		if loc, ok := locations[id]; ok {
			fix := loc
			snap.GPS = &fix
		} else {
			snap.GPS = nil
		}
	}
}

// ApplyIOStates replaces the digital I/O view for the devices the fast
// cycle returned; devices it omitted keep no I/O record.
func (s *Store) ApplyIOStates(states map[string]models.IOState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, snap := range s.snapshots {
		if st, ok := states[id]; ok {
			io := st
			snap.IO = &io
		} else {
			snap.IO = nil
		}
	}
}

// SetStatus records the liveness machine's exposed status on the
// snapshot, keeping the two views consistent.
func (s *Store) SetStatus(deviceID string, status models.DeviceStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[deviceID]
	if !ok {
		return false
	}

	snap.Status = status

	return true
}

// Prune drops snapshots for devices no longer registered and returns the
// removed ids. Snapshots are only ever replaced wholesale, never edited,
// when a device is unregistered.
func (s *Store) Prune(active map[string]struct{}) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string

	for id := range s.snapshots {
		if _, ok := active[id]; !ok {
			delete(s.snapshots, id)
			removed = append(removed, id)
		}
	}

	return removed
}
