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

// Package liveness decides Online/Offline per device with a dwell-time
// hysteresis filter so a single noisy sample cannot flip the exposed
// status.
package liveness

import (
	"errors"
	"sync"
	"time"

	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

const defaultHistoryLimit = 50

var (
	ErrInvalidThreshold = errors.New("inactivity threshold must be positive")
	ErrInvalidDwell     = errors.New("status dwell window must be positive")
)

// Record is the per-device hysteresis state. CurrentStatus changes only
// when CandidateStatus has been stable for at least the dwell window.
type Record struct {
	CurrentStatus   models.DeviceStatus
	CandidateStatus models.DeviceStatus
	CandidateSince  time.Time
	History         []models.StatusTransition
}

// Machine evaluates liveness for the whole fleet. It has no fatal
// states: a device with no valid timestamp simply holds Checking.
type Machine struct {
	mu           sync.Mutex
	threshold    time.Duration
	dwell        time.Duration
	historyLimit int
	records      map[string]*Record
	logger       logger.Logger
}

func New(threshold, dwell time.Duration, log logger.Logger) (*Machine, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}

	if dwell <= 0 {
		return nil, ErrInvalidDwell
	}

	return &Machine{
		threshold:    threshold,
		dwell:        dwell,
		historyLimit: defaultHistoryLimit,
		records:      make(map[string]*Record),
		logger:       log,
	}, nil
}

// Observe feeds one device's latest accepted timestamp into the machine
// and returns a transition when, and only when, the exposed status
// changed. A zero lastSeen means no valid timestamp has ever been
// accepted; the device stays in Checking.
func (m *Machine) Observe(deviceID string, lastSeen, now time.Time) *models.StatusTransition {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[deviceID]
	if !ok {
		rec = &Record{CurrentStatus: models.StatusChecking, CandidateStatus: models.StatusChecking}
		m.records[deviceID] = rec
	}

	if lastSeen.IsZero() {
		return nil
	}

	candidate := models.StatusOffline
	if now.Sub(lastSeen) <= m.threshold {
		candidate = models.StatusOnline
	}

	if candidate == rec.CurrentStatus {
		// Agreement cancels any pending flip.
		rec.CandidateStatus = rec.CurrentStatus
		rec.CandidateSince = time.Time{}

		return nil
	}

	// The first determination is not flicker; promote without dwell.
	if rec.CurrentStatus == models.StatusChecking {
		return m.promote(deviceID, rec, candidate, now)
	}

	if rec.CandidateStatus != candidate {
		rec.CandidateStatus = candidate
		rec.CandidateSince = now

		return nil
	}

	if now.Sub(rec.CandidateSince) < m.dwell {
		return nil
	}

	return m.promote(deviceID, rec, candidate, now)
}

func (m *Machine) promote(deviceID string, rec *Record, candidate models.DeviceStatus, now time.Time) *models.StatusTransition {
	transition := models.StatusTransition{
		From: rec.CurrentStatus,
		To:   candidate,
		At:   now,
	}

	rec.CurrentStatus = candidate
	rec.CandidateStatus = candidate
	rec.CandidateSince = time.Time{}

	// Most-recent-first, bounded so a flapping device cannot grow
	// memory without limit.
	rec.History = append([]models.StatusTransition{transition}, rec.History...)
	if len(rec.History) > m.historyLimit {
		rec.History = rec.History[:m.historyLimit]
	}

	m.logger.Info().
		Str("device_id", deviceID).
		Str("previous_status", string(transition.From)).
		Str("current_status", string(transition.To)).
		Msg("Device status changed")

	return &transition
}

// Status returns the exposed status, Checking for unknown devices.
func (m *Machine) Status(deviceID string) models.DeviceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[deviceID]; ok {
		return rec.CurrentStatus
	}

	return models.StatusChecking
}

// History returns a copy of the device's transition history,
// most recent first.
func (m *Machine) History(deviceID string) []models.StatusTransition {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[deviceID]
	if !ok {
		return nil
	}

	out := make([]models.StatusTransition, len(rec.History))
	copy(out, rec.History)

	return out
}

// Forget drops the record for an unregistered device.
func (m *Machine) Forget(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, deviceID)
}
