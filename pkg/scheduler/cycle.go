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

package scheduler

import (
	"context"
	"time"

	"github.com/carverauto/fleetsync/pkg/models"
	"github.com/carverauto/fleetsync/pkg/snapshot"
)

// runTelemetryCycle is the slow loop body: list devices, fetch and merge
// telemetry per device, commit the whole cycle atomically, refresh GPS,
// evaluate liveness, publish events, then prune unregistered devices.
func (e *Engine) runTelemetryCycle(ctx context.Context) {
	devices, err := e.deps.Devices.Fetch(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Device list fetch failed, skipping telemetry cycle")
		return
	}

	batch := snapshot.NewBatch()

	for i := range devices {
		e.processDevice(ctx, &devices[i], batch)

		if e.stopped() {
			break
		}
	}

	// Results gathered after Stop are discarded, never half-committed.
	if e.stopped() {
		e.logger.Debug().Int("staged", batch.Len()).Msg("Engine stopped mid-cycle, discarding batch")
		return
	}

	e.store.Commit(batch)

	e.refreshGPS(ctx, devices)
	e.evaluateLiveness(ctx, devices)
	e.publishSnapshots(ctx, devices)
	e.prune(devices)
}

// processDevice fetches, normalizes, and merges one device's telemetry,
// then stages the result. Any per-device failure stages the cached
// snapshot unchanged so registered devices never vanish from the view.
func (e *Engine) processDevice(ctx context.Context, dev *models.Device, batch *snapshot.Batch) {
	current := e.store.GetOrInit(dev.ClientID)

	raw, err := e.deps.Telemetry.Fetch(ctx, dev.ClientID)
	if err != nil {
		e.logger.Warn().Err(err).Str("device_id", dev.ClientID).Msg("Telemetry fetch failed, keeping cached snapshot")
		batch.Stage(*current)

		return
	}

	partial, err := e.normalizer.Normalize(dev.ClientID, raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("device_id", dev.ClientID).Msg("Telemetry response rejected, keeping cached snapshot")
		batch.Stage(*current)

		return
	}

	merged := snapshot.Merge(*current, *partial)

	// Preferences replace the cached visibility map wholesale on
	// success; on failure the cached map stays.
	if prefs, err := e.deps.Preferences.Fetch(ctx, dev.ClientID); err != nil {
		e.logger.Debug().Err(err).Str("device_id", dev.ClientID).Msg("Preferences fetch failed, keeping cached visibility")
	} else {
		merged.MetricsVisibility = prefs
	}

	if state, err := e.deps.Battery.Fetch(ctx, dev.ClientID); err != nil {
		e.logger.Debug().Err(err).Str("device_id", dev.ClientID).Msg("Battery state fetch failed, keeping cached state")
	} else {
		merged.BatteryState = state
	}

	batch.Stage(merged)
}

// refreshGPS replaces the whole GPS view on success. On failure the
// previous fixes stand; a flaky GPS endpoint must not blank the map.
func (e *Engine) refreshGPS(ctx context.Context, devices []models.Device) {
	ids := deviceIDs(devices)

	locations, err := e.deps.GPS.Fetch(ctx, ids)
	if err != nil {
		e.logger.Warn().Err(err).Msg("GPS batch fetch failed, keeping previous positions")
		return
	}

	e.store.ApplyGPS(locations)
}

// evaluateLiveness feeds every device's LastSeen into the hysteresis
// machine and publishes a status event per promotion.
func (e *Engine) evaluateLiveness(ctx context.Context, devices []models.Device) {
	now := e.clock.Now()

	for i := range devices {
		id := devices[i].ClientID

		var lastSeen time.Time
		if snap, ok := e.store.Get(id); ok {
			lastSeen = snap.LastSeen
		}

		transition := e.machine.Observe(id, lastSeen, now)
		if transition == nil {
			continue
		}

		e.store.SetStatus(id, transition.To)

		data := models.DeviceStatusEventData{
			DeviceID:       id,
			PreviousStatus: transition.From,
			CurrentStatus:  transition.To,
			LastSeen:       lastSeen,
			Timestamp:      transition.At,
		}

		e.bus.PublishStatusChange(data)

		if e.deps.External != nil {
			if err := e.deps.External.PublishStatusChange(ctx, data); err != nil {
				e.logger.Warn().Err(err).Str("device_id", id).Msg("Failed to publish status event")
			}
		}
	}
}

// publishSnapshots emits one snapshot-updated event per device after the
// commit and status sync, so subscribers always see post-cycle state.
func (e *Engine) publishSnapshots(ctx context.Context, devices []models.Device) {
	now := e.clock.Now()

	for i := range devices {
		id := devices[i].ClientID

		snap, ok := e.store.Get(id)
		if !ok {
			continue
		}

		data := models.SnapshotEventData{
			DeviceID:  id,
			Snapshot:  snap,
			Timestamp: now,
		}

		e.bus.PublishSnapshot(data)

		if e.deps.External != nil {
			if err := e.deps.External.PublishSnapshot(ctx, data); err != nil {
				e.logger.Warn().Err(err).Str("device_id", id).Msg("Failed to publish snapshot event")
			}
		}
	}
}

// prune drops state for devices that left the registry this cycle.
func (e *Engine) prune(devices []models.Device) {
	active := make(map[string]struct{}, len(devices))
	for i := range devices {
		active[devices[i].ClientID] = struct{}{}
	}

	for _, id := range e.store.Prune(active) {
		e.machine.Forget(id)
		e.logger.Info().Str("device_id", id).Msg("Device unregistered, state dropped")
	}
}

// runIOCycle is the fast loop body. Everything here is best-effort; a
// failed batch fetch leaves the previous I/O view in place.
func (e *Engine) runIOCycle(ctx context.Context) {
	devices, err := e.deps.Devices.Fetch(ctx)
	if err != nil {
		e.logger.Debug().Err(err).Msg("Device list fetch failed, skipping I/O cycle")
		return
	}

	states, err := e.deps.IOState.Fetch(ctx, deviceIDs(devices))
	if err != nil {
		e.logger.Debug().Err(err).Msg("I/O state fetch failed, keeping previous view")
		return
	}

	if e.stopped() {
		return
	}

	e.store.ApplyIOStates(states)
}

func deviceIDs(devices []models.Device) []string {
	ids := make([]string, 0, len(devices))
	for i := range devices {
		ids = append(ids, devices[i].ClientID)
	}

	return ids
}
