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

// Package snapshot owns the reconciled per-device state: a pure merge
// function and a store with atomic batch commits.
package snapshot

import "github.com/carverauto/fleetsync/pkg/models"

// Merge combines a canonical partial with the previously cached snapshot.
// Field-level fallback: an absent or invalid incoming field never erases
// a previously valid value. Pure and total; it cannot fail.
//
// LastSeen only moves forward. A timestamp older than the cached one is
// treated as invalid and dropped, which keeps LastSeen monotonic even if
// an upstream validation bug lets a stale document through.
func Merge(existing models.DeviceSnapshot, incoming models.PartialSnapshot) models.DeviceSnapshot {
	result := *existing.Clone()

	if incoming.Timestamp != nil && !incoming.Timestamp.Before(result.LastSeen) {
		result.LastSeen = *incoming.Timestamp
	}

	result.Temperature = pickFloat(incoming.Temperature, result.Temperature)
	result.Humidity = pickFloat(incoming.Humidity, result.Humidity)
	result.Pressure = pickFloat(incoming.Pressure, result.Pressure)
	result.MotorSpeed = pickFloat(incoming.MotorSpeed, result.MotorSpeed)
	result.Battery = pickFloat(incoming.Battery, result.Battery)
	result.SignalQuality = pickFloat(incoming.SignalQuality, result.SignalQuality)

	if incoming.DeviceKind != nil && *incoming.DeviceKind != "" {
		result.DeviceKind = *incoming.DeviceKind
	}

	return result
}

func pickFloat(incoming, existing *float64) *float64 {
	if incoming != nil {
		v := *incoming

		return &v
	}

	return existing
}
