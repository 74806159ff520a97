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
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts time.Ticker.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// DeviceLister reads the registered-device set at the top of a cycle.
type DeviceLister interface {
	Fetch(ctx context.Context) ([]models.Device, error)
}

// TelemetryFetcher pulls one device's raw telemetry document.
type TelemetryFetcher interface {
	Fetch(ctx context.Context, deviceID string) ([]byte, error)
}

// PreferencesFetcher pulls one device's metrics-visibility document.
type PreferencesFetcher interface {
	Fetch(ctx context.Context, deviceID string) (map[string]bool, error)
}

// GPSFetcher pulls positions for a batch of devices.
type GPSFetcher interface {
	Fetch(ctx context.Context, deviceIDs []string) (map[string]models.GPSLocation, error)
}

// IOStateFetcher pulls digital I/O state for a batch of devices.
type IOStateFetcher interface {
	Fetch(ctx context.Context, deviceIDs []string) (map[string]models.IOState, error)
}

// BatteryFetcher pulls one device's charge-trend classification.
type BatteryFetcher interface {
	Fetch(ctx context.Context, deviceID string) (models.BatteryState, error)
}

// ExternalPublisher mirrors events beyond the process boundary
// (NATS JetStream in production). Optional.
type ExternalPublisher interface {
	PublishStatusChange(ctx context.Context, data models.DeviceStatusEventData) error
	PublishSnapshot(ctx context.Context, data models.SnapshotEventData) error
}
