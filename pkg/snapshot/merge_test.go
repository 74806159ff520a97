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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsync/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestMergeFieldFallback(t *testing.T) {
	base := models.DeviceSnapshot{
		ClientID:      "dev-1",
		Temperature:   floatPtr(21.5),
		Humidity:      floatPtr(40),
		SignalQuality: floatPtr(87),
		LastSeen:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	incoming := models.PartialSnapshot{
		Timestamp:   timePtr(time.Date(2025, 6, 1, 12, 2, 0, 0, time.UTC)),
		Temperature: floatPtr(22.1),
		// Humidity and SignalQuality absent this cycle.
		Battery: floatPtr(76),
	}

	merged := Merge(base, incoming)

	require.NotNil(t, merged.Temperature)
	assert.InDelta(t, 22.1, *merged.Temperature, 0.001)

	require.NotNil(t, merged.Humidity)
	assert.InDelta(t, 40, *merged.Humidity, 0.001, "absent field must keep cached value")

	require.NotNil(t, merged.SignalQuality)
	assert.InDelta(t, 87, *merged.SignalQuality, 0.001)

	require.NotNil(t, merged.Battery)
	assert.InDelta(t, 76, *merged.Battery, 0.001)

	assert.Equal(t, time.Date(2025, 6, 1, 12, 2, 0, 0, time.UTC), merged.LastSeen)
}

func TestMergeExplicitZeroOverwrites(t *testing.T) {
	base := models.DeviceSnapshot{
		ClientID:   "dev-1",
		MotorSpeed: floatPtr(1500),
	}

	incoming := models.PartialSnapshot{MotorSpeed: floatPtr(0)}

	merged := Merge(base, incoming)

	require.NotNil(t, merged.MotorSpeed)
	assert.Zero(t, *merged.MotorSpeed, "explicit zero is a value, not absence")
}

func TestMergeLastSeenMonotonic(t *testing.T) {
	newer := time.Date(2025, 6, 1, 12, 10, 0, 0, time.UTC)
	older := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)

	base := models.DeviceSnapshot{ClientID: "dev-1", LastSeen: newer}

	merged := Merge(base, models.PartialSnapshot{
		Timestamp:   timePtr(older),
		Temperature: floatPtr(19),
	})

	assert.Equal(t, newer, merged.LastSeen, "LastSeen must never move backwards")
	require.NotNil(t, merged.Temperature)
}

func TestMergeEmptyPartialIsIdentity(t *testing.T) {
	base := models.DeviceSnapshot{
		ClientID:    "dev-1",
		Temperature: floatPtr(18),
		Pressure:    floatPtr(1013),
		DeviceKind:  "tracker",
		LastSeen:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	merged := Merge(base, models.PartialSnapshot{})

	assert.Equal(t, base, merged)
}

func TestMergeIdempotent(t *testing.T) {
	base := models.DeviceSnapshot{ClientID: "dev-1"}
	incoming := models.PartialSnapshot{
		Timestamp:   timePtr(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Temperature: floatPtr(25),
		DeviceKind:  strPtr("sensor"),
	}

	once := Merge(base, incoming)
	twice := Merge(once, incoming)

	assert.Equal(t, once, twice)
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	base := models.DeviceSnapshot{ClientID: "dev-1", Temperature: floatPtr(10)}
	incoming := models.PartialSnapshot{Humidity: floatPtr(55)}

	merged := Merge(base, incoming)

	*incoming.Humidity = 99
	*base.Temperature = 99

	assert.InDelta(t, 55, *merged.Humidity, 0.001)
	assert.InDelta(t, 10, *merged.Temperature, 0.001)
}

func strPtr(s string) *string { return &s }
