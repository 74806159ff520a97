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

package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		UserRef:    "ops@example.com",
		AuthToken:  "test-token",
		RetryDelay: models.Duration(10 * time.Millisecond),
	}
}

func TestTelemetryClientRequestShape(t *testing.T) {
	var captured map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, telemetryPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{"device_data": {"temperature": 21.5}}`))
	}))
	defer server.Close()

	client := NewTelemetryClient(testConfig(server.URL), logger.NewTestLogger())

	raw, err := client.Fetch(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"device_data": {"temperature": 21.5}}`, string(raw))

	assert.Equal(t, "get_device_data", captured["action"])
	assert.Equal(t, "dev-1", captured["client_id"])
	assert.Equal(t, "ops@example.com", captured["user_email"])
}

func TestClientErrorClassification(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewTelemetryClient(testConfig(server.URL), logger.NewTestLogger())

		_, err := client.Fetch(context.Background(), "dev-1")
		require.Error(t, err)

		var statusErr *StatusError

		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		server.Close()

		client := NewTelemetryClient(testConfig(server.URL), logger.NewTestLogger())

		_, err := client.Fetch(context.Background(), "dev-1")
		require.Error(t, err)

		var transportErr *TransportError

		assert.ErrorAs(t, err, &transportErr)
	})

	t.Run("canceled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := NewTelemetryClient(testConfig(server.URL), logger.NewTestLogger())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Fetch(ctx, "dev-1")
		require.Error(t, err)

		var transportErr *TransportError

		assert.ErrorAs(t, err, &transportErr)
	})
}

func TestDeviceListClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, devicesPath, r.URL.Path)

		_, _ = w.Write([]byte(`{"devices": [
			{"client_id": "a", "name": "Pump A", "created_at": "2025-06-01T10:00:00Z"},
			{"client_id": "b", "device_name": "Tracker B"},
			{"client_id": "", "name": "ghost"}
		]}`))
	}))
	defer server.Close()

	client := NewDeviceListClient(testConfig(server.URL), logger.NewTestLogger())

	devices, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2, "entries without a client_id are dropped")

	assert.Equal(t, "a", devices[0].ClientID)
	assert.Equal(t, "Pump A", devices[0].Name)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), devices[0].CreatedAt)

	assert.Equal(t, "Tracker B", devices[1].Name, "device_name is the fallback name field")
}

func TestPreferencesClient(t *testing.T) {
	t.Run("visibility map", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, preferencesPath, r.URL.Path)

			_, _ = w.Write([]byte(`{"preferences": {"metrics_visibility": {"temperature": true, "pressure": false}}}`))
		}))
		defer server.Close()

		client := NewPreferencesClient(testConfig(server.URL), logger.NewTestLogger())

		prefs, err := client.Fetch(context.Background(), "dev-1")
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"temperature": true, "pressure": false}, prefs)
	})

	t.Run("missing document yields empty map", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := NewPreferencesClient(testConfig(server.URL), logger.NewTestLogger())

		prefs, err := client.Fetch(context.Background(), "dev-1")
		require.NoError(t, err)
		assert.NotNil(t, prefs)
		assert.Empty(t, prefs)
	})
}

func TestDeviceStateClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, deviceStatePath, r.URL.Path)

		var payload map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"a", "b"}, payload["client_ids"])

		_, _ = w.Write([]byte(`{"device_states": [
			{"client_id": "a", "charging": 1, "in1_state": 0, "out1_state": 1, "motor_speed": 1200, "power_saving": 0, "timestamp": "2025-06-01T11:59:00Z"},
			{"client_id": "", "charging": 1}
		]}`))
	}))
	defer server.Close()

	client := NewDeviceStateClient(testConfig(server.URL), logger.NewTestLogger())

	states, err := client.Fetch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, states, 1)

	state := states["a"]
	assert.True(t, state.Charging)
	assert.False(t, state.In1)
	assert.True(t, state.Out1)
	assert.False(t, state.PowerSaving)
	assert.Equal(t, 1200, state.MotorSpeed)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC), state.Timestamp)
}
