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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsync/pkg/logger"
)

func TestGPSClientSkipsNullCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, gpsPath, r.URL.Path)

		_, _ = w.Write([]byte(`{"gps_locations": [
			{"client_id": "a", "latitude": 51.5074, "longitude": -0.1278, "timestamp": "2025-06-01T11:55:00Z", "altitude": 35.5, "satellites": 9},
			{"client_id": "b", "latitude": null, "longitude": -0.2},
			{"client_id": "c", "latitude": 48.85},
			{"client_id": "", "latitude": 1.0, "longitude": 1.0}
		]}`))
	}))
	defer server.Close()

	client := NewGPSClient(testConfig(server.URL), logger.NewTestLogger())

	locations, err := client.Fetch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, locations, 1, "devices without a full fix are absent, not zeroed")

	fix := locations["a"]
	assert.InDelta(t, 51.5074, fix.Latitude, 0.0001)
	assert.InDelta(t, -0.1278, fix.Longitude, 0.0001)
	require.NotNil(t, fix.Timestamp)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 55, 0, 0, time.UTC), fix.Timestamp.UTC())
	require.NotNil(t, fix.Altitude)
	assert.InDelta(t, 35.5, *fix.Altitude, 0.001)
	require.NotNil(t, fix.Satellites)
	assert.Equal(t, 9, *fix.Satellites)
}

func TestGPSClientEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"gps_locations": []}`))
	}))
	defer server.Close()

	client := NewGPSClient(testConfig(server.URL), logger.NewTestLogger())

	locations, err := client.Fetch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestGPSClientBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	client := NewGPSClient(testConfig(server.URL), logger.NewTestLogger())

	_, err := client.Fetch(context.Background(), []string{"a"})
	require.Error(t, err)

	var formatErr *FormatError

	assert.ErrorAs(t, err, &formatErr)
}
