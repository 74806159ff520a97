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

	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

// GPSClient reads positions for a batch of devices. Devices the endpoint
// does not return are simply absent from the result; callers must not
// invent a location for them.
type GPSClient struct {
	client
}

func NewGPSClient(config Config, log logger.Logger) *GPSClient {
	return &GPSClient{client: newClient(config, log)}
}

func (c *GPSClient) Fetch(ctx context.Context, deviceIDs []string) (map[string]models.GPSLocation, error) {
	data, err := c.post(ctx, gpsPath, map[string]interface{}{
		"client_ids": deviceIDs,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		GPSLocations []struct {
			ClientID   string   `json:"client_id"`
			Latitude   *float64 `json:"latitude"`
			Longitude  *float64 `json:"longitude"`
			Timestamp  string   `json:"timestamp"`
			Altitude   *float64 `json:"altitude"`
			Satellites *int     `json:"satellites"`
		} `json:"gps_locations"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	locations := make(map[string]models.GPSLocation, len(resp.GPSLocations))

	for _, loc := range resp.GPSLocations {
		// Null coordinates mean the backend has no fix for this device.
		if loc.ClientID == "" || loc.Latitude == nil || loc.Longitude == nil {
			continue
		}

		entry := models.GPSLocation{
			Latitude:   *loc.Latitude,
			Longitude:  *loc.Longitude,
			Altitude:   loc.Altitude,
			Satellites: loc.Satellites,
		}

		if loc.Timestamp != "" {
			entry.Timestamp = parseWireTime(loc.Timestamp)
		}

		locations[loc.ClientID] = entry
	}

	return locations, nil
}
