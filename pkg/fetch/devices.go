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

// DeviceListClient reads the registered-device set. Device management is
// owned elsewhere; the scheduler only needs the current ids at the top of
// each cycle.
type DeviceListClient struct {
	client
}

func NewDeviceListClient(config Config, log logger.Logger) *DeviceListClient {
	return &DeviceListClient{client: newClient(config, log)}
}

func (c *DeviceListClient) Fetch(ctx context.Context) ([]models.Device, error) {
	data, err := c.post(ctx, devicesPath, map[string]string{
		"action":     "get_devices",
		"user_email": c.config.UserRef,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Devices []struct {
			ClientID   string `json:"client_id"`
			Name       string `json:"name"`
			DeviceName string `json:"device_name"`
			CreatedAt  string `json:"created_at"`
		} `json:"devices"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	devices := make([]models.Device, 0, len(resp.Devices))

	for _, d := range resp.Devices {
		if d.ClientID == "" {
			continue
		}

		device := models.Device{ClientID: d.ClientID, Name: d.Name}
		if device.Name == "" {
			device.Name = d.DeviceName
		}

		if d.CreatedAt != "" {
			if ts := parseWireTime(d.CreatedAt); ts != nil {
				device.CreatedAt = *ts
			}
		}

		devices = append(devices, device)
	}

	return devices, nil
}
