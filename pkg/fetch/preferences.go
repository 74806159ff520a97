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
)

// PreferencesClient reads a device's metrics-visibility document.
type PreferencesClient struct {
	client
}

func NewPreferencesClient(config Config, log logger.Logger) *PreferencesClient {
	return &PreferencesClient{client: newClient(config, log)}
}

func (c *PreferencesClient) Fetch(ctx context.Context, deviceID string) (map[string]bool, error) {
	data, err := c.post(ctx, preferencesPath, map[string]string{
		"action":     "get_device_preferences",
		"client_id":  deviceID,
		"user_email": c.config.UserRef,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Preferences struct {
			MetricsVisibility map[string]bool `json:"metrics_visibility"`
		} `json:"preferences"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	if resp.Preferences.MetricsVisibility == nil {
		return map[string]bool{}, nil
	}

	return resp.Preferences.MetricsVisibility, nil
}
