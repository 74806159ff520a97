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

	"github.com/carverauto/fleetsync/pkg/logger"
)

// TelemetryClient pulls one device's latest telemetry document. The raw
// body is handed to the normalizer untouched; the two historical wire
// shapes are its problem, not ours.
type TelemetryClient struct {
	client
}

func NewTelemetryClient(config Config, log logger.Logger) *TelemetryClient {
	return &TelemetryClient{client: newClient(config, log)}
}

func (c *TelemetryClient) Fetch(ctx context.Context, deviceID string) ([]byte, error) {
	return c.post(ctx, telemetryPath, map[string]string{
		"action":     "get_device_data",
		"client_id":  deviceID,
		"user_email": c.config.UserRef,
	})
}
