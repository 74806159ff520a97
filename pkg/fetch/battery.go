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
	"errors"
	"net/http"
	"time"

	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

// BatteryClient reads the charge-trend classification for one device.
// The endpoint sits behind a flaky gateway, so a 502 gets exactly one
// retry after a fixed delay. No other client retries anything.
type BatteryClient struct {
	client
}

func NewBatteryClient(config Config, log logger.Logger) *BatteryClient {
	return &BatteryClient{client: newClient(config, log)}
}

func (c *BatteryClient) Fetch(ctx context.Context, deviceID string) (models.BatteryState, error) {
	payload := map[string]string{"client_id": deviceID}

	data, err := c.post(ctx, batteryStatePath, payload)
	if err != nil {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
			return models.BatteryIdle, err
		}

		c.logger.Warn().Str("device_id", deviceID).Msg("Battery endpoint returned 502, retrying once")

		delay := time.Duration(c.config.RetryDelay)
		if delay == 0 {
			delay = defaultRetryDelay
		}

		select {
		case <-ctx.Done():
			return models.BatteryIdle, &TransportError{Err: ctx.Err()}
		case <-time.After(delay):
		}

		data, err = c.post(ctx, batteryStatePath, payload)
		if err != nil {
			return models.BatteryIdle, err
		}
	}

	var resp struct {
		BatteryState string `json:"battery_state"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return models.BatteryIdle, &FormatError{Reason: err.Error()}
	}

	if resp.BatteryState == "" {
		return models.BatteryIdle, &FormatError{Reason: "missing battery_state"}
	}

	return models.ParseBatteryState(resp.BatteryState), nil
}
