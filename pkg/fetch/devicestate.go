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

// DeviceStateClient reads digital I/O state for a batch of devices on the
// fast best-effort cycle. The wire format uses 0/1 integers for booleans.
type DeviceStateClient struct {
	client
}

func NewDeviceStateClient(config Config, log logger.Logger) *DeviceStateClient {
	return &DeviceStateClient{client: newClient(config, log)}
}

func (c *DeviceStateClient) Fetch(ctx context.Context, deviceIDs []string) (map[string]models.IOState, error) {
	data, err := c.post(ctx, deviceStatePath, map[string]interface{}{
		"client_ids": deviceIDs,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		DeviceStates []struct {
			ClientID    string `json:"client_id"`
			Timestamp   string `json:"timestamp"`
			Charging    int    `json:"charging"`
			In1State    int    `json:"in1_state"`
			In2State    int    `json:"in2_state"`
			Out1State   int    `json:"out1_state"`
			Out2State   int    `json:"out2_state"`
			MotorSpeed  int    `json:"motor_speed"`
			PowerSaving int    `json:"power_saving"`
		} `json:"device_states"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	states := make(map[string]models.IOState, len(resp.DeviceStates))

	for _, st := range resp.DeviceStates {
		if st.ClientID == "" {
			continue
		}

		entry := models.IOState{
			Charging:    st.Charging != 0,
			In1:         st.In1State != 0,
			In2:         st.In2State != 0,
			Out1:        st.Out1State != 0,
			Out2:        st.Out2State != 0,
			PowerSaving: st.PowerSaving != 0,
			MotorSpeed:  st.MotorSpeed,
		}

		if st.Timestamp != "" {
			if ts := parseWireTime(st.Timestamp); ts != nil {
				entry.Timestamp = *ts
			}
		}

		states[st.ClientID] = entry
	}

	return states, nil
}
