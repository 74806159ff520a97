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

// Package fetch wraps the backend's REST endpoints, one client per data
// source. Clients classify failures as values and carry no business logic.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

const (
	devicesPath      = "/fetch/devices"
	telemetryPath    = "/fetch/devices-data"
	preferencesPath  = "/fetch/devices-preferences"
	gpsPath          = "/fetch/devices-gps"
	deviceStatePath  = "/fetch/data-dashboard-state"
	batteryStatePath = "/fetch/dashboard-battery-state"

	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 2 * time.Second
)

// Config is shared by all endpoint clients.
type Config struct {
	BaseURL    string          `json:"base_url"`
	UserRef    string          `json:"user_ref"`
	AuthToken  string          `json:"auth_token,omitempty"`
	Timeout    models.Duration `json:"timeout,omitempty"`
	RetryDelay models.Duration `json:"retry_delay,omitempty"`
}

// client is the shared HTTP plumbing behind every endpoint client.
type client struct {
	httpClient *http.Client
	config     Config
	logger     logger.Logger
}

func newClient(config Config, log logger.Logger) client {
	timeout := time.Duration(config.Timeout)
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return client{
		httpClient: &http.Client{Timeout: timeout},
		config:     config,
		logger:     log,
	}
}

// post sends a JSON request and returns the raw response body, mapping
// failures to the engine's error taxonomy. No panic escapes a client.
func (c *client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	defer c.closeResponse(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return data, nil
}

func (c *client) closeResponse(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to close response body")
	}
}

// parseWireTime accepts the timestamp layouts the backend has been seen
// to emit.
func parseWireTime(value string) *time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}

	return nil
}
