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

package scheduler

import (
	"fmt"
	"time"

	"github.com/carverauto/fleetsync/pkg/fetch"
	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

var (
	errBaseURLRequired     = fmt.Errorf("fetch base_url is required")
	errNegativeInterval    = fmt.Errorf("poll intervals must not be negative")
	errNegativeThreshold   = fmt.Errorf("inactivity threshold must not be negative")
	errNegativeDwell       = fmt.Errorf("status dwell must not be negative")
	errDwellOverThreshold  = fmt.Errorf("status dwell must be shorter than the inactivity threshold")
	errEventsConfigInvalid = fmt.Errorf("invalid events configuration")
)

const (
	defaultTelemetryInterval = 2 * time.Minute
	defaultIOInterval        = 70 * time.Second

	// Two inactivity windows coexisted historically (3m and 7m,
	// depending on the screen). 7m is the one the fleet view enforced
	// and is the single source of truth here.
	defaultInactivityThreshold = 7 * time.Minute

	defaultStatusDwell = 5 * time.Second
)

// Config is the engine configuration.
type Config struct {
	TelemetryPollInterval models.Duration     `json:"telemetry_poll_interval,omitempty"`
	IOPollInterval        models.Duration     `json:"io_poll_interval,omitempty"`
	InactivityThreshold   models.Duration     `json:"inactivity_threshold,omitempty"`
	StatusDwell           models.Duration     `json:"status_dwell,omitempty"`
	Fetch                 fetch.Config        `json:"fetch"`
	Events                models.EventsConfig `json:"events,omitempty"`
	NATS                  *models.NATSConfig  `json:"nats,omitempty"`
	Logging               *logger.Config      `json:"logging,omitempty"`
}

// Validate implements config.Validator. Bad threshold values are the
// one fatal error class in the engine; everything at runtime degrades
// gracefully instead.
func (c *Config) Validate() error {
	if c.Fetch.BaseURL == "" {
		return errBaseURLRequired
	}

	if time.Duration(c.TelemetryPollInterval) < 0 || time.Duration(c.IOPollInterval) < 0 {
		return errNegativeInterval
	}

	if time.Duration(c.InactivityThreshold) < 0 {
		return errNegativeThreshold
	}

	if time.Duration(c.StatusDwell) < 0 {
		return errNegativeDwell
	}

	if time.Duration(c.TelemetryPollInterval) == 0 {
		c.TelemetryPollInterval = models.Duration(defaultTelemetryInterval)
	}

	if time.Duration(c.IOPollInterval) == 0 {
		c.IOPollInterval = models.Duration(defaultIOInterval)
	}

	if time.Duration(c.InactivityThreshold) == 0 {
		c.InactivityThreshold = models.Duration(defaultInactivityThreshold)
	}

	if time.Duration(c.StatusDwell) == 0 {
		c.StatusDwell = models.Duration(defaultStatusDwell)
	}

	if time.Duration(c.StatusDwell) >= time.Duration(c.InactivityThreshold) {
		return errDwellOverThreshold
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errEventsConfigInvalid, err)
	}

	if c.Events.Enabled && c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	}

	return nil
}
