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

package models

import (
	"fmt"
	"time"
)

// NATSConfig configures NATS connectivity for the optional event stream.
type NATSConfig struct {
	URL    string `json:"url"`
	Domain string `json:"domain,omitempty"`
}

// Validate ensures the NATS configuration is valid.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats url is required")
	}

	return nil
}

// EventsConfig configures outbound event publishing.
type EventsConfig struct {
	Enabled    bool     `json:"enabled"`
	StreamName string   `json:"stream_name"`
	Subjects   []string `json:"subjects"`
}

// Validate ensures the events configuration is valid.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.StreamName == "" {
		c.StreamName = "events"
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{"events.device.*"}
	}

	return nil
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// DeviceStatusEventData is the payload for device-status-changed events.
type DeviceStatusEventData struct {
	DeviceID       string       `json:"device_id"`
	PreviousStatus DeviceStatus `json:"previous_status"`
	CurrentStatus  DeviceStatus `json:"current_status"`
	LastSeen       time.Time    `json:"last_seen"`
	Timestamp      time.Time    `json:"timestamp"`
}

// SnapshotEventData is the payload for snapshot-updated events.
type SnapshotEventData struct {
	DeviceID  string          `json:"device_id"`
	Snapshot  *DeviceSnapshot `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}
