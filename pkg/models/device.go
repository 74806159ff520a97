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

import "time"

// DeviceStatus is the exposed liveness state of a device.
type DeviceStatus string

const (
	// StatusChecking means no valid telemetry timestamp has been seen yet.
	StatusChecking DeviceStatus = "Checking"
	StatusOnline   DeviceStatus = "Online"
	StatusOffline  DeviceStatus = "Offline"
)

// BatteryState describes the charge trend reported by the battery endpoint.
type BatteryState string

const (
	BatteryIdle        BatteryState = "idle"
	BatteryCharging    BatteryState = "charging"
	BatteryDischarging BatteryState = "discharging"
)

// ParseBatteryState collapses unknown values to idle, matching the
// battery endpoint's own default.
func ParseBatteryState(s string) BatteryState {
	switch BatteryState(s) {
	case BatteryCharging:
		return BatteryCharging
	case BatteryDischarging:
		return BatteryDischarging
	case BatteryIdle:
		return BatteryIdle
	default:
		return BatteryIdle
	}
}

// Device is the identity record owned by the external device-management
// service. The engine only reads the id set; it never mutates devices.
type Device struct {
	ClientID  string    `json:"client_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// GPSLocation is a device position reported by the GPS endpoint.
// Altitude and Satellites are optional in the wire format.
type GPSLocation struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Altitude   *float64   `json:"altitude,omitempty"`
	Satellites *int       `json:"satellites,omitempty"`
}

// IOState is the digital I/O record from the fast device-state endpoint.
type IOState struct {
	Charging    bool      `json:"charging"`
	In1         bool      `json:"in1_state"`
	In2         bool      `json:"in2_state"`
	Out1        bool      `json:"out1_state"`
	Out2        bool      `json:"out2_state"`
	PowerSaving bool      `json:"power_saving"`
	MotorSpeed  int       `json:"motor_speed"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// PartialSnapshot is one cycle's possibly-incomplete telemetry update.
// A nil field is absent; absence is distinct from an explicit zero.
type PartialSnapshot struct {
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	Temperature   *float64   `json:"temperature,omitempty"`
	Humidity      *float64   `json:"humidity,omitempty"`
	Pressure      *float64   `json:"pressure,omitempty"`
	MotorSpeed    *float64   `json:"motor_speed,omitempty"`
	Battery       *float64   `json:"battery,omitempty"`
	SignalQuality *float64   `json:"signal_quality,omitempty"`
	DeviceKind    *string    `json:"device,omitempty"`
}

// IsEmpty reports whether the partial carries no fields at all.
func (p *PartialSnapshot) IsEmpty() bool {
	return p.Timestamp == nil &&
		p.Temperature == nil &&
		p.Humidity == nil &&
		p.Pressure == nil &&
		p.MotorSpeed == nil &&
		p.Battery == nil &&
		p.SignalQuality == nil &&
		p.DeviceKind == nil
}

// DeviceSnapshot is the reconciled last-known view of one device. It is
// owned by the snapshot store; callers always receive clones.
type DeviceSnapshot struct {
	ClientID          string          `json:"client_id"`
	Temperature       *float64        `json:"temperature,omitempty"`
	Humidity          *float64        `json:"humidity,omitempty"`
	Pressure          *float64        `json:"pressure,omitempty"`
	MotorSpeed        *float64        `json:"motor_speed,omitempty"`
	Battery           *float64        `json:"battery,omitempty"`
	SignalQuality     *float64        `json:"signal_quality,omitempty"`
	DeviceKind        string          `json:"device,omitempty"`
	MetricsVisibility map[string]bool `json:"metrics_visibility,omitempty"`
	BatteryState      BatteryState    `json:"battery_state,omitempty"`
	LastSeen          time.Time       `json:"last_seen,omitempty"`
	GPS               *GPSLocation    `json:"gps_location,omitempty"`
	IO                *IOState        `json:"io_state,omitempty"`
	Status            DeviceStatus    `json:"status"`
}

// Clone returns a deep copy so store internals are never aliased.
func (s *DeviceSnapshot) Clone() *DeviceSnapshot {
	if s == nil {
		return nil
	}

	out := *s

	out.Temperature = cloneFloat(s.Temperature)
	out.Humidity = cloneFloat(s.Humidity)
	out.Pressure = cloneFloat(s.Pressure)
	out.MotorSpeed = cloneFloat(s.MotorSpeed)
	out.Battery = cloneFloat(s.Battery)
	out.SignalQuality = cloneFloat(s.SignalQuality)

	if s.MetricsVisibility != nil {
		out.MetricsVisibility = make(map[string]bool, len(s.MetricsVisibility))
		for k, v := range s.MetricsVisibility {
			out.MetricsVisibility[k] = v
		}
	}

	if s.GPS != nil {
		gps := *s.GPS
		if s.GPS.Timestamp != nil {
			ts := *s.GPS.Timestamp
			gps.Timestamp = &ts
		}

		if s.GPS.Altitude != nil {
			alt := *s.GPS.Altitude
			gps.Altitude = &alt
		}

		if s.GPS.Satellites != nil {
			sat := *s.GPS.Satellites
			gps.Satellites = &sat
		}

		out.GPS = &gps
	}

	if s.IO != nil {
		io := *s.IO
		out.IO = &io
	}

	return &out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}

	v := *f

	return &v
}

// StatusTransition records one promotion of a device's exposed status.
type StatusTransition struct {
	From DeviceStatus `json:"from"`
	To   DeviceStatus `json:"to"`
	At   time.Time    `json:"at"`
}
