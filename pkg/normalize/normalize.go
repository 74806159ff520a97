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

// Package normalize hides the telemetry endpoint's historical wire-format
// drift behind a single canonical PartialSnapshot.
package normalize

import (
	"encoding/json"
	"math"
	"time"

	"github.com/carverauto/fleetsync/pkg/fetch"
	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
)

// futureTolerance is how far ahead of the wall clock a telemetry
// timestamp may sit before the whole partial is rejected.
const futureTolerance = 2 * time.Minute

// EnvelopeKind identifies which of the two documented wire shapes a
// telemetry response used.
type EnvelopeKind int

const (
	// LegacyWrapped carries the device document as stringified JSON
	// under a "body" key.
	LegacyWrapped EnvelopeKind = iota + 1
	// Direct carries the device document at the top level.
	Direct
)

// Envelope is the resolved wire shape plus the device-data document.
type Envelope struct {
	Kind EnvelopeKind
	Doc  map[string]interface{}
}

// Normalizer turns raw telemetry payloads into canonical partials.
type Normalizer struct {
	logger logger.Logger
	now    func() time.Time
}

func New(log logger.Logger) *Normalizer {
	return &Normalizer{logger: log, now: time.Now}
}

// NewWithClock is used by tests that need a fixed wall clock.
func NewWithClock(log logger.Logger, now func() time.Time) *Normalizer {
	return &Normalizer{logger: log, now: now}
}

// DecodeEnvelope resolves the wire shape once, so no caller ever probes
// payload shapes ad hoc. Legacy wrapping wins when both shapes could
// apply, matching the order the dashboards always tried them in.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var outer map[string]interface{}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return Envelope{}, &fetch.FormatError{Reason: "response is not a JSON object"}
	}

	if body, ok := outer["body"].(string); ok && body != "" && body != "undefined" && body != "null" {
		var inner map[string]interface{}
		if err := json.Unmarshal([]byte(body), &inner); err != nil {
			return Envelope{}, &fetch.FormatError{Reason: "unparseable body wrapper"}
		}

		if doc, ok := inner["device_data"].(map[string]interface{}); ok {
			return Envelope{Kind: LegacyWrapped, Doc: doc}, nil
		}

		return Envelope{Kind: LegacyWrapped, Doc: inner}, nil
	}

	if doc, ok := outer["device_data"].(map[string]interface{}); ok {
		return Envelope{Kind: Direct, Doc: doc}, nil
	}

	return Envelope{}, &fetch.FormatError{Reason: "no body wrapper and no device_data key"}
}

// Normalize produces a canonical partial snapshot, or a FormatError when
// neither wire shape applies, or a ValidationError when the timestamp is
// implausible. Callers keep the previous cycle's cached fields on error;
// a single malformed response must never read as "device went offline".
func (n *Normalizer) Normalize(deviceID string, raw []byte) (*models.PartialSnapshot, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	doc := env.Doc

	// Some firmware revisions nest the fields one level deeper.
	if latest, ok := doc["latest_data"].(map[string]interface{}); ok {
		doc = latest
	}

	partial := &models.PartialSnapshot{}

	if ts, present := doc["timestamp"]; present {
		parsed, ok := n.validTimestamp(ts)
		if !ok {
			// An implausible timestamp poisons the whole partial;
			// this cycle becomes a no-op for the device.
			return nil, &fetch.ValidationError{Field: "timestamp", Reason: "unparseable or too far in the future"}
		}

		partial.Timestamp = parsed
	}

	partial.Temperature = n.numberField(deviceID, doc, "temperature")
	partial.Humidity = n.numberField(deviceID, doc, "humidity")
	partial.Pressure = n.numberField(deviceID, doc, "pressure")
	partial.MotorSpeed = n.numberField(deviceID, doc, "motor_speed")
	partial.Battery = n.numberField(deviceID, doc, "battery")
	partial.SignalQuality = n.numberField(deviceID, doc, "signal_quality")

	if kind, ok := doc["device"].(string); ok && kind != "" {
		partial.DeviceKind = &kind
	}

	return partial, nil
}

// validTimestamp parses and range-checks a telemetry timestamp.
func (n *Normalizer) validTimestamp(value interface{}) (*time.Time, bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil, false
	}

	var parsed time.Time

	var err error

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		parsed, err = time.Parse(layout, s)
		if err == nil {
			break
		}
	}

	if err != nil {
		return nil, false
	}

	if parsed.After(n.now().Add(futureTolerance)) {
		return nil, false
	}

	return &parsed, true
}

// numberField extracts a finite numeric field, dropping anything else.
// A dropped field is absent, not zero; the merge keeps the cached value.
func (n *Normalizer) numberField(deviceID string, doc map[string]interface{}, key string) *float64 {
	value, present := doc[key]
	if !present || value == nil {
		return nil
	}

	f, ok := value.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		n.logger.Debug().
			Str("device_id", deviceID).
			Str("field", key).
			Msg("Dropping non-numeric telemetry field")

		return nil
	}

	return &f
}
