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

package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsync/pkg/fetch"
	"github.com/carverauto/fleetsync/pkg/logger"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewWithClock(logger.NewTestLogger(), func() time.Time { return testNow })
}

func wrapLegacy(t *testing.T, doc map[string]interface{}) []byte {
	t.Helper()

	inner, err := json.Marshal(map[string]interface{}{"device_data": doc})
	require.NoError(t, err)

	outer, err := json.Marshal(map[string]interface{}{"body": string(inner)})
	require.NoError(t, err)

	return outer
}

func wrapDirect(t *testing.T, doc map[string]interface{}) []byte {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{"device_data": doc})
	require.NoError(t, err)

	return raw
}

func TestDecodeEnvelope(t *testing.T) {
	doc := map[string]interface{}{"temperature": 21.5}

	t.Run("legacy wrapped", func(t *testing.T) {
		env, err := DecodeEnvelope(wrapLegacy(t, doc))
		require.NoError(t, err)
		assert.Equal(t, LegacyWrapped, env.Kind)
		assert.InDelta(t, 21.5, env.Doc["temperature"], 0.001)
	})

	t.Run("direct", func(t *testing.T) {
		env, err := DecodeEnvelope(wrapDirect(t, doc))
		require.NoError(t, err)
		assert.Equal(t, Direct, env.Kind)
		assert.InDelta(t, 21.5, env.Doc["temperature"], 0.001)
	})

	t.Run("legacy wins over direct", func(t *testing.T) {
		inner, err := json.Marshal(map[string]interface{}{
			"device_data": map[string]interface{}{"temperature": 1.0},
		})
		require.NoError(t, err)

		raw, err := json.Marshal(map[string]interface{}{
			"body":        string(inner),
			"device_data": map[string]interface{}{"temperature": 2.0},
		})
		require.NoError(t, err)

		env, err := DecodeEnvelope(raw)
		require.NoError(t, err)
		assert.Equal(t, LegacyWrapped, env.Kind)
		assert.InDelta(t, 1.0, env.Doc["temperature"], 0.001)
	})

	t.Run("undefined body falls through to direct", func(t *testing.T) {
		raw, err := json.Marshal(map[string]interface{}{
			"body":        "undefined",
			"device_data": map[string]interface{}{"temperature": 3.0},
		})
		require.NoError(t, err)

		env, err := DecodeEnvelope(raw)
		require.NoError(t, err)
		assert.Equal(t, Direct, env.Kind)
	})

	t.Run("neither shape", func(t *testing.T) {
		var formatErr *fetch.FormatError

		_, err := DecodeEnvelope([]byte(`{"something": "else"}`))
		require.Error(t, err)
		assert.ErrorAs(t, err, &formatErr)
	})

	t.Run("not json", func(t *testing.T) {
		var formatErr *fetch.FormatError

		_, err := DecodeEnvelope([]byte(`<html>502 Bad Gateway</html>`))
		require.Error(t, err)
		assert.ErrorAs(t, err, &formatErr)
	})

	t.Run("garbage body wrapper", func(t *testing.T) {
		var formatErr *fetch.FormatError

		raw, err := json.Marshal(map[string]interface{}{"body": "{not json"})
		require.NoError(t, err)

		_, err = DecodeEnvelope(raw)
		require.Error(t, err)
		assert.ErrorAs(t, err, &formatErr)
	})
}

func TestNormalizeFields(t *testing.T) {
	n := newTestNormalizer()

	raw := wrapDirect(t, map[string]interface{}{
		"timestamp":      testNow.Add(-time.Minute).Format(time.RFC3339),
		"temperature":    22.4,
		"humidity":       41.0,
		"pressure":       1013.2,
		"motor_speed":    1500.0,
		"battery":        76.0,
		"signal_quality": 87.0,
		"device":         "tracker",
	})

	partial, err := n.Normalize("dev-1", raw)
	require.NoError(t, err)

	require.NotNil(t, partial.Timestamp)
	assert.Equal(t, testNow.Add(-time.Minute), partial.Timestamp.UTC())

	require.NotNil(t, partial.Temperature)
	assert.InDelta(t, 22.4, *partial.Temperature, 0.001)
	require.NotNil(t, partial.SignalQuality)
	assert.InDelta(t, 87, *partial.SignalQuality, 0.001)
	require.NotNil(t, partial.DeviceKind)
	assert.Equal(t, "tracker", *partial.DeviceKind)
}

func TestNormalizeLatestDataNesting(t *testing.T) {
	n := newTestNormalizer()

	raw := wrapDirect(t, map[string]interface{}{
		"latest_data": map[string]interface{}{
			"temperature": 19.5,
		},
	})

	partial, err := n.Normalize("dev-1", raw)
	require.NoError(t, err)
	require.NotNil(t, partial.Temperature)
	assert.InDelta(t, 19.5, *partial.Temperature, 0.001)
}

func TestNormalizeDropsNonNumericFields(t *testing.T) {
	n := newTestNormalizer()

	raw := wrapDirect(t, map[string]interface{}{
		"temperature": "22.4C",
		"humidity":    nil,
		"battery":     76.0,
	})

	partial, err := n.Normalize("dev-1", raw)
	require.NoError(t, err)
	assert.Nil(t, partial.Temperature, "non-numeric field is dropped, not zeroed")
	assert.Nil(t, partial.Humidity)
	require.NotNil(t, partial.Battery)
	assert.InDelta(t, 76, *partial.Battery, 0.001)
}

func TestNumberFieldRejectsNonFinite(t *testing.T) {
	n := newTestNormalizer()

	doc := map[string]interface{}{
		"temperature": math.NaN(),
		"humidity":    math.Inf(1),
		"pressure":    math.Inf(-1),
		"battery":     76.0,
	}

	assert.Nil(t, n.numberField("dev-1", doc, "temperature"))
	assert.Nil(t, n.numberField("dev-1", doc, "humidity"))
	assert.Nil(t, n.numberField("dev-1", doc, "pressure"))
	require.NotNil(t, n.numberField("dev-1", doc, "battery"))
}

func TestNormalizeTimestampValidation(t *testing.T) {
	n := newTestNormalizer()

	t.Run("far future rejects whole partial", func(t *testing.T) {
		var validationErr *fetch.ValidationError

		raw := wrapDirect(t, map[string]interface{}{
			"timestamp":   testNow.Add(time.Hour).Format(time.RFC3339),
			"temperature": 22.0,
		})

		_, err := n.Normalize("dev-1", raw)
		require.Error(t, err)
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("slight clock skew tolerated", func(t *testing.T) {
		raw := wrapDirect(t, map[string]interface{}{
			"timestamp": testNow.Add(time.Minute).Format(time.RFC3339),
		})

		partial, err := n.Normalize("dev-1", raw)
		require.NoError(t, err)
		require.NotNil(t, partial.Timestamp)
	})

	t.Run("unparseable timestamp rejects whole partial", func(t *testing.T) {
		var validationErr *fetch.ValidationError

		raw := wrapDirect(t, map[string]interface{}{
			"timestamp": "yesterday-ish",
		})

		_, err := n.Normalize("dev-1", raw)
		require.Error(t, err)
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("space separated layout accepted", func(t *testing.T) {
		raw := wrapDirect(t, map[string]interface{}{
			"timestamp": "2025-06-01 11:58:00",
		})

		partial, err := n.Normalize("dev-1", raw)
		require.NoError(t, err)
		require.NotNil(t, partial.Timestamp)
	})

	t.Run("absent timestamp is fine", func(t *testing.T) {
		raw := wrapDirect(t, map[string]interface{}{
			"temperature": 20.0,
		})

		partial, err := n.Normalize("dev-1", raw)
		require.NoError(t, err)
		assert.Nil(t, partial.Timestamp)
	})
}

func TestNormalizeLegacyEnvelope(t *testing.T) {
	n := newTestNormalizer()

	raw := wrapLegacy(t, map[string]interface{}{
		"timestamp":   testNow.Add(-2 * time.Minute).Format(time.RFC3339),
		"temperature": 18.0,
	})

	partial, err := n.Normalize("dev-1", raw)
	require.NoError(t, err)
	require.NotNil(t, partial.Temperature)
	assert.InDelta(t, 18, *partial.Temperature, 0.001)
}
