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

// Package scheduler orchestrates the polling loops: a slow telemetry
// cycle and a fast best-effort I/O cycle, each committing results as one
// atomic batch.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/fleetsync/pkg/events"
	"github.com/carverauto/fleetsync/pkg/liveness"
	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/models"
	"github.com/carverauto/fleetsync/pkg/normalize"
	"github.com/carverauto/fleetsync/pkg/snapshot"
)

// Deps bundles the engine's collaborators. External is optional;
// everything else is required.
type Deps struct {
	Devices     DeviceLister
	Telemetry   TelemetryFetcher
	Preferences PreferencesFetcher
	GPS         GPSFetcher
	IOState     IOStateFetcher
	Battery     BatteryFetcher
	External    ExternalPublisher
}

type intervals struct {
	telemetry time.Duration
	io        time.Duration
}

// Engine owns the snapshot store, the liveness machine, and the two
// polling loops. All state lives on the instance; consumers hold a
// reference rather than reaching into globals.
type Engine struct {
	config     Config
	deps       Deps
	clock      Clock
	logger     logger.Logger
	store      *snapshot.Store
	machine    *liveness.Machine
	normalizer *normalize.Normalizer
	bus        *events.Bus

	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	reloadCh   chan intervals
	ioReloadCh chan intervals
}

// New builds an engine. Configuration errors here are fatal; nothing
// after Start is.
func New(config *Config, deps Deps, clock Clock, log logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = realClock{}
	}

	machine, err := liveness.New(
		time.Duration(config.InactivityThreshold),
		time.Duration(config.StatusDwell),
		log,
	)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:     *config,
		deps:       deps,
		clock:      clock,
		logger:     log,
		store:      snapshot.NewStore(),
		machine:    machine,
		normalizer: normalize.New(log),
		bus:        events.NewBus(log),
		done:       make(chan struct{}),
		reloadCh:   make(chan intervals, 1),
		ioReloadCh: make(chan intervals, 1),
	}, nil
}

// Start runs both polling loops until ctx is canceled or Stop is
// called. The telemetry loop runs on the calling goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info().
		Dur("telemetry_interval", time.Duration(e.config.TelemetryPollInterval)).
		Dur("io_interval", time.Duration(e.config.IOPollInterval)).
		Dur("inactivity_threshold", time.Duration(e.config.InactivityThreshold)).
		Dur("status_dwell", time.Duration(e.config.StatusDwell)).
		Msg("Starting telemetry engine")

	e.wg.Add(1)

	go e.ioLoop(ctx)

	e.wg.Add(1)
	defer e.wg.Done()

	ticker := e.clock.Ticker(time.Duration(e.config.TelemetryPollInterval))
	defer func() { ticker.Stop() }()

	e.runTelemetryCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case <-ticker.Chan():
			e.runTelemetryCycle(ctx)
		case next := <-e.reloadCh:
			ticker.Stop()
			ticker = e.clock.Ticker(next.telemetry)
			e.logger.Info().Dur("interval", next.telemetry).Msg("Telemetry poll interval hot-reloaded")
		}
	}
}

func (e *Engine) ioLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := e.clock.Ticker(time.Duration(e.config.IOPollInterval))
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.Chan():
			e.runIOCycle(ctx)
		case next := <-e.ioReloadCh:
			ticker.Stop()
			ticker = e.clock.Ticker(next.io)
			e.logger.Info().Dur("interval", next.io).Msg("I/O poll interval hot-reloaded")
		}
	}
}

// Stop ends both loops. In-flight fetches are not aborted; their
// results are discarded when the cycle notices the engine stopped.
func (e *Engine) Stop(_ context.Context) error {
	e.closeOnce.Do(func() {
		close(e.done)
	})

	e.wg.Wait()
	e.bus.Close()

	return nil
}

// Reload applies new poll intervals from a freshly loaded config.
// Threshold and dwell changes require a restart; only the intervals are
// hot-reloadable.
func (e *Engine) Reload(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	next := intervals{
		telemetry: time.Duration(config.TelemetryPollInterval),
		io:        time.Duration(config.IOPollInterval),
	}

	// Drop a pending reload rather than block the caller.
	select {
	case e.reloadCh <- next:
	default:
	}

	select {
	case e.ioReloadCh <- next:
	default:
	}

	return nil
}

func (e *Engine) stopped() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Bus exposes the in-process event channel for subscribers.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Snapshots returns clones of every device snapshot.
func (e *Engine) Snapshots() map[string]*models.DeviceSnapshot {
	return e.store.List()
}

// Snapshot returns a clone of one device's snapshot.
func (e *Engine) Snapshot(deviceID string) (*models.DeviceSnapshot, bool) {
	return e.store.Get(deviceID)
}

// Status returns a device's exposed liveness status.
func (e *Engine) Status(deviceID string) models.DeviceStatus {
	return e.machine.Status(deviceID)
}

// History returns a device's status transitions, most recent first.
func (e *Engine) History(deviceID string) []models.StatusTransition {
	return e.machine.History(deviceID)
}
