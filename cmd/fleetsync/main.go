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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/carverauto/fleetsync/pkg/config"
	"github.com/carverauto/fleetsync/pkg/events"
	"github.com/carverauto/fleetsync/pkg/fetch"
	"github.com/carverauto/fleetsync/pkg/logger"
	"github.com/carverauto/fleetsync/pkg/scheduler"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/fleetsync/engine.json", "Path to engine config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg scheduler.Config

	if err := config.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	engineLogger, err := logger.NewComponentLogger("engine", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if serr := logger.Shutdown(); serr != nil {
			log.Printf("Failed to flush logs: %v", serr)
		}
	}()

	deps := scheduler.Deps{
		Devices:     fetch.NewDeviceListClient(cfg.Fetch, engineLogger),
		Telemetry:   fetch.NewTelemetryClient(cfg.Fetch, engineLogger),
		Preferences: fetch.NewPreferencesClient(cfg.Fetch, engineLogger),
		GPS:         fetch.NewGPSClient(cfg.Fetch, engineLogger),
		IOState:     fetch.NewDeviceStateClient(cfg.Fetch, engineLogger),
		Battery:     fetch.NewBatteryClient(cfg.Fetch, engineLogger),
	}

	if cfg.Events.Enabled && cfg.NATS != nil {
		publisher, perr := events.NewNATSPublisher(ctx, cfg.NATS, cfg.Events)
		if perr != nil {
			return fmt.Errorf("failed to connect event publisher: %w", perr)
		}

		defer publisher.Close()

		deps.External = publisher
	}

	engine, err := scheduler.New(&cfg, deps, nil, engineLogger) // nil clock defaults to the real clock
	if err != nil {
		return err
	}

	go watchConfig(ctx, *configPath, engineLogger, engine)

	err = engine.Start(ctx)

	if serr := engine.Stop(context.Background()); serr != nil {
		engineLogger.Warn().Err(serr).Msg("Engine shutdown reported an error")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// watchConfig hot-reloads poll intervals when the config file changes.
// Anything else in the file requires a restart to take effect.
func watchConfig(ctx context.Context, path string, log logger.Logger, engine *scheduler.Engine) {
	err := config.Watch(ctx, path, log, func(ctx context.Context) error {
		var next scheduler.Config
		if err := config.LoadAndValidate(ctx, path, &next); err != nil {
			return err
		}

		return engine.Reload(&next)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Config watcher exited")
	}
}
