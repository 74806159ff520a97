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

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/carverauto/fleetsync/pkg/logger"
)

// debounceWindow coalesces the burst of write events editors and
// config-management tools produce for a single save.
const debounceWindow = 500 * time.Millisecond

// Watch re-reads path whenever it changes and hands the raw load to
// onChange via the supplied reload function. It blocks until ctx is
// done. A reload that fails to load or validate is logged and skipped;
// the running config stays in effect.
func Watch(ctx context.Context, path string, log logger.Logger, onChange func(ctx context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Failed to close config watcher")
		}
	}()

	// Watch the directory: most writers replace the file, which would
	// drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)

	var timer *time.Timer

	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}
		case <-timerC:
			timer = nil
			timerC = nil

			if err := onChange(ctx); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Config reload failed, keeping previous config")
			} else {
				log.Info().Str("path", path).Msg("Config reloaded")
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.Warn().Err(werr).Msg("Config watcher error")
		}
	}
}
