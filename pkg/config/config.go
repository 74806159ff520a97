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

// Package config loads JSON configuration files and validates them.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var errInvalidConfigPtr = errors.New("config must be a non-nil pointer")

// Validator is implemented by config structs that can check themselves.
// Validation failures at load time are fatal; steady-state polling
// errors never are.
type Validator interface {
	Validate() error
}

// Loader reads a config document into a destination struct.
type Loader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// FileLoader loads configuration from a local JSON file.
type FileLoader struct{}

// Load implements Loader by reading and unmarshaling a JSON file.
func (*FileLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	return nil
}

// LoadAndValidate loads a config file and runs Validate when the
// destination implements Validator.
func LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	if dst == nil {
		return errInvalidConfigPtr
	}

	loader := &FileLoader{}
	if err := loader.Load(ctx, path, dst); err != nil {
		return err
	}

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}
