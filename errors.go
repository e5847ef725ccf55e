// Copyright 2021 Airbus Defence and Space
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tilestats

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned (wrapped in a *ConfigError) when an Engine or a
	// Statistic cannot be built from the supplied options. No partial Engine is
	// ever returned alongside it.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrKindMismatch is returned when merging two statistics of different kinds.
	// The engine never does this, seeing it means the caller paired the wrong cells.
	ErrKindMismatch = errors.New("statistic kind mismatch")
	// ErrUnsupportedMerge is returned by Merge on histogram, mode and median
	// statistics. Those must be fed every raw sample through a single instance.
	ErrUnsupportedMerge = errors.New("statistic cannot be merged")
	// ErrTileComputed is returned by Engine.ComputeTile for a tile that was already
	// scanned during the current pass.
	ErrTileComputed = errors.New("tile already computed")
	// ErrClosed is returned by every Engine method once Close has been called
	ErrClosed = errors.New("engine closed")
	// ErrUnsupportedType is returned for sample buffers or type names that do not
	// map to a supported DataType
	ErrUnsupportedType = errors.New("unsupported data type")
)

// ConfigError describes which construction parameter was rejected
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) hold
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErrorf(field string, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
