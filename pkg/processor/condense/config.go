// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package condense rewrites an Arrow LogAttrs batch by folding a subset of
// attribute keys into one delimited "k=v" string under a destination key,
// grouped by parent_id. Grounded on the teacher's
// pkg/otel/logs/arrow/log_record.go attribute-column handling (typed
// str/int/double/bool value columns keyed by a type enum) and
// pkg/transport's quasi-delta parent_id encoding, which this processor
// must strip before reclassifying rows and reapply to whatever rows it
// emits.
package condense

import (
	"strings"

	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// Config is the condense processor's construction/reconfiguration payload.
type Config struct {
	DestinationKey string
	Delimiter      string
	SourceKeys     []string
	ExcludeKeys    []string
}

func (c *Config) Validate() error {
	if c.DestinationKey == "" {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "condense destination_key is required"})
	}
	if c.Delimiter == "" || strings.Contains(c.Delimiter, "=") {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "condense delimiter is required and must not contain '='"})
	}
	if len(c.SourceKeys) > 0 && len(c.ExcludeKeys) > 0 {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "condense source_keys and exclude_keys are mutually exclusive"})
	}
	for _, k := range c.SourceKeys {
		if k == c.DestinationKey {
			return werror.Wrap(&werror.InvalidUserConfigError{Message: "condense destination_key must not appear in source_keys"})
		}
	}
	for _, k := range c.ExcludeKeys {
		if k == c.DestinationKey {
			return werror.Wrap(&werror.InvalidUserConfigError{Message: "condense destination_key must not appear in exclude_keys"})
		}
	}
	return nil
}

// selectable reports whether key is a candidate for condensing under this
// config, before the destination-key stale-row check is applied.
func (c *Config) selectable(key string) bool {
	if len(c.SourceKeys) > 0 {
		for _, k := range c.SourceKeys {
			if k == key {
				return true
			}
		}
		return false
	}
	if len(c.ExcludeKeys) > 0 {
		for _, k := range c.ExcludeKeys {
			if k == key {
				return false
			}
		}
		return true
	}
	return true
}
