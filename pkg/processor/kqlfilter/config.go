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

// Package kqlfilter wires the already-built query engine (pkg/kql +
// pkg/exec) into a node.Processor: compile once at construction, register
// the result with an opaque id in a shared pkg/exec.Registry, and only
// recompile/re-register on a Config control message whose query or bridge
// options actually differ from the current ones — otherwise keep running
// the previous pipeline. Logs is the only signal this contract executes
// against; Metrics/Traces are rejected outright.
package kqlfilter

import (
	"reflect"

	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// BridgeOptions configures how the KQL compiler resolves attached context
// and the default source map key, mirroring pkg/kql.Compile's parameters.
type BridgeOptions struct {
	Attached   []string
	DefaultKey string
}

// Config is the KQL filter's construction/reconfiguration payload.
type Config struct {
	Query         string
	BridgeOptions BridgeOptions
}

func (c *Config) Validate() error {
	if c.Query == "" {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "kql filter query is required"})
	}
	return nil
}

// Equal reports whether other has the same query and bridge options as c,
// i.e. whether switching to it needs no recompile.
func (c *Config) Equal(other Config) bool {
	return c.Query == other.Query && reflect.DeepEqual(c.BridgeOptions, other.BridgeOptions)
}
