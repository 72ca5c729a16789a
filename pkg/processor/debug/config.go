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

// Package debug renders a line of telemetry about every message passing
// through it — counts only, a one-line summary, or a full render plus
// ack/nack timing, depending on configured verbosity — to the console, a
// file, or a set of named out ports, optionally sampled zap-style and
// filtered by signal-field predicates. Grounded on the teacher's pervasive
// zap structured-logging idiom, generalized with zapcore's own sampling
// core (go.uber.org/zap/zapcore) to implement the "every k, then every
// nth thereafter" sampling spec.md describes, rather than hand-rolling a
// counter.
package debug

import (
	"time"

	"github.com/open-telemetry/otap-dataflow-core/pkg/node"
	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

type Verbosity int

const (
	VerbosityBasic Verbosity = iota
	VerbosityNormal
	VerbosityDetailed
)

type Mode int

const (
	ModeBatch Mode = iota
	ModeSignal
)

type OutputKind int

const (
	OutputConsole OutputKind = iota
	OutputFile
	OutputOutports
)

// Output selects where rendered lines go. FilePath is used when Kind is
// OutputFile; Ports when Kind is OutputOutports (each named port receives
// a non-blocking copy of the original message alongside the normal
// downstream forward). Compress, only meaningful for OutputFile, runs each
// rendered line through transport.Compress(Zstd) and discards the result;
// the file receives the uncompressed line.
type Output struct {
	Kind     OutputKind
	FilePath string
	Ports    []string
	Compress bool
}

type SamplingMode int

const (
	SamplingNone SamplingMode = iota
	SamplingZap
)

// Sampling configures zap-style log sampling: the first Initial messages
// in each Interval window log unconditionally, then every Thereafter-th
// message after that logs, the rest are dropped.
type Sampling struct {
	Mode       SamplingMode
	Initial    int
	Thereafter int
	Interval   time.Duration
}

// FilterAction is whether a matching FilterRule includes or excludes the
// message from being rendered.
type FilterAction int

const (
	FilterInclude FilterAction = iota
	FilterExclude
)

// FilterRule is one signal-field predicate. A zero-value field is a
// wildcard for that dimension; Signal defaults to matching every signal
// when left at its zero value only if SignalSet is false.
type FilterRule struct {
	Action         FilterAction
	Signal         node.Signal
	SignalSet      bool
	AttributeKey   string
	AttributeValue string
	EventName      string
	SeverityText   string
}

func (r FilterRule) matches(s rendered) bool {
	if r.SignalSet && r.Signal != s.signal {
		return false
	}
	if r.AttributeKey != "" {
		v, ok := s.attributes[r.AttributeKey]
		if !ok {
			return false
		}
		if r.AttributeValue != "" && v != r.AttributeValue {
			return false
		}
	}
	if r.EventName != "" && r.EventName != s.eventName {
		return false
	}
	if r.SeverityText != "" && r.SeverityText != s.severityText {
		return false
	}
	return true
}

// Config is the debug processor's construction/reconfiguration payload.
type Config struct {
	Verbosity Verbosity
	Mode      Mode
	// Signals restricts which signals are rendered; empty means all three.
	Signals  []node.Signal
	Output   Output
	Filters  []FilterRule
	Sampling Sampling
}

func (c *Config) signalEnabled(s node.Signal) bool {
	if len(c.Signals) == 0 {
		return true
	}
	for _, want := range c.Signals {
		if want == s {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.Output.Kind == OutputFile && c.Output.FilePath == "" {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "debug file output requires a path"})
	}
	if c.Output.Kind == OutputOutports && len(c.Output.Ports) == 0 {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "debug outports output requires at least one port"})
	}
	if c.Sampling.Mode == SamplingZap && c.Sampling.Thereafter <= 0 {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "debug zap-style sampling requires a positive thereafter value"})
	}
	return nil
}

// shouldRender applies include/exclude filter rules to s: any matching
// Exclude rule drops the message outright; otherwise, if at least one
// Include rule is configured, only an explicit match renders; with no
// rules at all, everything renders.
func (c *Config) shouldRender(s rendered) bool {
	if !c.signalEnabled(s.signal) {
		return false
	}
	haveInclude := false
	for _, r := range c.Filters {
		if r.Action == FilterInclude {
			haveInclude = true
		}
		if r.matches(s) && r.Action == FilterExclude {
			return false
		}
	}
	if !haveInclude {
		return true
	}
	for _, r := range c.Filters {
		if r.Action == FilterInclude && r.matches(s) {
			return true
		}
	}
	return false
}
