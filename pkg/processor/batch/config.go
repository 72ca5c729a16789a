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

// Package batch splits/merges OTLP log requests to hold a configured number
// of leaf records per outgoing batch while preserving resource/scope
// hierarchy, carrying any undersized leftover forward to merge with the next
// request. Grounded on pkg/otel/arrow_record/producer.go's request/scope-
// group hierarchy and _examples/original_source's otlp_batch_processor.rs
// for the splitting/pending-fragment algorithm the teacher never implements
// (its producer always emits one BatchArrowRecords per input, no splitting).
package batch

import (
	"time"

	"github.com/open-telemetry/otap-dataflow-core/pkg/werror"
)

// SizerMode selects what "size" counts when deciding where to split.
type SizerMode int

const (
	SizerRequests SizerMode = iota
	SizerItems
	SizerBytes
)

// Config is the batch processor's construction/reconfiguration payload.
type Config struct {
	Sizer         SizerMode
	SendBatchSize int
	Timeout       time.Duration
}

func (c *Config) Validate() error {
	if c.Sizer != SizerRequests && c.SendBatchSize <= 0 {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "batch send_batch_size must be positive for items/bytes sizers"})
	}
	if c.Timeout < 0 {
		return werror.Wrap(&werror.InvalidUserConfigError{Message: "batch timeout cannot be negative"})
	}
	return nil
}
