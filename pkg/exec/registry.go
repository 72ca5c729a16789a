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

package exec

import (
	"sync"

	"github.com/open-telemetry/otap-dataflow-core/pkg/expr"
)

// Registry assigns an opaque, monotonically increasing id to every
// compiled pipeline registered with it — the KQL processor's binding
// surface: construction registers once, reconfiguration registers again
// only when the query actually changed, otherwise keeping the previous id.
// Safe for concurrent use since a registry may be shared by construction
// and later reconfiguration calls running on different goroutines.
type Registry struct {
	mu        sync.Mutex
	next      int
	pipelines map[int]*expr.Pipeline
}

func NewRegistry() *Registry {
	return &Registry{pipelines: map[int]*expr.Pipeline{}}
}

// Register assigns a fresh id to pipeline and returns it.
func (r *Registry) Register(pipeline *expr.Pipeline) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.pipelines[id] = pipeline
	return id
}

// Get returns the pipeline registered under id, if any.
func (r *Registry) Get(id int) (*expr.Pipeline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[id]
	return p, ok
}

// Forget removes id's registration, used when a node reconfigures away
// from a pipeline nothing else references.
func (r *Registry) Forget(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pipelines, id)
}
