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

package kql

// ParserState tracks declared variables, attached-data names, the query
// text for error framing, and optionally a default source map key: when
// set, a bare identifier like `k2` resolves to `source.<defaultKey>.k2`
// rather than `source.k2`.
type ParserState struct {
	QueryText  string
	Variables  map[string]bool
	Attached   map[string]bool
	DefaultKey string
}

// NewParserState creates a ParserState for a query over a source with the
// given attached-context names (e.g. "resource", "scope") and default
// source map key (e.g. "attributes"; empty disables the default).
func NewParserState(queryText string, attached []string, defaultKey string) *ParserState {
	s := &ParserState{
		QueryText:  queryText,
		Variables:  map[string]bool{},
		Attached:   map[string]bool{},
		DefaultKey: defaultKey,
	}
	for _, a := range attached {
		s.Attached[a] = true
	}
	return s
}

func (s *ParserState) DeclareVariable(name string) { s.Variables[name] = true }
func (s *ParserState) IsVariable(name string) bool  { return s.Variables[name] }
func (s *ParserState) IsAttached(name string) bool  { return s.Attached[name] }
