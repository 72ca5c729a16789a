/*
 * Copyright The OpenTelemetry Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package werror

import "fmt"

// QueryLocation is a source span within a query or config text, attached to
// errors that need to be surfaced to the author of that text.
type QueryLocation struct {
	Line   int
	Column int
}

func (l QueryLocation) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// TypeMismatchError is raised when a value coercion required by an
// expression cannot be performed.
type TypeMismatchError struct {
	Location QueryLocation
	Message  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch at %s: %s", e.Location, e.Message)
}

// SyntaxError describes malformed query text at a QueryLocation. The KQL
// parser reports its own kql.SyntaxError and does not use this type.
type SyntaxError struct {
	Location QueryLocation
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Location, e.Message)
}

// PdataConversionError is raised when OTLP bytes cannot be decoded or
// re-encoded.
type PdataConversionError struct {
	Message string
}

func (e *PdataConversionError) Error() string {
	return fmt.Sprintf("pdata conversion error: %s", e.Message)
}

// InvalidUserConfigError is raised when a processor config is rejected at
// construction or reconfiguration time.
type InvalidUserConfigError struct {
	Message string
}

func (e *InvalidUserConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", e.Message)
}

// InternalError marks an invariant violation that should be unreachable.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

// TooManyItemsError is raised by the reindexer when a signal's merged ID
// space would exceed its maximum.
type TooManyItemsError struct {
	Signal string
	Count  int
	Max    int
}

func (e *TooManyItemsError) Error() string {
	return fmt.Sprintf("too many items for signal %q: %d exceeds max %d", e.Signal, e.Count, e.Max)
}

// UnsupportedDictionaryKeyTypeError is raised by the adaptive array builder
// when a dictionary key type outside {u8, u16} is requested.
type UnsupportedDictionaryKeyTypeError struct {
	KeyType string
}

func (e *UnsupportedDictionaryKeyTypeError) Error() string {
	return fmt.Sprintf("unsupported dictionary key type: %s", e.KeyType)
}

// ColumnDataTypeMismatchError is raised when an Arrow column's declared type
// does not match the type an operation expects.
type ColumnDataTypeMismatchError struct {
	Column   string
	Expected string
	Actual   string
}

func (e *ColumnDataTypeMismatchError) Error() string {
	return fmt.Sprintf("column %q: expected type %s, got %s", e.Column, e.Expected, e.Actual)
}

// ColumnNotFoundError is raised when a required Arrow column is absent from
// a record batch.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}
