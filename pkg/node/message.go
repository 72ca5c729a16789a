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

// Package node implements the processor framework every pipeline stage runs
// under: a typed message envelope, a LIFO call-stack Context used to route
// acks/nacks back to the node that requested them, and a single-threaded
// cooperative Scheduler loop.
package node

import "time"

// Signal identifies which OTLP signal a Payload's bytes encode.
type Signal int

const (
	SignalLogs Signal = iota
	SignalMetrics
	SignalTraces
)

func (s Signal) String() string {
	switch s {
	case SignalLogs:
		return "logs"
	case SignalMetrics:
		return "metrics"
	case SignalTraces:
		return "traces"
	default:
		return "unknown"
	}
}

// Payload is the PData carried by a Message: OTLP proto bytes for one
// export request, plus an optional decoded Arrow batch group for
// components that operate on the OTel-Arrow columnar encoding rather than
// raw OTLP.
type Payload struct {
	Signal  Signal
	Bytes   []byte
	Arrow   *ArrowBatchGroup
	ReqID   uint64
}

// ArrowBatchGroup is a set of related Arrow record batches (root payload
// plus its attribute/child tables) keyed by payload-type name, the shape
// pkg/transport and pkg/reindex operate over.
type ArrowBatchGroup struct {
	BatchID int64
	Tables  map[string]any // arrow.Record, kept as any to avoid an import cycle with pkg/arrowbuilder
}

// ControlKind enumerates the control-plane message variants a node may
// receive in place of data.
type ControlKind int

const (
	ControlTimerTick ControlKind = iota
	ControlConfig
	ControlShutdown
	ControlAck
	ControlNack
	ControlCollectTelemetry
)

// Control carries the control-plane payload for a Message. Only the fields
// relevant to Kind are populated.
type Control struct {
	Kind ControlKind

	// ControlConfig
	Config any

	// ControlShutdown
	Deadline time.Time
	Reason   string

	// ControlAck / ControlNack
	Ack  Ack
	Nack Nack

	// ControlCollectTelemetry
	Reporter TelemetryReporter
}

// Ack reports successful delivery of a previously sent Payload, carrying
// back whatever CallData the sender attached to the frame it pushed.
type Ack struct {
	CallData CallData
}

// Nack reports delivery failure, carrying the reason alongside CallData.
type Nack struct {
	CallData CallData
	Reason   string
}

// CallData is the small inline word vector a frame attaches to outgoing
// messages so that when the matching ack/nack returns, the original caller
// can recover context (e.g. a send timestamp) without a side-table lookup.
// Two words is enough for every processor in this repo (debug's latency
// reporter keeps its whole wall-clock microsecond timestamp in word 0 and
// leaves word 1 zero).
type CallData [2]uint64

// TelemetryReporter receives CollectTelemetry call-backs; processors report
// internal counters (queue depth, fallback counts) through it.
type TelemetryReporter interface {
	ReportCounter(name string, value int64)
	ReportGauge(name string, value int64)
}

// Message is the single envelope type every node Process method receives.
// Exactly one of the PData/Control interpretation is valid, selected by
// IsControl.
type Message struct {
	IsControl bool
	PData     Payload
	Control   Control
	Ctx       *Context
}

func DataMessage(p Payload, ctx *Context) Message {
	return Message{PData: p, Ctx: ctx}
}

func ControlMessage(c Control) Message {
	return Message{IsControl: true, Control: c}
}
