/*
 * Copyright 2020 Aldelo, LP
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

// Package engine implements the ProtocolEngine (§4.1): the per-connection
// state machine driving page/method lookup, field extraction, multipart
// and JSON body ingestion, handler dispatch, and response composition.
//
// The state machine is this repository's own structure (per-connection
// sequential processing, cleanup on every exit path); the panic-recovery
// discipline around dispatch is grounded on wrapper/gin/ginrecover.go.
package engine

// State is one of the ProtocolEngine's per-connection states (§4.1).
type State int

const (
	StateIdle State = iota
	StateHeadReceived
	StateFullBody
	StateStreamingBody
	StateDispatched
	StateResponded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHeadReceived:
		return "HEAD_RECEIVED"
	case StateFullBody:
		return "FULL_BODY"
	case StateStreamingBody:
		return "STREAMING_BODY"
	case StateDispatched:
		return "DISPATCHED"
	case StateResponded:
		return "RESPONDED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Decision is what the engine asks its caller (the HTTP codec adapter) to
// do after OnHead.
type Decision int

const (
	// DecisionRespond means a FullResponse is ready to write immediately;
	// no body is expected or needed.
	DecisionRespond Decision = iota

	// DecisionAwaitBody means the caller must feed OnBodyFragment calls
	// until a FullResponse is produced.
	DecisionAwaitBody

	// DecisionStaticFallback means no page/handler matched a GET; the
	// caller should serve StaticPath from the configured static root
	// (§4.1 step 4) and is responsible for its own 404 if the file is
	// missing (S1).
	DecisionStaticFallback
)
