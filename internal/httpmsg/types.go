// Package httpmsg defines the message objects the HTTP codec hands to the
// ProtocolEngine (§1: "assumed to deliver parsed request heads and body
// chunks") and the response the engine hands back. The codec itself -- wire
// parsing, chunked-transfer framing -- is the external collaborator; this
// package only names the shape of what crosses that boundary.
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

package httpmsg

import "net/http"

// RequestHead is the parsed request line + headers delivered by the codec
// before any body bytes arrive.
type RequestHead struct {
	Method     string
	Path       string
	RawQuery   string
	Header     http.Header
	ProtoMajor int
	ProtoMinor int

	// RemoteAddr identifies the connection for logging/rate-limiting.
	RemoteAddr string

	// ContentLength is -1 when unknown (chunked transfer).
	ContentLength int64

	// FullBody, when true, means the codec already has the complete body
	// available and will deliver it as a single terminal BodyFragment
	// (§4.1: "If the head arrived as a full request... feed all data at
	// once").
	FullBody bool
}

// BodyFragment is one chunk of request body delivered after the head.
type BodyFragment struct {
	Data []byte
	Last bool
}

// FullResponse is what the engine hands back to the codec for writing to
// the wire (§4.5).
type FullResponse struct {
	Status    int
	Header    http.Header
	Body      []byte
	WillClose bool
}

// NewResponse returns a FullResponse with an initialized header map.
func NewResponse(status int) *FullResponse {
	return &FullResponse{Status: status, Header: make(http.Header)}
}
