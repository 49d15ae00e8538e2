package engine

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


import (
	"bytes"

	"github.com/socube/WaarpGatewayKernel/internal/cookiecodec"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
	"github.com/socube/WaarpGatewayKernel/internal/multipart"
	"github.com/socube/WaarpGatewayKernel/page"
	"github.com/socube/WaarpGatewayKernel/rest"
)

// RequestContext is the per-HTTP-message state described in §3: built in
// initialize(), torn down in clean(). Exactly one is live per Engine at a
// time; the zero value is the "no active request" state.
type RequestContext struct {
	Head *httpmsg.RequestHead

	// Page-engine fields.
	Page        *page.Page
	BusinessReq page.BusinessRequest

	// REST-engine fields.
	Handler  rest.MethodHandler
	URIArgs  []string
	RestArg  *rest.RestArgument
	jsonBuf  bytes.Buffer

	Decoder *multipart.Decoder

	Status    int
	WillClose bool

	Cookies []cookiecodec.Pair

	// StaticFallback marks a request the engine is delegating to the
	// static-file server (§4.1 step 4); no further engine processing
	// happens for it.
	StaticFallback bool
	StaticPath     string
}

// active reports whether a request context currently holds a parsed head
// (§3's invariant: "A request context is active iff the engine holds a
// non-null request head").
func (rc *RequestContext) active() bool {
	return rc != nil && rc.Head != nil
}

// clean releases every resource a RequestContext might hold: the
// multipart decoder (and its temp files), the cumulative JSON buffer. Safe
// to call on an already-clean or nil context (§3's "clean() runs exactly
// once ... and releases temp files and decoder state").
func (rc *RequestContext) clean() {
	if rc == nil {
		return
	}
	if rc.Decoder != nil {
		rc.Decoder.Abort()
		rc.Decoder.Cleanup()
		rc.Decoder = nil
	}
	rc.jsonBuf.Reset()
}
