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
	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/page"
)

// Capabilities is the abstract-method hook set of §9, modeled as one
// stateless-per-connection interface value rather than subclassing:
// "the engine owns the state, the capability object is stateless with
// respect to the connection." One Capabilities implementation is shared
// across every connection's Engine.
type Capabilities interface {
	// CheckConnection authorizes a request before extraction/dispatch
	// (§4.1 step 6). A non-nil error must be an *engineerr.Error of kind
	// KindForbidden or KindUnauthenticated.
	CheckConnection(remoteAddr string, path string, headers map[string][]string) *engineerr.Error

	// OnError runs before clean() on every error path (§7: "The abstract
	// error(ctx) hook runs before clean() on every error path").
	OnError(rc *RequestContext, err *engineerr.Error)

	// BeforeSimplePage runs before rendering an HTML/MENU page (§4.1 step
	// 8's "HTML, MENU -> call beforeSimplePage, then emit the rendered
	// page").
	BeforeSimplePage(rc *RequestContext) *engineerr.Error

	// FinalData runs the role-specific completion action once all data for
	// a request is in hand: finalDelete/Get/PostUpload/Post/Put collapsed
	// into one hook parameterized by role, since each is "do the business
	// action, nothing more" (§4.1 step 8).
	FinalData(rc *RequestContext, role page.Role) *engineerr.Error

	// BusinessValidRequestAfterAllDataReceived is the final validity check
	// once every field/body chunk has arrived, distinct from a Page's own
	// IsValid (which only checks shape); this hook checks business rules.
	BusinessValidRequestAfterAllDataReceived(rc *RequestContext) *engineerr.Error

	// IsCookieValid reports whether an incoming session cookie value is
	// still one the application recognizes (expired/revoked sessions
	// return false, forcing a remint).
	IsCookieValid(name, value string) bool
}
